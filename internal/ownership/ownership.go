// Package ownership binds a wallet-controlled address to a name. The local
// flow resolves the name's owner, has the wallet sign a deterministic
// challenge, and submits the signature to the verification backend; the
// backend's signature check is the authoritative answer, the local owner
// comparison only fails fast before asking the holder to sign.
package ownership

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"askme/internal/wallet"
	dErrors "askme/pkg/domain-errors"
)

// State of the per-name verification machine.
type State string

const (
	StateUnverified State = "unverified"
	StateResolving  State = "resolving"
	StateVerified   State = "verified"
	StateFailed     State = "failed"
)

// FailureReason labels why verification failed, for holder-facing display.
type FailureReason string

const (
	ReasonNameUnresolved    FailureReason = "NameUnresolved"
	ReasonSignatureRejected FailureReason = "SignatureRejected"
)

// OwnerInfo is the resolver collaborator's answer for a name.
type OwnerInfo struct {
	Name    string     `json:"name"`
	Owner   string     `json:"owner,omitempty"`
	Expiry  *time.Time `json:"expiry,omitempty"`
	IsValid bool       `json:"isValid"`
}

// Result is the verification backend's answer to a signature submission.
type Result struct {
	Verified bool   `json:"verified"`
	Name     string `json:"ensName"`
	Address  string `json:"address"`
	Message  string `json:"message"`
}

// Assertion is the signed, backend-confirmed ownership claim. It lives until
// the holder switches names or disconnects the wallet; it is never reused
// across names.
type Assertion struct {
	Name                string `json:"name"`
	ClaimedOwnerAddress string `json:"claimedOwnerAddress"`
	Signature           string `json:"signature"`
	Message             string `json:"message"`
	Verified            bool   `json:"verified"`
}

// Resolver resolves a name to its current on-chain owner.
type Resolver interface {
	ResolveOwner(ctx context.Context, name string) (OwnerInfo, error)
}

// Backend performs the authoritative server-side signature verification.
type Backend interface {
	VerifyOwnership(ctx context.Context, name, address, signature, message string) (Result, error)
}

// Verifier runs the ownership state machine for one holder session.
type Verifier struct {
	resolver Resolver
	backend  Backend
	wallet   wallet.Wallet

	mu     sync.RWMutex
	state  State
	reason FailureReason
}

func NewVerifier(resolver Resolver, backend Backend, w wallet.Wallet) *Verifier {
	return &Verifier{
		resolver: resolver,
		backend:  backend,
		wallet:   w,
		state:    StateUnverified,
	}
}

// State returns the machine's current state and, in StateFailed, the reason.
func (v *Verifier) State() (State, FailureReason) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state, v.reason
}

// Reset returns the machine to StateUnverified. Callers invoke it when the
// holder switches names or disconnects the wallet, alongside deleting the
// persisted assertion.
func (v *Verifier) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateUnverified
	v.reason = ""
}

func (v *Verifier) transition(state State, reason FailureReason) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = state
	v.reason = reason
}

// Verify runs Unverified -> Resolving -> {Verified, Failed} for name.
//
// Errors carry the holder-facing taxonomy: VerificationFailed for semantic
// rejections (unresolved name, owner mismatch, rejected signature), network
// and HTTP codes for transport trouble. On success the returned assertion
// has Verified=true; persisting it is the caller's job.
func (v *Verifier) Verify(ctx context.Context, name string) (Assertion, error) {
	if name == "" {
		return Assertion{}, dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	walletAddr := v.wallet.Address()
	if walletAddr == "" {
		return Assertion{}, wallet.ErrNotConnected
	}

	v.transition(StateResolving, "")

	info, err := v.resolver.ResolveOwner(ctx, name)
	if err != nil {
		v.transition(StateFailed, ReasonNameUnresolved)
		return Assertion{}, err
	}
	if !info.IsValid || info.Owner == "" {
		v.transition(StateFailed, ReasonNameUnresolved)
		return Assertion{}, dErrors.Newf(dErrors.CodeVerificationFailed, "%s: name %q did not resolve to an owner", ReasonNameUnresolved, name)
	}

	// Fast-fail before signing when the connected wallet visibly is not the
	// owner. The server-side signature check stays authoritative.
	if !sameAddress(walletAddr, info.Owner) {
		v.transition(StateFailed, ReasonSignatureRejected)
		return Assertion{}, dErrors.Newf(dErrors.CodeVerificationFailed, "%s: connected wallet %s does not own %s", ReasonSignatureRejected, walletAddr, name)
	}

	message := wallet.ChallengeMessage(name)
	signature, err := v.wallet.SignMessage(ctx, message)
	if err != nil {
		v.transition(StateFailed, ReasonSignatureRejected)
		return Assertion{}, err
	}

	result, err := v.backend.VerifyOwnership(ctx, name, walletAddr, signature, message)
	if err != nil {
		v.transition(StateFailed, ReasonSignatureRejected)
		return Assertion{}, err
	}
	if !result.Verified {
		v.transition(StateFailed, ReasonSignatureRejected)
		return Assertion{}, dErrors.Newf(dErrors.CodeVerificationFailed, "%s: backend rejected the ownership signature", ReasonSignatureRejected)
	}

	v.transition(StateVerified, "")
	return Assertion{
		Name:                name,
		ClaimedOwnerAddress: walletAddr,
		Signature:           signature,
		Message:             message,
		Verified:            true,
	}, nil
}

// sameAddress compares two hex addresses ignoring checksum casing.
func sameAddress(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}
