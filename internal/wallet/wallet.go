// Package wallet defines the wallet capability the holder engine depends on.
// Concrete transports (WalletConnect pairing, hardware wallets) plug in
// behind the interface; this package carries only the contract plus a local
// in-process key signer for tests and the CLI.
package wallet

import (
	"context"

	dErrors "askme/pkg/domain-errors"
)

// Wallet is the abstract signing capability. Connect and SignMessage block
// until the transport answers; both honor ctx cancellation.
type Wallet interface {
	// Connect establishes the session and returns the account address.
	Connect(ctx context.Context) (address string, err error)
	Disconnect(ctx context.Context) error
	// Address returns the connected account address, empty when disconnected.
	Address() string
	// SignMessage signs a personal message (EIP-191) and returns the
	// 0x-prefixed 65-byte signature.
	SignMessage(ctx context.Context, message string) (signature string, err error)
}

// ErrNotConnected is returned by signing operations before Connect succeeds.
var ErrNotConnected = dErrors.New(dErrors.CodePrecondition, "wallet not connected")

// ErrSigningBusy is returned when a sign request arrives while another is
// still outstanding; callers must not queue silently.
var ErrSigningBusy = dErrors.New(dErrors.CodeConflict, "a signing request is already in flight")

// ChallengeMessage builds the deterministic ownership challenge for a name.
// The backend re-derives the identical text to check the signature, so the
// literal layout is part of the wire contract.
func ChallengeMessage(name string) string {
	return "Verify ENS ownership: " + name + "\n\nThis signature proves you own the ENS name."
}
