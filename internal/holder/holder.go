// Package holder is the device-side engine: it owns the holder's session
// (active subject, field values, ownership assertion, cached request lists)
// and drives the protocol against the workflow backend. All mutation happens
// through explicit holder actions; nothing here retries on its own.
package holder

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"askme/internal/apiclient"
	"askme/internal/commitment"
	"askme/internal/ownership"
	"askme/internal/request"
	"askme/internal/reveal"
	"askme/internal/vault"
	"askme/internal/wallet"
	dErrors "askme/pkg/domain-errors"
	"askme/pkg/requestcontext"
)

// Backend is the slice of the API client the engine needs. Narrowed to an
// interface so tests can count calls.
type Backend interface {
	Verifications(ctx context.Context, name string) ([]request.Verification, error)
	Requests(ctx context.Context, name string) ([]request.VerificationRequest, error)
	Approve(ctx context.Context, requestID string, payload apiclient.ApprovePayload) error
	Reject(ctx context.Context, requestID string) error
	ResolveOwner(ctx context.Context, name string) (ownership.OwnerInfo, error)
	VerifyOwnership(ctx context.Context, name, address, signature, message string) (ownership.Result, error)
}

// Engine is the holder-side protocol engine for one device session.
type Engine struct {
	vault    *vault.Vault
	wallet   wallet.Wallet
	backend  Backend
	verifier *ownership.Verifier
	logger   *slog.Logger

	// approvals serializes per-request mutation so a double-tapped approve
	// cannot reach the backend twice.
	approvals singleflight.Group

	mu            sync.RWMutex
	requests      []request.VerificationRequest
	verifications []request.Verification
}

func NewEngine(v *vault.Vault, w wallet.Wallet, backend Backend, logger *slog.Logger) *Engine {
	guarded := wallet.NewGuard(w)
	return &Engine{
		vault:    v,
		wallet:   guarded,
		backend:  backend,
		verifier: ownership.NewVerifier(resolverFunc(backend.ResolveOwner), verifyFunc(backend.VerifyOwnership), guarded),
		logger:   logger,
	}
}

// resolverFunc / verifyFunc adapt the backend methods onto the ownership
// collaborator interfaces.
type resolverFunc func(ctx context.Context, name string) (ownership.OwnerInfo, error)

func (f resolverFunc) ResolveOwner(ctx context.Context, name string) (ownership.OwnerInfo, error) {
	return f(ctx, name)
}

type verifyFunc func(ctx context.Context, name, address, signature, message string) (ownership.Result, error)

func (f verifyFunc) VerifyOwnership(ctx context.Context, name, address, signature, message string) (ownership.Result, error) {
	return f(ctx, name, address, signature, message)
}

// ConnectWallet establishes the wallet session.
func (e *Engine) ConnectWallet(ctx context.Context) (string, error) {
	return e.wallet.Connect(ctx)
}

// DisconnectWallet tears down the wallet session and invalidates the
// ownership assertion; an assertion never survives its wallet.
func (e *Engine) DisconnectWallet(ctx context.Context) error {
	if err := e.wallet.Disconnect(ctx); err != nil {
		return err
	}
	e.verifier.Reset()
	return e.vault.ClearVerifiedOwner(ctx)
}

// SwitchSubject selects the active name. The stale assertion is cleared
// atomically before the new subject becomes readable.
func (e *Engine) SwitchSubject(ctx context.Context, name string) error {
	if err := e.vault.SwitchSubject(ctx, name); err != nil {
		return err
	}
	e.verifier.Reset()

	e.mu.Lock()
	e.requests = nil
	e.verifications = nil
	e.mu.Unlock()
	return nil
}

// Subject returns the active subject name.
func (e *Engine) Subject(ctx context.Context) (string, error) {
	return e.vault.Subject(ctx)
}

// SetField stores a field value for the active subject and returns its
// commitment.
func (e *Engine) SetField(ctx context.Context, field commitment.FieldType, value string) (commitment.FieldCommitment, error) {
	subject, err := e.requireSubject(ctx)
	if err != nil {
		return commitment.FieldCommitment{}, err
	}
	return e.vault.SetField(ctx, subject, field, value)
}

// ClearField destroys a field value (and thereby its commitment).
func (e *Engine) ClearField(ctx context.Context, field commitment.FieldType) error {
	subject, err := e.requireSubject(ctx)
	if err != nil {
		return err
	}
	return e.vault.ClearField(ctx, subject, field)
}

// Commitments lists the commitments currently derivable for the active
// subject, in field declaration order.
func (e *Engine) Commitments(ctx context.Context) ([]commitment.FieldCommitment, error) {
	subject, err := e.requireSubject(ctx)
	if err != nil {
		return nil, err
	}
	var out []commitment.FieldCommitment
	for _, field := range commitment.FieldTypes() {
		c, ok, err := e.vault.Commitment(ctx, subject, field)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// VerifyOwnership runs the ownership state machine for the active subject
// and persists the verified owner address on success.
func (e *Engine) VerifyOwnership(ctx context.Context) (ownership.Assertion, error) {
	subject, err := e.requireSubject(ctx)
	if err != nil {
		return ownership.Assertion{}, err
	}

	assertion, err := e.verifier.Verify(ctx, subject)
	if err != nil {
		return ownership.Assertion{}, err
	}
	if err := e.vault.SetVerifiedOwner(ctx, assertion.ClaimedOwnerAddress); err != nil {
		return ownership.Assertion{}, err
	}
	e.logger.InfoContext(ctx, "ownership verified",
		"subject", subject,
		"owner", assertion.ClaimedOwnerAddress,
	)
	return assertion, nil
}

// OwnershipState exposes the verifier state machine for display.
func (e *Engine) OwnershipState() (ownership.State, ownership.FailureReason) {
	return e.verifier.State()
}

// Refresh fetches the request and verification lists for the active subject
// concurrently. Order arrives from the server and is kept as-is.
func (e *Engine) Refresh(ctx context.Context) error {
	subject, err := e.requireSubject(ctx)
	if err != nil {
		return err
	}

	var (
		reqs  []request.VerificationRequest
		vers  []request.Verification
		g, gc = errgroup.WithContext(ctx)
	)
	g.Go(func() error {
		var err error
		reqs, err = e.backend.Requests(gc, subject)
		return err
	})
	g.Go(func() error {
		var err error
		vers, err = e.backend.Verifications(gc, subject)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	e.mu.Lock()
	e.requests = reqs
	e.verifications = vers
	e.mu.Unlock()
	return nil
}

// Requests returns the cached requests partitioned into pending and other,
// arrival order preserved within each partition.
func (e *Engine) Requests() (pending, other []request.VerificationRequest) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return request.Partition(e.requests)
}

// Verifications returns the cached verification records.
func (e *Engine) Verifications() []request.Verification {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]request.Verification{}, e.verifications...)
}

// Approve approves a pending request with the chosen disclosure mode.
//
// Preconditions are checked before any network call: the request must be
// cached and pending, and a non-empty value must exist locally for its
// (subject, field). The cached status flips optimistically on submission;
// a backend failure reverts it and surfaces the error. Concurrent approvals
// of the same request collapse into one submission.
func (e *Engine) Approve(ctx context.Context, requestID string, mode reveal.Mode) error {
	_, err, _ := e.approvals.Do(requestID, func() (any, error) {
		return nil, e.approve(ctx, requestID, mode)
	})
	return err
}

func (e *Engine) approve(ctx context.Context, requestID string, mode reveal.Mode) error {
	subject, err := e.requireSubject(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	req := e.findRequestLocked(requestID)
	if req == nil {
		e.mu.Unlock()
		return dErrors.Newf(dErrors.CodeNotFound, "unknown request %s", requestID)
	}
	if err := req.CanApprove(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	value, ok, err := e.vault.FieldValue(ctx, subject, req.Field)
	if err != nil {
		return err
	}
	if !ok || value == "" {
		return dErrors.Newf(dErrors.CodePrecondition, "no local value for field %s; set it before approving", req.Field)
	}

	verifiedOwner, err := e.vault.VerifiedOwner(ctx)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)

	// Optimistic local transition; reverted below if the backend refuses.
	e.mu.Lock()
	prev := *req
	if err := req.Approve(now, mode); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	err = e.backend.Approve(ctx, requestID, apiclient.ApprovePayload{
		FieldValue:       value,
		RevealMode:       mode,
		VerifiedEnsOwner: verifiedOwner,
	})
	if err != nil {
		e.mu.Lock()
		*req = prev
		e.mu.Unlock()
		e.logger.WarnContext(ctx, "approval submission failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

// Reject rejects a pending request. Terminal and irreversible.
func (e *Engine) Reject(ctx context.Context, requestID string) error {
	_, err, _ := e.approvals.Do(requestID, func() (any, error) {
		return nil, e.reject(ctx, requestID)
	})
	return err
}

func (e *Engine) reject(ctx context.Context, requestID string) error {
	e.mu.Lock()
	req := e.findRequestLocked(requestID)
	if req == nil {
		e.mu.Unlock()
		return dErrors.Newf(dErrors.CodeNotFound, "unknown request %s", requestID)
	}
	if req.Status != request.StatusPending {
		e.mu.Unlock()
		return dErrors.Newf(dErrors.CodePrecondition, "request %s is %s, not pending", requestID, req.Status)
	}
	e.mu.Unlock()

	if err := e.backend.Reject(ctx, requestID); err != nil {
		return err
	}

	e.mu.Lock()
	_ = req.Reject(requestcontext.Now(ctx))
	e.mu.Unlock()
	return nil
}

func (e *Engine) findRequestLocked(requestID string) *request.VerificationRequest {
	for i := range e.requests {
		if e.requests[i].ID == requestID {
			return &e.requests[i]
		}
	}
	return nil
}

func (e *Engine) requireSubject(ctx context.Context) (string, error) {
	subject, err := e.vault.Subject(ctx)
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", dErrors.New(dErrors.CodePrecondition, "no subject name selected")
	}
	return subject, nil
}
