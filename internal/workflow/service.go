package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"askme/internal/commitment"
	"askme/internal/ownership"
	"askme/internal/platform/metrics"
	"askme/internal/request"
	"askme/internal/reveal"
	"askme/internal/wallet"
	dErrors "askme/pkg/domain-errors"
	audit "askme/pkg/platform/audit"
	"askme/pkg/requestcontext"
)

// Service orchestrates the server side of the disclosure protocol. It only
// ever sees value hashes and, transiently, the approved plaintext headed for
// the TTL cache; committed values never persist.
type Service struct {
	store      Store
	cache      DisclosureCache
	logStore   reveal.LogStore
	resolver   ownership.Resolver
	auditor    *audit.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	pendingTTL time.Duration
}

type ServiceOption func(*Service)

// WithPendingTTL bounds how long a request may wait for the holder's answer
// before the sweep expires it.
func WithPendingTTL(d time.Duration) ServiceOption {
	return func(s *Service) { s.pendingTTL = d }
}

func NewService(
	store Store,
	cache DisclosureCache,
	logStore reveal.LogStore,
	resolver ownership.Resolver,
	auditor *audit.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		store:      store,
		cache:      cache,
		logStore:   logStore,
		resolver:   resolver,
		auditor:    auditor,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("askme/workflow"),
		pendingTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams is the verifier's request to open a verification.
type CreateParams struct {
	VerifierAddress string
	VerifierName    string
	SubjectName     string
	Field           string
}

// CreateRequest opens a pending verification request.
func (s *Service) CreateRequest(ctx context.Context, params CreateParams) (request.VerificationRequest, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.CreateRequest")
	defer span.End()

	field, err := commitment.ParseFieldType(params.Field)
	if err != nil {
		return request.VerificationRequest{}, err
	}
	if params.VerifierAddress == "" {
		return request.VerificationRequest{}, dErrors.New(dErrors.CodeInvalidInput, "verifierAddress is required")
	}
	if params.SubjectName == "" {
		return request.VerificationRequest{}, dErrors.New(dErrors.CodeInvalidInput, "subjectName is required")
	}

	now := requestcontext.Now(ctx)
	deadline := now.Add(s.pendingTTL)
	req := request.VerificationRequest{
		ID:              uuid.NewString(),
		VerifierAddress: params.VerifierAddress,
		VerifierName:    params.VerifierName,
		SubjectName:     params.SubjectName,
		Field:           field,
		Status:          request.StatusPending,
		RequestedAt:     now,
		ExpiresAt:       &deadline,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return request.VerificationRequest{}, err
	}

	span.SetAttributes(attribute.String("request.id", req.ID))
	s.metrics.RequestsCreated.Inc()
	s.audit(ctx, audit.EventRequestCreated, req, "", "")
	return req, nil
}

// ListRequests returns all requests addressed to a subject, arrival order.
// The wall clock is applied on read so listings never show a stale pending
// state past its deadline.
func (s *Service) ListRequests(ctx context.Context, subjectName string) ([]request.VerificationRequest, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.ListRequests")
	defer span.End()

	requests, err := s.store.ListRequestsBySubject(ctx, subjectName)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	for i := range requests {
		s.applyExpiry(ctx, &requests[i], now)
	}
	return requests, nil
}

// ApproveParams carries the holder's disclosure decision.
type ApproveParams struct {
	RequestID        string
	FieldValue       string
	RevealMode       string
	VerifiedEnsOwner string
}

// Approve handles the holder's consent: hashes the disclosed value, stores
// the approval, and in reveal mode parks the plaintext in the TTL cache.
func (s *Service) Approve(ctx context.Context, params ApproveParams) error {
	ctx, span := s.tracer.Start(ctx, "workflow.Approve")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", params.RequestID))

	mode, err := reveal.ParseMode(params.RevealMode)
	if err != nil {
		return err
	}
	if params.FieldValue == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "fieldValue is required")
	}

	req, err := s.store.GetRequest(ctx, params.RequestID)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	s.applyExpiry(ctx, &req, now)

	if err := req.Approve(now, mode); err != nil {
		return err
	}

	valueHash := commitment.ValueHash(params.FieldValue)
	approval := Approval{
		RequestID:     req.ID,
		Mode:          mode,
		ValueHash:     valueHash,
		VerifiedOwner: params.VerifiedEnsOwner,
		ApprovedAt:    now,
	}
	if err := s.store.SaveApproval(ctx, approval); err != nil {
		return err
	}
	if mode == reveal.ModeReveal {
		if err := s.cache.Put(ctx, req.ID, params.FieldValue, reveal.Window); err != nil {
			return err
		}
	}
	if err := s.store.UpdateRequest(ctx, req); err != nil {
		return err
	}

	s.metrics.RequestsApproved.WithLabelValues(string(mode)).Inc()
	s.audit(ctx, audit.EventRequestApproved, req, string(mode), "")
	return nil
}

// Reject handles the holder's refusal. Terminal.
func (s *Service) Reject(ctx context.Context, requestID string) error {
	ctx, span := s.tracer.Start(ctx, "workflow.Reject")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", requestID))

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	s.applyExpiry(ctx, &req, now)

	if err := req.Reject(now); err != nil {
		return err
	}
	if err := s.store.UpdateRequest(ctx, req); err != nil {
		return err
	}

	s.metrics.RequestsRejected.Inc()
	s.audit(ctx, audit.EventRequestRejected, req, "", "")
	return nil
}

// Reveal is the verifier's one-time plaintext retrieval. Inside the window
// it returns the value, appends the reveal log entry and completes the
// request; once the window lapses the cached value is gone and the request
// reads as expired.
func (s *Service) Reveal(ctx context.Context, requestID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Reveal")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", requestID))

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return "", err
	}
	now := requestcontext.Now(ctx)
	s.applyExpiry(ctx, &req, now)

	if req.Status != request.StatusApproved {
		if req.Status == request.StatusExpired {
			return "", dErrors.New(dErrors.CodeGone, "reveal window has closed")
		}
		return "", dErrors.Newf(dErrors.CodePrecondition, "request %s is %s, not approved", req.ID, req.Status)
	}

	approval, err := s.store.GetApproval(ctx, requestID)
	if err != nil {
		return "", err
	}
	if approval.Mode != reveal.ModeReveal {
		return "", dErrors.New(dErrors.CodePrecondition, "request was approved without reveal")
	}

	value, ok, err := s.cache.Take(ctx, requestID)
	if err != nil {
		return "", err
	}
	if !ok {
		// TTL fired between the status check and the read, or the value was
		// already consumed.
		return "", dErrors.New(dErrors.CodeGone, "reveal window has closed")
	}

	if err := s.complete(ctx, &req, approval, now); err != nil {
		return "", err
	}

	s.metrics.FieldsRevealed.Inc()
	s.audit(ctx, audit.EventFieldRevealed, req, string(approval.Mode), "")
	return value, nil
}

// Match is the no-reveal commitment opening: it answers only whether the
// verifier's guess hashes to the committed value. A true match completes
// the request and is logged; a false one leaves it open for another guess
// inside the window.
func (s *Service) Match(ctx context.Context, requestID, guess string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Match")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", requestID))

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return false, err
	}
	now := requestcontext.Now(ctx)
	s.applyExpiry(ctx, &req, now)

	if req.Status != request.StatusApproved {
		return false, dErrors.Newf(dErrors.CodePrecondition, "request %s is %s, not approved", req.ID, req.Status)
	}

	approval, err := s.store.GetApproval(ctx, requestID)
	if err != nil {
		return false, err
	}
	if approval.Mode != reveal.ModeNoReveal {
		return false, dErrors.New(dErrors.CodePrecondition, "request was approved for reveal, not matching")
	}

	matched := reveal.Match(guess, approval.ValueHash)
	outcome := "miss"
	if matched {
		outcome = "match"
		if err := s.complete(ctx, &req, approval, now); err != nil {
			return false, err
		}
	}

	s.metrics.MatchAttempts.WithLabelValues(outcome).Inc()
	s.audit(ctx, audit.EventMatchAttempted, req, string(approval.Mode), outcome)
	return matched, nil
}

// ResolveOwner answers the registry lookup for a name.
func (s *Service) ResolveOwner(ctx context.Context, name string) (ownership.OwnerInfo, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.ResolveOwner")
	defer span.End()
	return s.resolver.ResolveOwner(ctx, name)
}

// VerifyOwnership is the authoritative signature check: recover the signer
// from the EIP-191 signature and require it to be the registry owner of the
// name. The message defaults to the protocol challenge for the name.
func (s *Service) VerifyOwnership(ctx context.Context, name, address, signature, message string) (ownership.Result, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.VerifyOwnership")
	defer span.End()
	span.SetAttributes(attribute.String("ownership.name", name))

	if message == "" {
		message = wallet.ChallengeMessage(name)
	}

	fail := func(msg string) (ownership.Result, error) {
		s.metrics.OwnershipVerified.WithLabelValues("failed").Inc()
		s.auditOwnership(ctx, name, address, "failed")
		return ownership.Result{}, dErrors.New(dErrors.CodeVerificationFailed, msg)
	}

	info, err := s.resolver.ResolveOwner(ctx, name)
	if err != nil {
		return ownership.Result{}, err
	}
	if !info.IsValid || info.Owner == "" {
		return fail("name is not registered or has expired")
	}

	signer, err := RecoverSigner(message, signature)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeInvalidInput) {
			return ownership.Result{}, err
		}
		return fail("signature verification failed")
	}
	if !sameHexAddress(signer, info.Owner) {
		return fail("signer does not own this name")
	}
	if address != "" && !sameHexAddress(signer, address) {
		return fail("signature was not produced by the claimed address")
	}

	s.metrics.OwnershipVerified.WithLabelValues("verified").Inc()
	s.auditOwnership(ctx, name, signer, "verified")
	return ownership.Result{
		Verified: true,
		Name:     name,
		Address:  signer,
		Message:  "ownership verified",
	}, nil
}

// ListVerifications returns the verification records for a subject with
// validity flags derived against the current registry state.
func (s *Service) ListVerifications(ctx context.Context, subjectName string) ([]request.Verification, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.ListVerifications")
	defer span.End()

	verifications, err := s.store.ListVerificationsBySubject(ctx, subjectName)
	if err != nil {
		return nil, err
	}
	info, err := s.resolver.ResolveOwner(ctx, subjectName)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	for i := range verifications {
		s.deriveFlags(&verifications[i], info, now)
	}
	return verifications, nil
}

// SweepExpired applies wall-clock expiry to every open request. Idempotent;
// returns how many requests changed state.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.SweepExpired")
	defer span.End()

	open, err := s.store.ListOpenRequests(ctx)
	if err != nil {
		return 0, err
	}
	now := requestcontext.Now(ctx)
	expired := 0
	for i := range open {
		if !open[i].CheckExpiry(now) {
			continue
		}
		if err := s.store.UpdateRequest(ctx, open[i]); err != nil {
			s.logger.ErrorContext(ctx, "sweep failed to persist expiry",
				"request_id", open[i].ID, "error", err)
			continue
		}
		_ = s.cache.Delete(ctx, open[i].ID)
		expired++
		s.metrics.RequestsExpired.Inc()
		s.audit(ctx, audit.EventRequestExpired, open[i], "", "")
	}
	return expired, nil
}

// complete moves a consumed request to completed, records the verification
// and appends the reveal log entry.
func (s *Service) complete(ctx context.Context, req *request.VerificationRequest, approval Approval, now time.Time) error {
	if err := req.Complete(now); err != nil {
		return err
	}
	if err := s.store.UpdateRequest(ctx, *req); err != nil {
		return err
	}

	entry := reveal.FieldRevealLog{
		ID:              uuid.NewString(),
		RequestID:       req.ID,
		SubjectName:     req.SubjectName,
		Field:           req.Field,
		VerifierAddress: req.VerifierAddress,
		VerifierName:    req.VerifierName,
		RevealedAt:      now,
		ValueHash:       approval.ValueHash,
	}
	if err := s.logStore.Append(ctx, entry); err != nil {
		return err
	}

	info, err := s.resolver.ResolveOwner(ctx, req.SubjectName)
	if err != nil {
		return err
	}
	verification := request.Verification{
		ID:            uuid.NewString(),
		SubjectName:   req.SubjectName,
		Field:         string(req.Field),
		FieldHash:     commitment.FieldHash(req.Field, approval.ValueHash),
		VerifierID:    req.VerifierAddress,
		VerifierName:  req.VerifierName,
		OwnerSnapshot: info.Owner,
		Status:        "active",
		CreatedAt:     now,
	}
	if info.Expiry != nil {
		expiry := *info.Expiry
		verification.ExpirySnapshot = &expiry
	}
	if err := s.store.CreateVerification(ctx, verification); err != nil {
		return err
	}

	s.metrics.RequestsCompleted.Inc()
	s.audit(ctx, audit.EventRequestCompleted, *req, string(approval.Mode), "")
	return nil
}

// applyExpiry expires a request in place and persists the change. Failures
// to persist are logged and the in-memory expiry kept, so callers always
// see the wall-clock truth.
func (s *Service) applyExpiry(ctx context.Context, req *request.VerificationRequest, now time.Time) {
	if !req.CheckExpiry(now) {
		return
	}
	if err := s.store.UpdateRequest(ctx, *req); err != nil {
		s.logger.WarnContext(ctx, "failed to persist expiry",
			"request_id", req.ID, "error", err)
	}
	_ = s.cache.Delete(ctx, req.ID)
	s.metrics.RequestsExpired.Inc()
	s.audit(ctx, audit.EventRequestExpired, *req, "", "")
}

// deriveFlags computes read-time validity against current registry state.
func (s *Service) deriveFlags(v *request.Verification, info ownership.OwnerInfo, now time.Time) {
	active := v.Status == "active" && v.RevokedAt == nil
	nameValid := info.IsValid
	ownershipMatches := v.OwnerSnapshot != "" && info.Owner != "" && sameHexAddress(v.OwnerSnapshot, info.Owner)
	expiryValid := true
	if expired := v.IsExpired(now); expired != nil {
		expiryValid = !*expired
	}
	valid := active && nameValid && ownershipMatches && expiryValid

	v.IsActive = &active
	v.IsNameValid = &nameValid
	v.OwnershipMatches = &ownershipMatches
	v.ExpiryValid = &expiryValid
	v.IsValid = &valid
}

func (s *Service) audit(ctx context.Context, action audit.AuditEvent, req request.VerificationRequest, mode, outcome string) {
	event := audit.Event{
		Subject:        req.SubjectName,
		Action:         string(action),
		VerificationID: req.ID,
		Verifier:       req.VerifierAddress,
		Field:          string(req.Field),
		Mode:           mode,
		Outcome:        outcome,
		RequestID:      requestcontext.RequestID(ctx),
		ClientIP:       requestcontext.ClientIP(ctx),
		UserAgent:      requestcontext.UserAgent(ctx),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

func (s *Service) auditOwnership(ctx context.Context, name, address, outcome string) {
	action := audit.EventOwnershipVerified
	if outcome != "verified" {
		action = audit.EventOwnershipFailed
	}
	event := audit.Event{
		Subject:   name,
		Action:    string(action),
		Verifier:  address,
		Outcome:   outcome,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
