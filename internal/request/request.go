// Package request models a verification request's lifecycle. Transitions are
// triggered only by the holder (approve/reject) or by the wall-clock expiry
// sweep; the verifier never mutates a request after creating it.
package request

import (
	"time"

	"askme/internal/commitment"
	"askme/internal/reveal"
	dErrors "askme/pkg/domain-errors"
)

// Status enumerates the request lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusExpired || s == StatusCompleted
}

// VerificationRequest is the wire and domain shape of a verifier's request
// for one field of one subject.
type VerificationRequest struct {
	ID              string               `json:"id"`
	VerifierAddress string               `json:"verifierAddress"`
	VerifierName    string               `json:"verifierName,omitempty"`
	SubjectName     string               `json:"subjectName"`
	Field           commitment.FieldType `json:"field"`
	Status          Status               `json:"status"`
	RequestedAt     time.Time            `json:"requestedAt"`
	ApprovedAt      *time.Time           `json:"approvedAt,omitempty"`
	ExpiresAt       *time.Time           `json:"expiresAt,omitempty"`
	CompletedAt     *time.Time           `json:"completedAt,omitempty"`
}

// CanApprove checks the approval precondition without mutating the request.
func (r *VerificationRequest) CanApprove() error {
	if r.Status != StatusPending {
		return dErrors.Newf(dErrors.CodePrecondition, "request %s is %s, not pending", r.ID, r.Status)
	}
	return nil
}

// Approve moves pending -> approved. In reveal mode the disclosure window
// bound is stamped so local display and audit agree with the server.
func (r *VerificationRequest) Approve(now time.Time, mode reveal.Mode) error {
	if err := r.CanApprove(); err != nil {
		return err
	}
	r.Status = StatusApproved
	approvedAt := now
	r.ApprovedAt = &approvedAt
	if mode == reveal.ModeReveal {
		expiresAt := reveal.ExpiryFor(now)
		r.ExpiresAt = &expiresAt
	}
	return nil
}

// Reject moves pending -> rejected. Terminal and irreversible.
func (r *VerificationRequest) Reject(now time.Time) error {
	if r.Status != StatusPending {
		return dErrors.Newf(dErrors.CodePrecondition, "request %s is %s, not pending", r.ID, r.Status)
	}
	r.Status = StatusRejected
	completedAt := now
	r.CompletedAt = &completedAt
	return nil
}

// Complete moves approved -> completed once the verifier has consumed the
// disclosure.
func (r *VerificationRequest) Complete(now time.Time) error {
	if r.Status != StatusApproved {
		return dErrors.Newf(dErrors.CodePrecondition, "request %s is %s, not approved", r.ID, r.Status)
	}
	r.Status = StatusCompleted
	completedAt := now
	r.CompletedAt = &completedAt
	return nil
}

// CheckExpiry applies wall-clock expiry. Pending requests expire past their
// deadline; approved requests expire when the reveal window lapses without
// consumption. Idempotent: sweeping an already-expired request is a no-op.
// Returns true when the status changed.
func (r *VerificationRequest) CheckExpiry(now time.Time) bool {
	if r.Status != StatusPending && r.Status != StatusApproved {
		return false
	}
	if r.ExpiresAt == nil || now.Before(*r.ExpiresAt) {
		return false
	}
	r.Status = StatusExpired
	return true
}

// Partition splits requests into pending and non-pending for display,
// preserving arrival order within each partition. No re-sorting.
func Partition(requests []VerificationRequest) (pending, other []VerificationRequest) {
	for _, r := range requests {
		if r.Status == StatusPending {
			pending = append(pending, r)
		} else {
			other = append(other, r)
		}
	}
	return pending, other
}
