// Package workflow is the reference server side of the disclosure protocol:
// request persistence, authoritative signature verification, reveal-window
// enforcement and the expiry sweep.
package workflow

import (
	"context"
	"time"

	"askme/internal/request"
	"askme/internal/reveal"
	dErrors "askme/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across in-memory
	// and Postgres implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")
)

// Approval captures what the holder disclosed at approval time. The raw
// field value is never stored here; in reveal mode it lives only in the
// TTL-bounded disclosure cache.
type Approval struct {
	RequestID     string
	Mode          reveal.Mode
	ValueHash     string
	VerifiedOwner string
	ApprovedAt    time.Time
}

// Store is interface-driven to keep the domain logic testable and to allow
// swapping in-memory and Postgres persistence without rewiring business
// code. List methods preserve insertion order.
type Store interface {
	CreateRequest(ctx context.Context, req request.VerificationRequest) error
	GetRequest(ctx context.Context, id string) (request.VerificationRequest, error)
	UpdateRequest(ctx context.Context, req request.VerificationRequest) error
	ListRequestsBySubject(ctx context.Context, subjectName string) ([]request.VerificationRequest, error)
	ListOpenRequests(ctx context.Context) ([]request.VerificationRequest, error)

	SaveApproval(ctx context.Context, approval Approval) error
	GetApproval(ctx context.Context, requestID string) (Approval, error)

	CreateVerification(ctx context.Context, v request.Verification) error
	ListVerificationsBySubject(ctx context.Context, subjectName string) ([]request.Verification, error)
}
