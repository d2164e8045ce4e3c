package audit

import "time"

// Event is emitted from domain logic to capture key actions in the
// disclosure protocol. Keep it transport-agnostic so stores and sinks can
// fan out.
type Event struct {
	Timestamp time.Time

	// Subject is the name whose data the event concerns.
	Subject string
	// Action is one of the AuditEvent constants.
	Action string

	// VerificationID correlates events belonging to one request lifecycle.
	VerificationID string
	// Verifier identifies the requesting party (address or display name).
	Verifier string
	// Field names the committed field involved, when applicable.
	Field string
	// Mode is the disclosure mode for approval events.
	Mode string
	// Outcome records the result for match and ownership events.
	Outcome string

	// RequestID is the HTTP correlation ID.
	RequestID string
	ClientIP  string
	UserAgent string
}

type AuditEvent string

const (
	// Request lifecycle events
	EventRequestCreated   AuditEvent = "request_created"
	EventRequestApproved  AuditEvent = "request_approved"
	EventRequestRejected  AuditEvent = "request_rejected"
	EventRequestExpired   AuditEvent = "request_expired"
	EventRequestCompleted AuditEvent = "request_completed"

	// Disclosure events
	EventFieldRevealed  AuditEvent = "field_revealed"
	EventMatchAttempted AuditEvent = "match_attempted"

	// Ownership events
	EventOwnershipVerified AuditEvent = "ownership_verified"
	EventOwnershipFailed   AuditEvent = "ownership_failed"
)
