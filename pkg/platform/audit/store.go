package audit

import "context"

// Store persists audit events. Implementations must be append-only; there
// is deliberately no update or delete.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
