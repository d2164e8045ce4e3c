package reveal

import (
	"context"
	"sync"
	"time"

	"askme/internal/commitment"
)

// FieldRevealLog is one append-only audit record, created exactly once when
// a disclosure actually reaches a verifier (plaintext in reveal mode, a
// successful opening in no-reveal mode).
type FieldRevealLog struct {
	ID              string               `json:"id"`
	RequestID       string               `json:"requestId"`
	SubjectName     string               `json:"subjectName"`
	Field           commitment.FieldType `json:"field"`
	VerifierAddress string               `json:"verifierAddress"`
	VerifierName    string               `json:"verifierName,omitempty"`
	RevealedAt      time.Time            `json:"revealedAt"`
	ValueHash       string               `json:"valueHash,omitempty"`
}

// LogStore accepts reveal-log appends. There is deliberately no update or
// delete: the log is append-only and the core never mutates past entries.
type LogStore interface {
	Append(ctx context.Context, entry FieldRevealLog) error
	ListBySubject(ctx context.Context, subjectName string) ([]FieldRevealLog, error)
}

// InMemoryLogStore keeps reveal-log entries in memory, in append order.
type InMemoryLogStore struct {
	mu      sync.RWMutex
	entries []FieldRevealLog
}

func NewInMemoryLogStore() *InMemoryLogStore {
	return &InMemoryLogStore{}
}

func (s *InMemoryLogStore) Append(_ context.Context, entry FieldRevealLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryLogStore) ListBySubject(_ context.Context, subjectName string) ([]FieldRevealLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []FieldRevealLog
	for _, e := range s.entries {
		if e.SubjectName == subjectName {
			out = append(out, e)
		}
	}
	return out, nil
}
