package workflow

import (
	"context"
	"sync"

	"askme/internal/request"
	dErrors "askme/pkg/domain-errors"
)

// InMemoryStore keeps the initial implementation lightweight and testable.
// It intentionally favors clarity over performance. Slices hold insertion
// order; maps index by ID.
type InMemoryStore struct {
	mu            sync.RWMutex
	requestOrder  []string
	requests      map[string]request.VerificationRequest
	approvals     map[string]Approval
	verifications []request.Verification
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests:  make(map[string]request.VerificationRequest),
		approvals: make(map[string]Approval),
	}
}

func (s *InMemoryStore) CreateRequest(_ context.Context, req request.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return dErrors.Newf(dErrors.CodeConflict, "request %s already exists", req.ID)
	}
	s.requests[req.ID] = req
	s.requestOrder = append(s.requestOrder, req.ID)
	return nil
}

func (s *InMemoryStore) GetRequest(_ context.Context, id string) (request.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if req, ok := s.requests[id]; ok {
		return req, nil
	}
	return request.VerificationRequest{}, ErrNotFound
}

func (s *InMemoryStore) UpdateRequest(_ context.Context, req request.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return ErrNotFound
	}
	s.requests[req.ID] = req
	return nil
}

func (s *InMemoryStore) ListRequestsBySubject(_ context.Context, subjectName string) ([]request.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []request.VerificationRequest
	for _, id := range s.requestOrder {
		if req := s.requests[id]; req.SubjectName == subjectName {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListOpenRequests(_ context.Context) ([]request.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []request.VerificationRequest
	for _, id := range s.requestOrder {
		if req := s.requests[id]; !req.Status.Terminal() {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveApproval(_ context.Context, approval Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[approval.RequestID] = approval
	return nil
}

func (s *InMemoryStore) GetApproval(_ context.Context, requestID string) (Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if approval, ok := s.approvals[requestID]; ok {
		return approval, nil
	}
	return Approval{}, ErrNotFound
}

func (s *InMemoryStore) CreateVerification(_ context.Context, v request.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifications = append(s.verifications, v)
	return nil
}

func (s *InMemoryStore) ListVerificationsBySubject(_ context.Context, subjectName string) ([]request.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []request.Verification
	for _, v := range s.verifications {
		if v.SubjectName == subjectName {
			out = append(out, v)
		}
	}
	return out, nil
}
