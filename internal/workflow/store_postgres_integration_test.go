//go:build integration

package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"askme/internal/commitment"
	"askme/internal/request"
	"askme/internal/reveal"
	"askme/internal/workflow"
	dErrors "askme/pkg/domain-errors"
	"askme/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *workflow.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = workflow.NewPostgresStore(s.postgres.Pool)
	s.Require().NoError(s.store.Init(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"approvals", "verification_requests", "verifications")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newRequest(subject string) request.VerificationRequest {
	deadline := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
	return request.VerificationRequest{
		ID:              uuid.NewString(),
		VerifierAddress: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		VerifierName:    "Acme Checks",
		SubjectName:     subject,
		Field:           commitment.FieldFullName,
		Status:          request.StatusPending,
		RequestedAt:     time.Now().UTC().Truncate(time.Microsecond),
		ExpiresAt:       &deadline,
	}
}

func (s *PostgresStoreSuite) TestRequestRoundTrip() {
	ctx := context.Background()
	req := s.newRequest("alice.eth")

	s.Require().NoError(s.store.CreateRequest(ctx, req))

	got, err := s.store.GetRequest(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.ID, got.ID)
	s.Equal(req.SubjectName, got.SubjectName)
	s.Equal(req.Field, got.Field)
	s.Equal(request.StatusPending, got.Status)
	s.True(req.RequestedAt.Equal(got.RequestedAt))
}

func (s *PostgresStoreSuite) TestGetMissingRequest() {
	_, err := s.store.GetRequest(context.Background(), "missing")
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *PostgresStoreSuite) TestUpdateRequest() {
	ctx := context.Background()
	req := s.newRequest("alice.eth")
	s.Require().NoError(s.store.CreateRequest(ctx, req))

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(req.Approve(now, reveal.ModeReveal))
	s.Require().NoError(s.store.UpdateRequest(ctx, req))

	got, err := s.store.GetRequest(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusApproved, got.Status)
	s.Require().NotNil(got.ExpiresAt)
	s.True(now.Add(time.Hour).Equal(*got.ExpiresAt))
}

func (s *PostgresStoreSuite) TestListPreservesInsertionOrder() {
	ctx := context.Background()
	var ids []string
	for range 5 {
		req := s.newRequest("alice.eth")
		s.Require().NoError(s.store.CreateRequest(ctx, req))
		ids = append(ids, req.ID)
	}
	s.Require().NoError(s.store.CreateRequest(ctx, s.newRequest("bob.eth")))

	listed, err := s.store.ListRequestsBySubject(ctx, "alice.eth")
	s.Require().NoError(err)
	s.Require().Len(listed, 5)
	for i, req := range listed {
		s.Equal(ids[i], req.ID)
	}
}

func (s *PostgresStoreSuite) TestListOpenRequests() {
	ctx := context.Background()
	open := s.newRequest("alice.eth")
	s.Require().NoError(s.store.CreateRequest(ctx, open))

	closed := s.newRequest("alice.eth")
	s.Require().NoError(s.store.CreateRequest(ctx, closed))
	s.Require().NoError(closed.Reject(time.Now().UTC()))
	s.Require().NoError(s.store.UpdateRequest(ctx, closed))

	listed, err := s.store.ListOpenRequests(ctx)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(open.ID, listed[0].ID)
}

func (s *PostgresStoreSuite) TestApprovalRoundTrip() {
	ctx := context.Background()
	req := s.newRequest("alice.eth")
	s.Require().NoError(s.store.CreateRequest(ctx, req))

	approval := workflow.Approval{
		RequestID:     req.ID,
		Mode:          reveal.ModeNoReveal,
		ValueHash:     commitment.ValueHash("Jane Doe"),
		VerifiedOwner: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		ApprovedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.SaveApproval(ctx, approval))

	got, err := s.store.GetApproval(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(approval.Mode, got.Mode)
	s.Equal(approval.ValueHash, got.ValueHash)
	s.Equal(approval.VerifiedOwner, got.VerifiedOwner)
}

func (s *PostgresStoreSuite) TestVerificationRoundTrip() {
	ctx := context.Background()
	expiry := time.Now().UTC().Add(365 * 24 * time.Hour).Truncate(time.Microsecond)
	v := request.Verification{
		ID:             uuid.NewString(),
		SubjectName:    "alice.eth",
		Field:          "full_name",
		FieldHash:      commitment.FieldHash(commitment.FieldFullName, commitment.ValueHash("Jane Doe")),
		VerifierID:     "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		VerifierName:   "Acme Checks",
		OwnerSnapshot:  "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		ExpirySnapshot: &expiry,
		Status:         "active",
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.CreateVerification(ctx, v))

	listed, err := s.store.ListVerificationsBySubject(ctx, "alice.eth")
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(v.FieldHash, listed[0].FieldHash)
	s.Equal(v.OwnerSnapshot, listed[0].OwnerSnapshot)
	s.Require().NotNil(listed[0].ExpirySnapshot)
	s.True(expiry.Equal(*listed[0].ExpirySnapshot))
}
