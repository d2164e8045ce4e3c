package workflow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"askme/contracts/registry"
	"askme/internal/commitment"
	"askme/internal/platform/metrics"
	"askme/internal/request"
	"askme/internal/reveal"
	"askme/internal/wallet"
	dErrors "askme/pkg/domain-errors"
	audit "askme/pkg/platform/audit"
	auditmemory "askme/pkg/platform/audit/store/memory"
	"askme/pkg/requestcontext"
)

// Prometheus collectors register globally; one instance serves the package.
var testMetrics = metrics.New()

type ServiceSuite struct {
	suite.Suite

	store    *InMemoryStore
	cache    *InMemoryCache
	logStore *reveal.InMemoryLogStore
	auditLog *auditmemory.InMemoryStore
	registry *registry.Static
	service  *Service

	now time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore()
	s.cache = NewInMemoryCache().WithClock(func() time.Time { return s.now })
	s.logStore = reveal.NewInMemoryLogStore()
	s.auditLog = auditmemory.NewInMemoryStore()
	s.registry = registry.NewStatic()
	s.service = NewService(
		s.store,
		s.cache,
		s.logStore,
		NewRegistryResolver(s.registry),
		audit.NewPublisher(s.auditLog),
		testMetrics,
		slog.New(slog.DiscardHandler),
		WithPendingTTL(24*time.Hour),
	)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) createRequest() request.VerificationRequest {
	req, err := s.service.CreateRequest(s.ctx(), CreateParams{
		VerifierAddress: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		VerifierName:    "Acme Checks",
		SubjectName:     "alice.eth",
		Field:           "full_name",
	})
	s.Require().NoError(err)
	return req
}

func (s *ServiceSuite) TestCreateRequest() {
	s.Run("creates pending request", func() {
		req := s.createRequest()

		s.Equal(request.StatusPending, req.Status)
		s.Equal("alice.eth", req.SubjectName)
		s.Equal(commitment.FieldFullName, req.Field)
		s.Equal(s.now, req.RequestedAt)

		listed, err := s.service.ListRequests(s.ctx(), "alice.eth")
		s.Require().NoError(err)
		s.Require().Len(listed, 1)
		s.Equal(req.ID, listed[0].ID)
	})

	s.Run("rejects unknown field", func() {
		_, err := s.service.CreateRequest(s.ctx(), CreateParams{
			VerifierAddress: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			SubjectName:     "alice.eth",
			Field:           "shoe_size",
		})
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects missing subject", func() {
		_, err := s.service.CreateRequest(s.ctx(), CreateParams{
			VerifierAddress: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			Field:           "full_name",
		})
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestApproveReveal() {
	req := s.createRequest()

	err := s.service.Approve(s.ctx(), ApproveParams{
		RequestID:  req.ID,
		FieldValue: "Jane Doe",
		RevealMode: "reveal",
	})
	s.Require().NoError(err)

	stored, err := s.store.GetRequest(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusApproved, stored.Status)
	s.Require().NotNil(stored.ExpiresAt)
	s.Equal(s.now.Add(time.Hour), *stored.ExpiresAt)

	approval, err := s.store.GetApproval(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(commitment.ValueHash("Jane Doe"), approval.ValueHash)
}

func (s *ServiceSuite) TestApprovePreconditions() {
	s.Run("unknown request", func() {
		err := s.service.Approve(s.ctx(), ApproveParams{
			RequestID:  "missing",
			FieldValue: "x",
			RevealMode: "reveal",
		})
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("invalid mode", func() {
		req := s.createRequest()
		err := s.service.Approve(s.ctx(), ApproveParams{
			RequestID:  req.ID,
			FieldValue: "x",
			RevealMode: "maybe",
		})
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("already rejected", func() {
		req := s.createRequest()
		s.Require().NoError(s.service.Reject(s.ctx(), req.ID))

		err := s.service.Approve(s.ctx(), ApproveParams{
			RequestID:  req.ID,
			FieldValue: "x",
			RevealMode: "reveal",
		})
		s.True(dErrors.Is(err, dErrors.CodePrecondition))
	})
}

func (s *ServiceSuite) TestRevealFlow() {
	req := s.createRequest()
	s.Require().NoError(s.service.Approve(s.ctx(), ApproveParams{
		RequestID:  req.ID,
		FieldValue: "Jane Doe",
		RevealMode: "reveal",
	}))

	s.Run("reveal returns plaintext once and completes", func() {
		value, err := s.service.Reveal(s.ctx(), req.ID)
		s.Require().NoError(err)
		s.Equal("Jane Doe", value)

		stored, err := s.store.GetRequest(context.Background(), req.ID)
		s.Require().NoError(err)
		s.Equal(request.StatusCompleted, stored.Status)

		entries, err := s.logStore.ListBySubject(context.Background(), "alice.eth")
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(req.ID, entries[0].RequestID)
		s.Equal(commitment.ValueHash("Jane Doe"), entries[0].ValueHash)
	})

	s.Run("second reveal is a precondition failure", func() {
		_, err := s.service.Reveal(s.ctx(), req.ID)
		s.True(dErrors.Is(err, dErrors.CodePrecondition))
	})
}

func (s *ServiceSuite) TestRevealWindowCloses() {
	req := s.createRequest()
	s.Require().NoError(s.service.Approve(s.ctx(), ApproveParams{
		RequestID:  req.ID,
		FieldValue: "Jane Doe",
		RevealMode: "reveal",
	}))

	s.now = s.now.Add(time.Hour + time.Second)

	_, err := s.service.Reveal(s.ctx(), req.ID)
	s.True(dErrors.Is(err, dErrors.CodeGone))

	stored, err := s.store.GetRequest(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusExpired, stored.Status)

	entries, err := s.logStore.ListBySubject(context.Background(), "alice.eth")
	s.Require().NoError(err)
	s.Empty(entries, "no disclosure happened, so no log entry")
}

func (s *ServiceSuite) TestNoRevealMatch() {
	req := s.createRequest()
	s.Require().NoError(s.service.Approve(s.ctx(), ApproveParams{
		RequestID:  req.ID,
		FieldValue: "Jane Doe",
		RevealMode: "no-reveal",
	}))

	s.Run("reveal endpoint refuses no-reveal approvals", func() {
		_, err := s.service.Reveal(s.ctx(), req.ID)
		s.True(dErrors.Is(err, dErrors.CodePrecondition))
	})

	s.Run("wrong guess leaves the request open", func() {
		matched, err := s.service.Match(s.ctx(), req.ID, "John Smith")
		s.Require().NoError(err)
		s.False(matched)

		stored, err := s.store.GetRequest(context.Background(), req.ID)
		s.Require().NoError(err)
		s.Equal(request.StatusApproved, stored.Status)
	})

	s.Run("normalized guess matches and completes", func() {
		matched, err := s.service.Match(s.ctx(), req.ID, "  jane doe  ")
		s.Require().NoError(err)
		s.True(matched)

		stored, err := s.store.GetRequest(context.Background(), req.ID)
		s.Require().NoError(err)
		s.Equal(request.StatusCompleted, stored.Status)

		entries, err := s.logStore.ListBySubject(context.Background(), "alice.eth")
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(commitment.ValueHash("Jane Doe"), entries[0].ValueHash)
	})
}

func (s *ServiceSuite) TestReject() {
	req := s.createRequest()

	s.Require().NoError(s.service.Reject(s.ctx(), req.ID))

	stored, err := s.store.GetRequest(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusRejected, stored.Status)

	err = s.service.Reject(s.ctx(), req.ID)
	s.True(dErrors.Is(err, dErrors.CodePrecondition), "reject is terminal")
}

func (s *ServiceSuite) TestSweepExpired() {
	req := s.createRequest()

	s.Run("nothing to expire inside the deadline", func() {
		expired, err := s.service.SweepExpired(s.ctx())
		s.Require().NoError(err)
		s.Zero(expired)
	})

	s.Run("pending request expires past its deadline", func() {
		s.now = s.now.Add(25 * time.Hour)

		expired, err := s.service.SweepExpired(s.ctx())
		s.Require().NoError(err)
		s.Equal(1, expired)

		stored, err := s.store.GetRequest(context.Background(), req.ID)
		s.Require().NoError(err)
		s.Equal(request.StatusExpired, stored.Status)
	})

	s.Run("sweep is idempotent", func() {
		expired, err := s.service.SweepExpired(s.ctx())
		s.Require().NoError(err)
		s.Zero(expired)
	})
}

func (s *ServiceSuite) TestVerifyOwnership() {
	holderWallet, err := wallet.NewLocalWallet()
	s.Require().NoError(err)
	address, err := holderWallet.Connect(context.Background())
	s.Require().NoError(err)

	s.registry.Register(registry.Record{
		Name:   "alice.eth",
		Owner:  common.HexToAddress(address),
		Expiry: s.now.Add(365 * 24 * time.Hour),
	})

	message := wallet.ChallengeMessage("alice.eth")
	signature, err := holderWallet.SignMessage(context.Background(), message)
	s.Require().NoError(err)

	s.Run("owner's signature verifies", func() {
		result, err := s.service.VerifyOwnership(s.ctx(), "alice.eth", address, signature, message)
		s.Require().NoError(err)
		s.True(result.Verified)
		s.Equal(common.HexToAddress(address), common.HexToAddress(result.Address))
	})

	s.Run("non-owner signature fails", func() {
		stranger, err := wallet.NewLocalWallet()
		s.Require().NoError(err)
		strangerAddr, err := stranger.Connect(context.Background())
		s.Require().NoError(err)
		strangerSig, err := stranger.SignMessage(context.Background(), message)
		s.Require().NoError(err)

		_, err = s.service.VerifyOwnership(s.ctx(), "alice.eth", strangerAddr, strangerSig, message)
		s.True(dErrors.Is(err, dErrors.CodeVerificationFailed))
	})

	s.Run("claimed address must match the signer", func() {
		_, err := s.service.VerifyOwnership(s.ctx(), "alice.eth", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", signature, message)
		s.True(dErrors.Is(err, dErrors.CodeVerificationFailed))
	})

	s.Run("unregistered name fails", func() {
		_, err := s.service.VerifyOwnership(s.ctx(), "nobody.eth", address, signature, wallet.ChallengeMessage("nobody.eth"))
		s.True(dErrors.Is(err, dErrors.CodeVerificationFailed))
	})

	s.Run("expired registration fails", func() {
		s.registry.Register(registry.Record{
			Name:   "stale.eth",
			Owner:  common.HexToAddress(address),
			Expiry: s.now.Add(-time.Hour),
		})
		staleMessage := wallet.ChallengeMessage("stale.eth")
		staleSig, err := holderWallet.SignMessage(context.Background(), staleMessage)
		s.Require().NoError(err)

		_, err = s.service.VerifyOwnership(s.ctx(), "stale.eth", address, staleSig, staleMessage)
		s.True(dErrors.Is(err, dErrors.CodeVerificationFailed))
	})

	s.Run("garbage signature is invalid input", func() {
		_, err := s.service.VerifyOwnership(s.ctx(), "alice.eth", address, "not-hex", message)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestListVerificationsDerivesFlags() {
	holderWallet, err := wallet.NewLocalWallet()
	s.Require().NoError(err)
	address, err := holderWallet.Connect(context.Background())
	s.Require().NoError(err)

	s.registry.Register(registry.Record{
		Name:   "alice.eth",
		Owner:  common.HexToAddress(address),
		Expiry: s.now.Add(365 * 24 * time.Hour),
	})

	req := s.createRequest()
	s.Require().NoError(s.service.Approve(s.ctx(), ApproveParams{
		RequestID:  req.ID,
		FieldValue: "Jane Doe",
		RevealMode: "reveal",
	}))
	_, err = s.service.Reveal(s.ctx(), req.ID)
	s.Require().NoError(err)

	s.Run("snapshot matching registry reads valid", func() {
		verifications, err := s.service.ListVerifications(s.ctx(), "alice.eth")
		s.Require().NoError(err)
		s.Require().Len(verifications, 1)

		v := verifications[0]
		s.Equal(commitment.FieldHash(commitment.FieldFullName, commitment.ValueHash("Jane Doe")), v.FieldHash)
		s.Require().NotNil(v.IsValid)
		s.True(*v.IsValid)
		s.True(*v.OwnershipMatches)
		s.True(*v.IsNameValid)
	})

	s.Run("ownership transfer invalidates the record", func() {
		s.registry.Register(registry.Record{
			Name:   "alice.eth",
			Owner:  common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
			Expiry: s.now.Add(365 * 24 * time.Hour),
		})

		verifications, err := s.service.ListVerifications(s.ctx(), "alice.eth")
		s.Require().NoError(err)
		s.Require().Len(verifications, 1)
		s.False(*verifications[0].OwnershipMatches)
		s.False(*verifications[0].IsValid)
	})
}

func (s *ServiceSuite) TestAuditTrail() {
	req := s.createRequest()
	s.Require().NoError(s.service.Approve(s.ctx(), ApproveParams{
		RequestID:  req.ID,
		FieldValue: "Jane Doe",
		RevealMode: "reveal",
	}))
	_, err := s.service.Reveal(s.ctx(), req.ID)
	s.Require().NoError(err)

	events, err := s.auditLog.ListBySubject(context.Background(), "alice.eth")
	s.Require().NoError(err)

	var actions []string
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Equal([]string{
		string(audit.EventRequestCreated),
		string(audit.EventRequestApproved),
		string(audit.EventRequestCompleted),
		string(audit.EventFieldRevealed),
	}, actions)
}
