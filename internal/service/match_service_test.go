package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/vedran77/mentormatch/internal/apperr"
	"github.com/vedran77/mentormatch/internal/domain"
	"github.com/vedran77/mentormatch/internal/metrics"
	"github.com/vedran77/mentormatch/internal/repository"
	"github.com/vedran77/mentormatch/internal/repository/memory"
)

type MatchServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	metrics *metrics.Metrics
	svc     *MatchService
}

func TestMatchServiceSuite(t *testing.T) {
	suite.Run(t, new(MatchServiceSuite))
}

func (s *MatchServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.svc = NewMatchService(s.store, s.store.Requests(), WithMetrics(s.metrics))
}

func (s *MatchServiceSuite) user(role domain.Role) domain.Principal {
	return seedUser(s.T(), s.store.Users(), role)
}

func (s *MatchServiceSuite) create(mentee, mentor domain.Principal) *domain.MatchRequest {
	req, err := s.svc.Create(s.ctx, mentee, CreateRequestInput{MentorID: mentor.UserID, Message: "hi"})
	s.Require().NoError(err)
	return req
}

func (s *MatchServiceSuite) status(id uuid.UUID) domain.MatchStatus {
	req, err := s.store.Requests().GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(req)
	return req.Status
}

// assertLedgerRules checks the accepted-per-mentor and active-per-mentee
// limits over everything stored.
func (s *MatchServiceSuite) assertLedgerRules(mentors, mentees []domain.Principal) {
	for _, m := range mentors {
		reqs, err := s.store.Requests().ListByMentor(s.ctx, m.UserID)
		s.Require().NoError(err)
		accepted := 0
		for _, r := range reqs {
			if r.Status == domain.MatchAccepted {
				accepted++
			}
		}
		s.LessOrEqual(accepted, 1, "mentor %s", m.UserID)
	}
	for _, e := range mentees {
		reqs, err := s.store.Requests().ListByMentee(s.ctx, e.UserID)
		s.Require().NoError(err)
		active := 0
		for _, r := range reqs {
			if r.Status.IsActive() {
				active++
			}
		}
		s.LessOrEqual(active, 1, "mentee %s", e.UserID)
	}
}

func (s *MatchServiceSuite) TestEndToEndScenario() {
	x := s.user(domain.RoleMentor)
	a := s.user(domain.RoleMentee)
	b := s.user(domain.RoleMentee)
	c := s.user(domain.RoleMentee)

	reqA := s.create(a, x)
	s.Equal(domain.MatchPending, reqA.Status)
	s.Equal("hi", reqA.Message)
	reqB := s.create(b, x)
	s.Equal(domain.MatchPending, reqB.Status)

	accepted, err := s.svc.Accept(s.ctx, x, reqA.ID)
	s.Require().NoError(err)
	s.Equal(domain.MatchAccepted, accepted.Status)
	s.Equal(domain.MatchRejected, s.status(reqB.ID))

	_, err = s.svc.Create(s.ctx, c, CreateRequestInput{MentorID: x.UserID, Message: "me too"})
	s.ErrorIs(err, ErrMentorUnavailable)
	s.ErrorIs(err, apperr.ErrConflict)

	cancelled, err := s.svc.Cancel(s.ctx, a, reqA.ID)
	s.Require().NoError(err)
	s.Equal(domain.MatchCancelled, cancelled.Status)

	reqC := s.create(c, x)
	s.Equal(domain.MatchPending, reqC.Status)

	s.assertLedgerRules([]domain.Principal{x}, []domain.Principal{a, b, c})
}

func (s *MatchServiceSuite) TestCreate() {
	mentor := s.user(domain.RoleMentor)

	s.Run("mentor cannot create", func() {
		_, err := s.svc.Create(s.ctx, mentor, CreateRequestInput{MentorID: mentor.UserID})
		s.ErrorIs(err, apperr.ErrForbidden)
	})

	s.Run("menteeId must be the caller", func() {
		mentee := s.user(domain.RoleMentee)
		other := uuid.New()
		_, err := s.svc.Create(s.ctx, mentee, CreateRequestInput{MentorID: mentor.UserID, MenteeID: &other})
		s.ErrorIs(err, ErrForeignMentee)
	})

	s.Run("message too long", func() {
		mentee := s.user(domain.RoleMentee)
		long := make([]byte, domain.MaxMessageLength+1)
		for i := range long {
			long[i] = 'a'
		}
		_, err := s.svc.Create(s.ctx, mentee, CreateRequestInput{MentorID: mentor.UserID, Message: string(long)})
		s.ErrorIs(err, apperr.ErrValidation)
		var appErr *apperr.Error
		s.Require().ErrorAs(err, &appErr)
		s.Contains(appErr.Fields, "message")
	})

	s.Run("unknown mentor", func() {
		mentee := s.user(domain.RoleMentee)
		_, err := s.svc.Create(s.ctx, mentee, CreateRequestInput{MentorID: uuid.New()})
		s.ErrorIs(err, ErrMentorNotFound)
	})

	s.Run("target is a mentee", func() {
		mentee := s.user(domain.RoleMentee)
		other := s.user(domain.RoleMentee)
		_, err := s.svc.Create(s.ctx, mentee, CreateRequestInput{MentorID: other.UserID})
		s.ErrorIs(err, ErrMentorNotFound)
	})

	s.Run("second active request", func() {
		mentee := s.user(domain.RoleMentee)
		s.create(mentee, mentor)
		otherMentor := s.user(domain.RoleMentor)
		_, err := s.svc.Create(s.ctx, mentee, CreateRequestInput{MentorID: otherMentor.UserID})
		s.ErrorIs(err, ErrActiveRequestExists)
	})

	s.Run("message is sanitised", func() {
		m := s.user(domain.RoleMentor)
		mentee := s.user(domain.RoleMentee)
		req, err := s.svc.Create(s.ctx, mentee, CreateRequestInput{MentorID: m.UserID, Message: "  hello\x00 "})
		s.Require().NoError(err)
		s.Equal("hello", req.Message)
	})
}

func (s *MatchServiceSuite) TestCascadeLeavesOtherMentorsAlone() {
	x := s.user(domain.RoleMentor)
	y := s.user(domain.RoleMentor)
	a := s.user(domain.RoleMentee)
	b := s.user(domain.RoleMentee)
	c := s.user(domain.RoleMentee)

	reqA := s.create(a, x)
	reqB := s.create(b, x)
	reqC := s.create(c, y)

	_, err := s.svc.Accept(s.ctx, x, reqB.ID)
	s.Require().NoError(err)

	s.Equal(domain.MatchRejected, s.status(reqA.ID))
	s.Equal(domain.MatchAccepted, s.status(reqB.ID))
	s.Equal(domain.MatchPending, s.status(reqC.ID))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CascadeRejected))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Operations.WithLabelValues("accept", "ok")))
}

func (s *MatchServiceSuite) TestAccept() {
	x := s.user(domain.RoleMentor)
	a := s.user(domain.RoleMentee)
	req := s.create(a, x)

	s.Run("mentee cannot accept", func() {
		_, err := s.svc.Accept(s.ctx, a, req.ID)
		s.ErrorIs(err, apperr.ErrForbidden)
	})

	s.Run("other mentor sees not found", func() {
		y := s.user(domain.RoleMentor)
		_, err := s.svc.Accept(s.ctx, y, req.ID)
		s.ErrorIs(err, ErrRequestNotFound)
		s.Equal(domain.MatchPending, s.status(req.ID))
	})

	s.Run("unknown request", func() {
		_, err := s.svc.Accept(s.ctx, x, uuid.New())
		s.ErrorIs(err, ErrRequestNotFound)
	})

	s.Run("accept twice", func() {
		_, err := s.svc.Accept(s.ctx, x, req.ID)
		s.Require().NoError(err)
		_, err = s.svc.Accept(s.ctx, x, req.ID)
		s.ErrorIs(err, ErrRequestNotPending)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.Operations.WithLabelValues("accept", "conflict")))
	})
}

func (s *MatchServiceSuite) TestReject() {
	x := s.user(domain.RoleMentor)
	a := s.user(domain.RoleMentee)
	b := s.user(domain.RoleMentee)
	reqA := s.create(a, x)
	reqB := s.create(b, x)

	rejected, err := s.svc.Reject(s.ctx, x, reqA.ID)
	s.Require().NoError(err)
	s.Equal(domain.MatchRejected, rejected.Status)
	s.Equal(domain.MatchPending, s.status(reqB.ID))

	_, err = s.svc.Reject(s.ctx, x, reqA.ID)
	s.ErrorIs(err, ErrRequestNotPending)

	_, err = s.svc.Cancel(s.ctx, a, reqA.ID)
	s.ErrorIs(err, ErrRequestClosed)
	s.Equal(domain.MatchRejected, s.status(reqA.ID))

	// a rejected request no longer blocks the mentee
	s.create(a, x)
}

func (s *MatchServiceSuite) TestCancel() {
	x := s.user(domain.RoleMentor)
	a := s.user(domain.RoleMentee)
	b := s.user(domain.RoleMentee)

	s.Run("pending request", func() {
		req := s.create(a, x)
		_, err := s.svc.Cancel(s.ctx, a, req.ID)
		s.Require().NoError(err)

		_, err = s.svc.Cancel(s.ctx, a, req.ID)
		s.ErrorIs(err, ErrAlreadyCancelled)
		s.ErrorIs(err, apperr.ErrConflict)
		s.Equal(domain.MatchCancelled, s.status(req.ID))
	})

	s.Run("not owner", func() {
		req := s.create(a, x)
		_, err := s.svc.Cancel(s.ctx, b, req.ID)
		s.ErrorIs(err, ErrRequestNotFound)
		_, err = s.svc.Cancel(s.ctx, x, req.ID)
		s.ErrorIs(err, apperr.ErrForbidden)
	})

	s.Run("accepted request frees the mentor", func() {
		outgoing, err := s.svc.ListOutgoing(s.ctx, a)
		s.Require().NoError(err)
		current := outgoing[len(outgoing)-1]
		_, err = s.svc.Accept(s.ctx, x, current.ID)
		s.Require().NoError(err)

		_, err = s.svc.Create(s.ctx, b, CreateRequestInput{MentorID: x.UserID})
		s.ErrorIs(err, ErrMentorUnavailable)

		_, err = s.svc.Cancel(s.ctx, a, current.ID)
		s.Require().NoError(err)

		reqB := s.create(b, x)
		_, err = s.svc.Accept(s.ctx, x, reqB.ID)
		s.Require().NoError(err)
	})
}

func (s *MatchServiceSuite) TestLists() {
	x := s.user(domain.RoleMentor)
	a := s.user(domain.RoleMentee)
	b := s.user(domain.RoleMentee)

	incoming, err := s.svc.ListIncoming(s.ctx, x)
	s.Require().NoError(err)
	s.NotNil(incoming)
	s.Empty(incoming)

	reqA := s.create(a, x)
	reqB := s.create(b, x)

	incoming, err = s.svc.ListIncoming(s.ctx, x)
	s.Require().NoError(err)
	s.Require().Len(incoming, 2)
	s.Equal(reqA.ID, incoming[0].ID)
	s.Equal(reqB.ID, incoming[1].ID)

	outgoing, err := s.svc.ListOutgoing(s.ctx, a)
	s.Require().NoError(err)
	s.Require().Len(outgoing, 1)
	s.Equal(reqA.ID, outgoing[0].ID)

	_, err = s.svc.ListIncoming(s.ctx, a)
	s.ErrorIs(err, apperr.ErrForbidden)
	_, err = s.svc.ListOutgoing(s.ctx, x)
	s.ErrorIs(err, apperr.ErrForbidden)
}

func (s *MatchServiceSuite) TestConcurrentAccepts() {
	const n = 16
	x := s.user(domain.RoleMentor)
	y := s.user(domain.RoleMentor)
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = s.create(s.user(domain.RoleMentee), x).ID
	}
	untouched := s.create(s.user(domain.RoleMentee), y)

	var ok, conflicts atomic.Int32
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, err := s.svc.Accept(s.ctx, x, id)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperr.ErrConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(n-1), conflicts.Load())

	var accepted, rejected int
	for _, id := range ids {
		switch s.status(id) {
		case domain.MatchAccepted:
			accepted++
		case domain.MatchRejected:
			rejected++
		}
	}
	s.Equal(1, accepted)
	s.Equal(n-1, rejected)
	s.Equal(domain.MatchPending, s.status(untouched.ID))
}

func (s *MatchServiceSuite) TestConcurrentCreates() {
	x := s.user(domain.RoleMentor)
	a := s.user(domain.RoleMentee)

	var wg sync.WaitGroup
	var ok atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.svc.Create(s.ctx, a, CreateRequestInput{MentorID: x.UserID}); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.assertLedgerRules([]domain.Principal{x}, []domain.Principal{a})
}

func (s *MatchServiceSuite) TestCascadeFailureRollsBack() {
	x := s.user(domain.RoleMentor)
	a := s.user(domain.RoleMentee)
	b := s.user(domain.RoleMentee)
	reqA := s.create(a, x)
	reqB := s.create(b, x)

	faulty := NewMatchService(failingCascade{s.store}, s.store.Requests(), WithMetrics(s.metrics))
	_, err := faulty.Accept(s.ctx, x, reqA.ID)
	s.ErrorIs(err, apperr.ErrInternal)

	s.Equal(domain.MatchPending, s.status(reqA.ID))
	s.Equal(domain.MatchPending, s.status(reqB.ID))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Operations.WithLabelValues("accept", "internal")))
}

func (s *MatchServiceSuite) TestAcceptAndCascade() {
	x := s.user(domain.RoleMentor)
	reqs := make([]*domain.MatchRequest, 3)
	for i := range reqs {
		reqs[i] = s.create(s.user(domain.RoleMentee), x)
	}

	err := s.store.RunInTx(s.ctx, func(st repository.Stores) error {
		n, err := acceptAndCascade(s.ctx, st.Requests, reqs[1])
		s.Equal(int64(2), n)
		return err
	})
	s.Require().NoError(err)
	s.Equal(domain.MatchRejected, s.status(reqs[0].ID))
	s.Equal(domain.MatchAccepted, s.status(reqs[1].ID))
	s.Equal(domain.MatchRejected, s.status(reqs[2].ID))
}

// failingCascade hands out a request repository whose cascade step fails
// after the accept has been written.
type failingCascade struct {
	inner repository.Transactor
}

func (f failingCascade) RunInTx(ctx context.Context, fn func(repository.Stores) error) error {
	return f.inner.RunInTx(ctx, func(st repository.Stores) error {
		st.Requests = failingRequests{st.Requests}
		return fn(st)
	})
}

type failingRequests struct {
	repository.MatchRequestRepository
}

func (failingRequests) RejectPendingByMentor(context.Context, uuid.UUID, uuid.UUID) (int64, error) {
	return 0, errors.New("connection reset")
}

func seedUser(t *testing.T, users repository.UserRepository, role domain.Role) domain.Principal {
	t.Helper()
	now := time.Now()
	id := uuid.New()
	u := &domain.User{
		ID:        id,
		Email:     id.String() + "@example.com",
		Name:      string(role) + " " + id.String()[:8],
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if role == domain.RoleMentor {
		u.Skills = []string{}
	}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return domain.Principal{UserID: id, Role: role}
}
