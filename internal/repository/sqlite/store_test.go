package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/vedran77/mentormatch/internal/apperr"
	"github.com/vedran77/mentormatch/internal/domain"
	"github.com/vedran77/mentormatch/internal/repository"
	"github.com/vedran77/mentormatch/internal/service"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	path  string
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.path = filepath.Join(s.T().TempDir(), "mentormatch.db")

	store, err := Open(s.ctx, s.path)
	s.Require().NoError(err)
	s.store = store
}

func (s *StoreSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *StoreSuite) newUser(role domain.Role, skills ...string) *domain.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	id := uuid.New()
	u := &domain.User{
		ID:           id,
		Email:        id.String() + "@example.com",
		PasswordHash: "x",
		Name:         "user " + id.String()[:8],
		Role:         role,
		Skills:       skills,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.Require().NoError(s.store.Users().Create(s.ctx, u))
	return u
}

func (s *StoreSuite) TestReopenKeepsDataAndSkipsMigrations() {
	u := s.newUser(domain.RoleMentor, "go")
	s.Require().NoError(s.store.Close())

	store, err := Open(s.ctx, s.path)
	s.Require().NoError(err)
	s.store = store

	got, err := s.store.Users().GetByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(u.CreatedAt, got.CreatedAt)
	s.Equal([]string{"go"}, got.Skills)
}

func (s *StoreSuite) TestUsers() {
	mentor := s.newUser(domain.RoleMentor)
	mentee := s.newUser(domain.RoleMentee)

	err := s.store.Users().Create(s.ctx, &domain.User{
		ID: uuid.New(), Email: mentor.Email, PasswordHash: "x", Name: "dup", Role: domain.RoleMentee,
	})
	s.ErrorIs(err, repository.ErrDuplicateEmail)

	got, err := s.store.Users().GetByEmail(s.ctx, mentee.Email)
	s.Require().NoError(err)
	s.Nil(got.Skills)

	missing, err := s.store.Users().GetByEmail(s.ctx, "nobody@example.com")
	s.NoError(err)
	s.Nil(missing)

	err = s.store.Users().Update(s.ctx, &domain.User{ID: uuid.New(), Name: "ghost"})
	s.ErrorIs(err, repository.ErrUserNotFound)

	mentor.Skills = []string{}
	mentor.Avatar = []byte{0x89, 'P', 'N', 'G'}
	mentor.AvatarType = "image/png"
	s.Require().NoError(s.store.Users().Update(s.ctx, mentor))

	mentors, err := s.store.Users().ListMentors(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(mentors, 1)
	s.NotNil(mentors[0].Skills)
	s.Empty(mentors[0].Skills)
	s.Equal(mentor.Avatar, mentors[0].Avatar)
}

func (s *StoreSuite) TestRequestsAndCascade() {
	mentor := s.newUser(domain.RoleMentor)
	other := s.newUser(domain.RoleMentor)
	var ids []uuid.UUID
	for range 3 {
		mentee := s.newUser(domain.RoleMentee)
		req := domain.NewMatchRequest(mentor.ID, mentee.ID, "hi", time.Now())
		s.Require().NoError(s.store.Requests().Create(s.ctx, req))
		ids = append(ids, req.ID)
	}
	elsewhere := domain.NewMatchRequest(other.ID, s.newUser(domain.RoleMentee).ID, "", time.Now())
	s.Require().NoError(s.store.Requests().Create(s.ctx, elsewhere))

	err := s.store.RunInTx(s.ctx, func(st repository.Stores) error {
		if err := st.Requests.UpdateStatus(s.ctx, ids[0], domain.MatchAccepted); err != nil {
			return err
		}
		n, err := st.Requests.RejectPendingByMentor(s.ctx, mentor.ID, ids[0])
		s.Equal(int64(2), n)
		return err
	})
	s.Require().NoError(err)

	reqs, err := s.store.Requests().ListByMentor(s.ctx, mentor.ID)
	s.Require().NoError(err)
	s.Require().Len(reqs, 3)
	s.Equal(ids[0], reqs[0].ID)
	s.Equal(domain.MatchAccepted, reqs[0].Status)
	s.Equal(domain.MatchRejected, reqs[1].Status)
	s.Equal(domain.MatchRejected, reqs[2].Status)

	accepted, err := s.store.Requests().FindAcceptedByMentor(s.ctx, mentor.ID)
	s.Require().NoError(err)
	s.Equal(ids[0], accepted.ID)

	got, err := s.store.Requests().GetByID(s.ctx, elsewhere.ID)
	s.Require().NoError(err)
	s.Equal(domain.MatchPending, got.Status)
}

func (s *StoreSuite) TestRollback() {
	mentor := s.newUser(domain.RoleMentor)
	mentee := s.newUser(domain.RoleMentee)
	req := domain.NewMatchRequest(mentor.ID, mentee.ID, "", time.Now())
	s.Require().NoError(s.store.Requests().Create(s.ctx, req))

	boom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, func(st repository.Stores) error {
		s.Require().NoError(st.Requests.UpdateStatus(s.ctx, req.ID, domain.MatchAccepted))
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.Requests().GetByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(domain.MatchPending, got.Status)
}

func (s *StoreSuite) TestPanicInTxReleasesConnection() {
	u := s.newUser(domain.RoleMentee)

	s.Panics(func() {
		_ = s.store.RunInTx(s.ctx, func(st repository.Stores) error {
			u.Name = "half written"
			s.Require().NoError(st.Users.Update(s.ctx, u))
			panic("boom")
		})
	})

	ctx, cancel := context.WithTimeout(s.ctx, 500*time.Millisecond)
	defer cancel()
	got, err := s.store.Users().GetByID(ctx, u.ID)
	s.Require().NoError(err)
	s.NotEqual("half written", got.Name)
}

func (s *StoreSuite) TestCreatedAtSurvivesReadBack() {
	clock := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	svc := service.NewMatchService(s.store, s.store.Requests(),
		service.WithClock(func() time.Time { return clock }))
	mentor := s.newUser(domain.RoleMentor)
	mentee := s.newUser(domain.RoleMentee)
	caller := domain.Principal{UserID: mentee.ID, Role: domain.RoleMentee}

	created, err := svc.Create(s.ctx, caller, service.CreateRequestInput{MentorID: mentor.ID})
	s.Require().NoError(err)

	outgoing, err := svc.ListOutgoing(s.ctx, caller)
	s.Require().NoError(err)
	s.Require().Len(outgoing, 1)
	s.Equal(created.CreatedAt, outgoing[0].CreatedAt)
	s.Equal(time.Date(2026, 1, 2, 3, 4, 5, 123000000, time.UTC), created.CreatedAt)
}

func (s *StoreSuite) TestLedgerIndexes() {
	mentor := s.newUser(domain.RoleMentor)
	other := s.newUser(domain.RoleMentor)
	mentee := s.newUser(domain.RoleMentee)

	s.Require().NoError(s.store.Requests().Create(s.ctx, domain.NewMatchRequest(mentor.ID, mentee.ID, "", time.Now())))
	err := s.store.Requests().Create(s.ctx, domain.NewMatchRequest(other.ID, mentee.ID, "", time.Now()))
	s.True(isUniqueViolation(err, "match_requests.mentee_id"))
}

func (s *StoreSuite) TestConcurrentAccepts() {
	const n = 6
	mentor := s.newUser(domain.RoleMentor)
	svc := service.NewMatchService(s.store, s.store.Requests())

	ids := make([]uuid.UUID, n)
	for i := range ids {
		mentee := s.newUser(domain.RoleMentee)
		req, err := svc.Create(s.ctx, domain.Principal{UserID: mentee.ID, Role: domain.RoleMentee},
			service.CreateRequestInput{MentorID: mentor.ID})
		s.Require().NoError(err)
		ids[i] = req.ID
	}

	caller := domain.Principal{UserID: mentor.ID, Role: domain.RoleMentor}
	var ok, conflicts atomic.Int32
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, err := svc.Accept(s.ctx, caller, id)
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
}

func (s *StoreSuite) TestExtractUpMigration() {
	s.Equal("\nCREATE TABLE a (id INT);\n", extractUpMigration("-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;"))
	s.Equal("SELECT 1;", extractUpMigration("SELECT 1;"))
}
