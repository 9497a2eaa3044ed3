package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/mentormatch/internal/domain"
)

// ErrDuplicateEmail is returned by UserRepository.Create when the email is
// already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrUserNotFound is returned by UserRepository.Update when no user has the
// given id.
var ErrUserNotFound = errors.New("user not found")

// ErrTxConflict is returned by Transactor.RunInTx when a transaction kept
// losing to concurrent writers and the retry budget ran out.
var ErrTxConflict = errors.New("transaction conflicted with a concurrent update")

// UserRepository is the Identity Store. Lookups return (nil, nil) on a miss.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Update returns ErrUserNotFound when user.ID is unknown.
	Update(ctx context.Context, user *domain.User) error
	// ListMentors returns every mentor in creation order.
	ListMentors(ctx context.Context) ([]domain.User, error)
}

// MatchRequestRepository persists match requests. Lists return insertion
// order; lookups return (nil, nil) on a miss.
type MatchRequestRepository interface {
	Create(ctx context.Context, req *domain.MatchRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MatchRequest, error)
	ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]domain.MatchRequest, error)
	ListByMentee(ctx context.Context, menteeID uuid.UUID) ([]domain.MatchRequest, error)
	FindActiveByMentee(ctx context.Context, menteeID uuid.UUID) (*domain.MatchRequest, error)
	FindAcceptedByMentor(ctx context.Context, mentorID uuid.UUID) (*domain.MatchRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MatchStatus) error
	// RejectPendingByMentor rejects every pending request of mentorID except
	// exceptID and reports how many rows changed.
	RejectPendingByMentor(ctx context.Context, mentorID, exceptID uuid.UUID) (int64, error)
}

// Stores groups the repositories bound to one transaction.
type Stores struct {
	Users    UserRepository
	Requests MatchRequestRepository
}

// Transactor runs fn atomically against the latest committed state. If fn
// returns an error nothing it wrote is kept. Implementations may call fn more
// than once when they retry on conflict.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(stores Stores) error) error
}

// RevocationList remembers logged-out token ids until they would have expired.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
