// Package memory keeps users and match requests in process memory. It backs
// the "memory" storage driver and the service tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/mentormatch/internal/domain"
	"github.com/vedran77/mentormatch/internal/repository"
)

type state struct {
	users     map[uuid.UUID]domain.User
	userOrder []uuid.UUID
	emails    map[string]uuid.UUID
	requests  map[uuid.UUID]domain.MatchRequest
	reqOrder  []uuid.UUID
}

func newState() *state {
	return &state{
		users:    make(map[uuid.UUID]domain.User),
		emails:   make(map[string]uuid.UUID),
		requests: make(map[uuid.UUID]domain.MatchRequest),
	}
}

// clone copies the maps and order slices. Stored values never share slices
// with callers, so copying the structs is enough.
func (s *state) clone() *state {
	c := &state{
		users:     make(map[uuid.UUID]domain.User, len(s.users)),
		userOrder: slices.Clone(s.userOrder),
		emails:    make(map[string]uuid.UUID, len(s.emails)),
		requests:  make(map[uuid.UUID]domain.MatchRequest, len(s.requests)),
		reqOrder:  slices.Clone(s.reqOrder),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	return c
}

// access runs fn against some state. Outside a transaction it takes the
// store lock; inside one it hands over the transaction's draft.
type access func(write bool, fn func(st *state) error) error

// Store is a single-lock in-memory database. Every transaction works on a
// private copy of the committed state and swaps it in only when fn succeeds,
// so a failed cascade leaves nothing behind.
type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) Users() repository.UserRepository {
	return &UserRepo{access: s.committed}
}

func (s *Store) Requests() repository.MatchRequestRepository {
	return &MatchRequestRepo{access: s.committed}
}

func (s *Store) RunInTx(ctx context.Context, fn func(stores repository.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.st.clone()
	inTx := func(_ bool, f func(st *state) error) error {
		return f(draft)
	}

	if err := fn(repository.Stores{
		Users:    &UserRepo{access: inTx},
		Requests: &MatchRequestRepo{access: inTx},
	}); err != nil {
		return err
	}

	s.st = draft
	return nil
}

func (s *Store) committed(write bool, fn func(st *state) error) error {
	if write {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	return fn(s.st)
}
