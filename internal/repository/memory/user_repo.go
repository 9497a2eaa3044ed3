package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/vedran77/mentormatch/internal/domain"
	"github.com/vedran77/mentormatch/internal/repository"
)

type UserRepo struct {
	access access
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	return r.access(true, func(st *state) error {
		if _, taken := st.emails[user.Email]; taken {
			return repository.ErrDuplicateEmail
		}
		st.users[user.ID] = copyUser(*user)
		st.emails[user.Email] = user.ID
		st.userOrder = append(st.userOrder, user.ID)
		return nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var found *domain.User
	err := r.access(false, func(st *state) error {
		if u, ok := st.users[id]; ok {
			c := copyUser(u)
			found = &c
		}
		return nil
	})
	return found, err
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var found *domain.User
	err := r.access(false, func(st *state) error {
		if id, ok := st.emails[email]; ok {
			c := copyUser(st.users[id])
			found = &c
		}
		return nil
	})
	return found, err
}

func (r *UserRepo) Update(ctx context.Context, user *domain.User) error {
	return r.access(true, func(st *state) error {
		old, ok := st.users[user.ID]
		if !ok {
			return repository.ErrUserNotFound
		}
		// email and role are fixed at signup
		updated := copyUser(*user)
		updated.Email = old.Email
		updated.Role = old.Role
		updated.PasswordHash = old.PasswordHash
		updated.CreatedAt = old.CreatedAt
		st.users[user.ID] = updated
		return nil
	})
}

func (r *UserRepo) ListMentors(ctx context.Context) ([]domain.User, error) {
	var mentors []domain.User
	err := r.access(false, func(st *state) error {
		for _, id := range st.userOrder {
			u := st.users[id]
			if u.Role == domain.RoleMentor {
				mentors = append(mentors, copyUser(u))
			}
		}
		return nil
	})
	return mentors, err
}

func copyUser(u domain.User) domain.User {
	u.Skills = slices.Clone(u.Skills)
	u.Avatar = slices.Clone(u.Avatar)
	return u
}
