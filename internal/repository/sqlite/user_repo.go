package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vedran77/mentormatch/internal/domain"
	"github.com/vedran77/mentormatch/internal/repository"
)

const userColumns = `id, email, password_hash, name, role, bio, skills, avatar, avatar_type, created_at, updated_at`

type UserRepo struct {
	db querier
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	skills, err := encodeSkills(user.Skills)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, bio, skills, avatar, avatar_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.Email, user.PasswordHash, user.Name, string(user.Role),
		user.Bio, skills, user.Avatar, user.AvatarType,
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
	)
	if isUniqueViolation(err, "users.email") {
		return repository.ErrDuplicateEmail
	}
	return err
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.one(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id.String())
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.one(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

func (r *UserRepo) Update(ctx context.Context, user *domain.User) error {
	skills, err := encodeSkills(user.Skills)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET name = ?, bio = ?, skills = ?, avatar = ?, avatar_type = ?, updated_at = ?
		WHERE id = ?`,
		user.Name, user.Bio, skills, user.Avatar, user.AvatarType, toMillis(user.UpdatedAt), user.ID.String(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) ListMentors(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE role = 'mentor' ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) one(ctx context.Context, query string, arg any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (domain.User, error) {
	var (
		u                    domain.User
		id, role             string
		skills               sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&id, &u.Email, &u.PasswordHash, &u.Name, &role,
		&u.Bio, &skills, &u.Avatar, &u.AvatarType,
		&createdAt, &updatedAt,
	); err != nil {
		return u, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return u, fmt.Errorf("parse user id: %w", err)
	}
	u.ID = parsed
	u.Role = domain.Role(role)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	if skills.Valid {
		if err := json.Unmarshal([]byte(skills.String), &u.Skills); err != nil {
			return u, fmt.Errorf("decode skills: %w", err)
		}
	}
	return u, nil
}

// encodeSkills stores a nil list as NULL and anything else as a JSON array.
func encodeSkills(skills []string) (sql.NullString, error) {
	if skills == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode skills: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
