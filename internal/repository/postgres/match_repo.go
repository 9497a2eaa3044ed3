package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vedran77/mentormatch/internal/domain"
)

const requestColumns = `id, mentor_id, mentee_id, message, status, created_at`

type MatchRequestRepo struct {
	db querier
}

func NewMatchRequestRepo(db querier) *MatchRequestRepo {
	return &MatchRequestRepo{db: db}
}

func (r *MatchRequestRepo) Create(ctx context.Context, req *domain.MatchRequest) error {
	query := `
		INSERT INTO match_requests (id, mentor_id, mentee_id, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query, req.ID, req.MentorID, req.MenteeID, req.Message, req.Status, req.CreatedAt)
	return err
}

func (r *MatchRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MatchRequest, error) {
	return r.one(ctx, "SELECT "+requestColumns+" FROM match_requests WHERE id = $1", id)
}

func (r *MatchRequestRepo) ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]domain.MatchRequest, error) {
	return r.list(ctx, "SELECT "+requestColumns+" FROM match_requests WHERE mentor_id = $1 ORDER BY seq", mentorID)
}

func (r *MatchRequestRepo) ListByMentee(ctx context.Context, menteeID uuid.UUID) ([]domain.MatchRequest, error) {
	return r.list(ctx, "SELECT "+requestColumns+" FROM match_requests WHERE mentee_id = $1 ORDER BY seq", menteeID)
}

func (r *MatchRequestRepo) FindActiveByMentee(ctx context.Context, menteeID uuid.UUID) (*domain.MatchRequest, error) {
	return r.one(ctx, `
		SELECT `+requestColumns+`
		FROM match_requests
		WHERE mentee_id = $1 AND status IN ('pending', 'accepted')
		ORDER BY seq
		LIMIT 1`, menteeID)
}

func (r *MatchRequestRepo) FindAcceptedByMentor(ctx context.Context, mentorID uuid.UUID) (*domain.MatchRequest, error) {
	return r.one(ctx, `
		SELECT `+requestColumns+`
		FROM match_requests
		WHERE mentor_id = $1 AND status = 'accepted'
		LIMIT 1`, mentorID)
}

func (r *MatchRequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MatchStatus) error {
	_, err := r.db.Exec(ctx, `UPDATE match_requests SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *MatchRequestRepo) RejectPendingByMentor(ctx context.Context, mentorID, exceptID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE match_requests
		SET status = 'rejected'
		WHERE mentor_id = $1 AND id <> $2 AND status = 'pending'`,
		mentorID, exceptID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MatchRequestRepo) one(ctx context.Context, query string, arg any) (*domain.MatchRequest, error) {
	var req domain.MatchRequest
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&req.ID, &req.MentorID, &req.MenteeID, &req.Message, &req.Status, &req.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *MatchRequestRepo) list(ctx context.Context, query string, arg any) ([]domain.MatchRequest, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []domain.MatchRequest
	for rows.Next() {
		var req domain.MatchRequest
		if err := rows.Scan(
			&req.ID, &req.MentorID, &req.MenteeID, &req.Message, &req.Status, &req.CreatedAt,
		); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}
