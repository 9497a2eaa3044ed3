package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vedran77/mentormatch/internal/domain"
)

const requestColumns = `id, mentor_id, mentee_id, message, status, created_at`

type MatchRequestRepo struct {
	db querier
}

func (r *MatchRequestRepo) Create(ctx context.Context, req *domain.MatchRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO match_requests (id, mentor_id, mentee_id, message, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID.String(), req.MentorID.String(), req.MenteeID.String(),
		req.Message, string(req.Status), toMillis(req.CreatedAt),
	)
	return err
}

func (r *MatchRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MatchRequest, error) {
	return r.one(ctx, "SELECT "+requestColumns+" FROM match_requests WHERE id = ?", id.String())
}

func (r *MatchRequestRepo) ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]domain.MatchRequest, error) {
	return r.list(ctx, "SELECT "+requestColumns+" FROM match_requests WHERE mentor_id = ? ORDER BY seq", mentorID.String())
}

func (r *MatchRequestRepo) ListByMentee(ctx context.Context, menteeID uuid.UUID) ([]domain.MatchRequest, error) {
	return r.list(ctx, "SELECT "+requestColumns+" FROM match_requests WHERE mentee_id = ? ORDER BY seq", menteeID.String())
}

func (r *MatchRequestRepo) FindActiveByMentee(ctx context.Context, menteeID uuid.UUID) (*domain.MatchRequest, error) {
	return r.one(ctx, `
		SELECT `+requestColumns+`
		FROM match_requests
		WHERE mentee_id = ? AND status IN ('pending', 'accepted')
		ORDER BY seq
		LIMIT 1`, menteeID.String())
}

func (r *MatchRequestRepo) FindAcceptedByMentor(ctx context.Context, mentorID uuid.UUID) (*domain.MatchRequest, error) {
	return r.one(ctx, `
		SELECT `+requestColumns+`
		FROM match_requests
		WHERE mentor_id = ? AND status = 'accepted'
		LIMIT 1`, mentorID.String())
}

func (r *MatchRequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MatchStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE match_requests SET status = ? WHERE id = ?`, string(status), id.String())
	return err
}

func (r *MatchRequestRepo) RejectPendingByMentor(ctx context.Context, mentorID, exceptID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE match_requests
		SET status = 'rejected'
		WHERE mentor_id = ? AND id <> ? AND status = 'pending'`,
		mentorID.String(), exceptID.String(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *MatchRequestRepo) one(ctx context.Context, query string, arg any) (*domain.MatchRequest, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *MatchRequestRepo) list(ctx context.Context, query string, arg any) ([]domain.MatchRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []domain.MatchRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func scanRequest(row scanner) (domain.MatchRequest, error) {
	var (
		req                        domain.MatchRequest
		id, mentorID, menteeID, st string
		createdAt                  int64
	)
	if err := row.Scan(&id, &mentorID, &menteeID, &req.Message, &st, &createdAt); err != nil {
		return req, err
	}

	var err error
	if req.ID, err = uuid.Parse(id); err != nil {
		return req, fmt.Errorf("parse request id: %w", err)
	}
	if req.MentorID, err = uuid.Parse(mentorID); err != nil {
		return req, fmt.Errorf("parse mentor id: %w", err)
	}
	if req.MenteeID, err = uuid.Parse(menteeID); err != nil {
		return req, fmt.Errorf("parse mentee id: %w", err)
	}
	req.Status = domain.MatchStatus(st)
	req.CreatedAt = fromMillis(createdAt)
	return req, nil
}
