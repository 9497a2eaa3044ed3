package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/mentormatch/internal/domain"
)

type MatchRequestRepo struct {
	access access
}

func (r *MatchRequestRepo) Create(ctx context.Context, req *domain.MatchRequest) error {
	return r.access(true, func(st *state) error {
		st.requests[req.ID] = *req
		st.reqOrder = append(st.reqOrder, req.ID)
		return nil
	})
}

func (r *MatchRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MatchRequest, error) {
	var found *domain.MatchRequest
	err := r.access(false, func(st *state) error {
		if req, ok := st.requests[id]; ok {
			found = &req
		}
		return nil
	})
	return found, err
}

func (r *MatchRequestRepo) ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]domain.MatchRequest, error) {
	return r.list(func(req domain.MatchRequest) bool { return req.MentorID == mentorID })
}

func (r *MatchRequestRepo) ListByMentee(ctx context.Context, menteeID uuid.UUID) ([]domain.MatchRequest, error) {
	return r.list(func(req domain.MatchRequest) bool { return req.MenteeID == menteeID })
}

func (r *MatchRequestRepo) FindActiveByMentee(ctx context.Context, menteeID uuid.UUID) (*domain.MatchRequest, error) {
	return r.first(func(req domain.MatchRequest) bool {
		return req.MenteeID == menteeID && req.Status.IsActive()
	})
}

func (r *MatchRequestRepo) FindAcceptedByMentor(ctx context.Context, mentorID uuid.UUID) (*domain.MatchRequest, error) {
	return r.first(func(req domain.MatchRequest) bool {
		return req.MentorID == mentorID && req.Status == domain.MatchAccepted
	})
}

func (r *MatchRequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MatchStatus) error {
	return r.access(true, func(st *state) error {
		req, ok := st.requests[id]
		if !ok {
			return nil
		}
		req.Status = status
		st.requests[id] = req
		return nil
	})
}

func (r *MatchRequestRepo) RejectPendingByMentor(ctx context.Context, mentorID, exceptID uuid.UUID) (int64, error) {
	var n int64
	err := r.access(true, func(st *state) error {
		for _, id := range st.reqOrder {
			req := st.requests[id]
			if req.MentorID != mentorID || req.ID == exceptID || req.Status != domain.MatchPending {
				continue
			}
			req.Status = domain.MatchRejected
			st.requests[id] = req
			n++
		}
		return nil
	})
	return n, err
}

func (r *MatchRequestRepo) list(match func(domain.MatchRequest) bool) ([]domain.MatchRequest, error) {
	var out []domain.MatchRequest
	err := r.access(false, func(st *state) error {
		for _, id := range st.reqOrder {
			if req := st.requests[id]; match(req) {
				out = append(out, req)
			}
		}
		return nil
	})
	return out, err
}

func (r *MatchRequestRepo) first(match func(domain.MatchRequest) bool) (*domain.MatchRequest, error) {
	var found *domain.MatchRequest
	err := r.access(false, func(st *state) error {
		for _, id := range st.reqOrder {
			if req := st.requests[id]; match(req) {
				found = &req
				return nil
			}
		}
		return nil
	})
	return found, err
}
