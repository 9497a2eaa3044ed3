package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vedran77/mentormatch/internal/apperr"
	"github.com/vedran77/mentormatch/internal/domain"
	"github.com/vedran77/mentormatch/internal/logger"
	"github.com/vedran77/mentormatch/internal/metrics"
	"github.com/vedran77/mentormatch/internal/repository"
	"github.com/vedran77/mentormatch/pkg/validator"
)

var (
	ErrMentorNotFound      = apperr.New(apperr.KindNotFound, "mentor not found")
	ErrRequestNotFound     = apperr.New(apperr.KindNotFound, "match request not found")
	ErrCannotRequestSelf   = apperr.New(apperr.KindConflict, "cannot send a match request to yourself")
	ErrActiveRequestExists = apperr.New(apperr.KindConflict, "you already have an active match request")
	ErrMentorUnavailable   = apperr.New(apperr.KindConflict, "mentor already has an accepted mentee")
	ErrRequestNotPending   = apperr.New(apperr.KindConflict, "match request is not pending")
	ErrAlreadyCancelled    = apperr.New(apperr.KindConflict, "match request is already cancelled")
	ErrRequestClosed       = apperr.New(apperr.KindConflict, "match request is already closed")
	ErrForeignMentee       = apperr.New(apperr.KindForbidden, "cannot send a match request for another mentee")
)

type CreateRequestInput struct {
	MentorID uuid.UUID  `json:"mentorId"`
	MenteeID *uuid.UUID `json:"menteeId,omitempty"`
	Message  string     `json:"message"`
}

// MatchService is the match request ledger. Every mutation runs in one
// transaction and re-checks the one-accepted-per-mentor and
// one-active-per-mentee rules against committed state.
type MatchService struct {
	tx       repository.Transactor
	requests repository.MatchRequestRepository
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

type MatchOption func(s *MatchService)

func WithLogger(logger *slog.Logger) MatchOption {
	return func(s *MatchService) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) MatchOption {
	return func(s *MatchService) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) MatchOption {
	return func(s *MatchService) {
		s.now = now
	}
}

func NewMatchService(tx repository.Transactor, requests repository.MatchRequestRepository, opts ...MatchOption) *MatchService {
	s := &MatchService{
		tx:       tx,
		requests: requests,
		logger:   logger.Discard(),
		tracer:   otel.Tracer("github.com/vedran77/mentormatch/internal/service"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a pending request from the calling mentee to a mentor.
func (s *MatchService) Create(ctx context.Context, caller domain.Principal, input CreateRequestInput) (*domain.MatchRequest, error) {
	var created *domain.MatchRequest
	err := s.run(ctx, OpCreateRequest, caller, func(ctx context.Context) error {
		if err := authorize(OpCreateRequest, caller); err != nil {
			return err
		}
		if input.MenteeID != nil && *input.MenteeID != caller.UserID {
			return ErrForeignMentee
		}

		message := validator.CleanText(input.Message)
		if errs := validator.ValidateMessage(message, domain.MaxMessageLength); errs.HasErrors() {
			return apperr.Validation("invalid match request", errs)
		}

		return s.tx.RunInTx(ctx, func(st repository.Stores) error {
			created = nil

			mentor, err := st.Users.GetByID(ctx, input.MentorID)
			if err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to load mentor", err)
			}
			if mentor == nil || mentor.Role != domain.RoleMentor {
				return ErrMentorNotFound
			}
			if mentor.ID == caller.UserID {
				return ErrCannotRequestSelf
			}

			active, err := st.Requests.FindActiveByMentee(ctx, caller.UserID)
			if err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to check active requests", err)
			}
			if active != nil {
				return ErrActiveRequestExists
			}

			accepted, err := st.Requests.FindAcceptedByMentor(ctx, mentor.ID)
			if err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to check mentor availability", err)
			}
			if accepted != nil {
				return ErrMentorUnavailable
			}

			req := domain.NewMatchRequest(mentor.ID, caller.UserID, message, s.now())
			if err := st.Requests.Create(ctx, req); err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to create match request", err)
			}
			created = req
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match request created",
		"request_id", created.ID,
		"mentor_id", created.MentorID,
		"mentee_id", created.MenteeID,
	)
	return created, nil
}

// Accept accepts a pending request and rejects the mentor's other pending
// requests in the same transaction.
func (s *MatchService) Accept(ctx context.Context, caller domain.Principal, requestID uuid.UUID) (*domain.MatchRequest, error) {
	var (
		accepted *domain.MatchRequest
		rejected int64
	)
	err := s.run(ctx, OpAcceptRequest, caller, func(ctx context.Context) error {
		if err := authorize(OpAcceptRequest, caller); err != nil {
			return err
		}

		return s.tx.RunInTx(ctx, func(st repository.Stores) error {
			accepted, rejected = nil, 0

			req, err := loadOwned(ctx, st.Requests, OpAcceptRequest, caller, requestID)
			if err != nil {
				return err
			}
			if req.Status != domain.MatchPending {
				return ErrRequestNotPending
			}

			current, err := st.Requests.FindAcceptedByMentor(ctx, caller.UserID)
			if err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to check accepted requests", err)
			}
			if current != nil && current.ID != req.ID {
				return ErrMentorUnavailable
			}

			n, err := acceptAndCascade(ctx, st.Requests, req)
			if err != nil {
				return err
			}
			accepted, rejected = req, n
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddCascadeRejected(rejected)
	s.logger.InfoContext(ctx, "match request accepted",
		"request_id", accepted.ID,
		"mentor_id", accepted.MentorID,
		"mentee_id", accepted.MenteeID,
		"cascade_rejected", rejected,
	)
	return accepted, nil
}

// Reject declines a single pending request. Other requests are untouched.
func (s *MatchService) Reject(ctx context.Context, caller domain.Principal, requestID uuid.UUID) (*domain.MatchRequest, error) {
	var rejected *domain.MatchRequest
	err := s.run(ctx, OpRejectRequest, caller, func(ctx context.Context) error {
		if err := authorize(OpRejectRequest, caller); err != nil {
			return err
		}

		return s.tx.RunInTx(ctx, func(st repository.Stores) error {
			rejected = nil

			req, err := loadOwned(ctx, st.Requests, OpRejectRequest, caller, requestID)
			if err != nil {
				return err
			}
			if err := req.TransitionTo(domain.MatchRejected); err != nil {
				return ErrRequestNotPending
			}
			if err := st.Requests.UpdateStatus(ctx, req.ID, req.Status); err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to reject match request", err)
			}
			rejected = req
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match request rejected", "request_id", rejected.ID, "mentor_id", rejected.MentorID)
	return rejected, nil
}

// Cancel withdraws the caller's pending or accepted request. Cancelling an
// accepted request frees the mentor for a new mentee.
func (s *MatchService) Cancel(ctx context.Context, caller domain.Principal, requestID uuid.UUID) (*domain.MatchRequest, error) {
	var cancelled *domain.MatchRequest
	err := s.run(ctx, OpCancelRequest, caller, func(ctx context.Context) error {
		if err := authorize(OpCancelRequest, caller); err != nil {
			return err
		}

		return s.tx.RunInTx(ctx, func(st repository.Stores) error {
			cancelled = nil

			req, err := loadOwned(ctx, st.Requests, OpCancelRequest, caller, requestID)
			if err != nil {
				return err
			}
			if req.Status == domain.MatchCancelled {
				return ErrAlreadyCancelled
			}
			if err := req.TransitionTo(domain.MatchCancelled); err != nil {
				return ErrRequestClosed
			}
			if err := st.Requests.UpdateStatus(ctx, req.ID, req.Status); err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to cancel match request", err)
			}
			cancelled = req
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match request cancelled", "request_id", cancelled.ID, "mentee_id", cancelled.MenteeID)
	return cancelled, nil
}

// ListIncoming returns every request addressed to the calling mentor.
func (s *MatchService) ListIncoming(ctx context.Context, caller domain.Principal) ([]domain.MatchRequest, error) {
	if err := authorize(OpListIncoming, caller); err != nil {
		return nil, err
	}
	reqs, err := s.requests.ListByMentor(ctx, caller.UserID)
	if err != nil {
		return nil, s.internal(ctx, "failed to list incoming requests", err)
	}
	if reqs == nil {
		reqs = []domain.MatchRequest{}
	}
	return reqs, nil
}

// ListOutgoing returns every request sent by the calling mentee.
func (s *MatchService) ListOutgoing(ctx context.Context, caller domain.Principal) ([]domain.MatchRequest, error) {
	if err := authorize(OpListOutgoing, caller); err != nil {
		return nil, err
	}
	reqs, err := s.requests.ListByMentee(ctx, caller.UserID)
	if err != nil {
		return nil, s.internal(ctx, "failed to list outgoing requests", err)
	}
	if reqs == nil {
		reqs = []domain.MatchRequest{}
	}
	return reqs, nil
}

// acceptAndCascade marks req accepted and rejects every other pending
// request of the same mentor. It must run inside a transaction.
func acceptAndCascade(ctx context.Context, requests repository.MatchRequestRepository, req *domain.MatchRequest) (int64, error) {
	if err := req.TransitionTo(domain.MatchAccepted); err != nil {
		return 0, ErrRequestNotPending
	}
	if err := requests.UpdateStatus(ctx, req.ID, domain.MatchAccepted); err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to accept match request", err)
	}
	n, err := requests.RejectPendingByMentor(ctx, req.MentorID, req.ID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to reject competing requests", err)
	}
	return n, nil
}

// loadOwned fetches a request the caller may act on. Requests owned by
// someone else are reported as missing.
func loadOwned(ctx context.Context, requests repository.MatchRequestRepository, op Operation, caller domain.Principal, id uuid.UUID) (*domain.MatchRequest, error) {
	req, err := requests.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load match request", err)
	}
	if req == nil || !owns(op, caller, req) {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// run wraps one ledger operation with a span, metrics and error
// classification. Unclassified errors become Internal and are logged.
func (s *MatchService) run(ctx context.Context, op Operation, caller domain.Principal, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "ledger."+string(op), trace.WithAttributes(
		attribute.String("caller.id", caller.UserID.String()),
		attribute.String("caller.role", string(caller.Role)),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if errors.Is(err, repository.ErrTxConflict) {
		err = apperr.Wrap(apperr.KindConflict, "match request changed concurrently, try again", err)
	}
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		err = s.internal(ctx, "match request "+string(op)+" failed", err)
	}
	s.metrics.ObserveOperation(string(op), err, start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	}
	return err
}

func (s *MatchService) internal(ctx context.Context, msg string, err error) error {
	s.logger.ErrorContext(ctx, msg, "error", err)
	var classified *apperr.Error
	if errors.As(err, &classified) && classified.Kind == apperr.KindInternal {
		return err
	}
	return apperr.Wrap(apperr.KindInternal, msg, err)
}
