package postgres

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vedran77/mentormatch/internal/metrics"
	"github.com/vedran77/mentormatch/internal/repository"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// ledgerIndexes are the partial unique indexes that back the ledger rules.
// Hitting one of them means a concurrent transaction won.
var ledgerIndexes = map[string]bool{
	"match_requests_one_accepted_per_mentor": true,
	"match_requests_one_active_per_mentee":   true,
}

// Store runs ledger transactions at SERIALIZABLE isolation and retries the
// ones Postgres aborts because of concurrent writers.
type Store struct {
	pool       *pgxpool.Pool
	maxRetries int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewStore(pool *pgxpool.Pool, maxRetries int, m *metrics.Metrics, logger *slog.Logger) *Store {
	return &Store{pool: pool, maxRetries: maxRetries, metrics: m, logger: logger}
}

func (s *Store) Users() repository.UserRepository {
	return NewUserRepo(s.pool)
}

func (s *Store) Requests() repository.MatchRequestRepository {
	return NewMatchRequestRepo(s.pool)
}

func (s *Store) RunInTx(ctx context.Context, fn func(stores repository.Stores) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}

	for attempt := 0; ; attempt++ {
		err := pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
			return fn(repository.Stores{
				Users:    NewUserRepo(tx),
				Requests: NewMatchRequestRepo(tx),
			})
		})
		if err == nil || !retryable(err) {
			return err
		}
		if attempt >= s.maxRetries {
			s.logger.WarnContext(ctx, "transaction retries exhausted", "attempts", attempt+1, "error", err)
			return errors.Join(repository.ErrTxConflict, err)
		}

		s.metrics.IncTxRetry()
		if err := backoff(ctx, attempt); err != nil {
			return err
		}
	}
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	case codeUniqueViolation:
		return ledgerIndexes[pgErr.ConstraintName]
	}
	return false
}

func backoff(ctx context.Context, attempt int) error {
	base := time.Duration(1<<min(attempt, 6)) * time.Millisecond
	wait := base + rand.N(base)

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
