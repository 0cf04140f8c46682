// Package postgres implements store.Store on PostgreSQL through sqlx and
// lib/pq. Capacity checks rely on LockRide taking a row lock (SELECT ...
// FOR UPDATE) inside WithTx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/carwave/carpool/internal/store"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

// Store is backed by a sqlx connection pool
type Store struct {
	queries
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// New wraps db
func New(db *sqlx.DB) *Store {
	return &Store{queries: queries{ext: db}, db: db}
}

// WithTx runs fn in a READ COMMITTED transaction. Row locks taken through
// LockRide are held until commit or rollback.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, q store.Queries) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, queries{ext: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// queries runs against either the pool or a transaction
type queries struct {
	ext sqlx.ExtContext
}

// Postgres error codes we translate
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// foreignKeys maps default constraint names to the missing parent
var foreignKeys = map[string]*apperrors.AppError{
	"cars_owner_id_fkey":               apperrors.ErrUserNotFound,
	"rides_driver_id_fkey":             apperrors.ErrUserNotFound,
	"rides_car_plate_fkey":             apperrors.ErrCarNotFound,
	"passenger_requests_ride_id_fkey":  apperrors.ErrRideNotFound,
	"passenger_requests_rider_id_fkey": apperrors.ErrUserNotFound,
	"reviews_author_id_fkey":           apperrors.ErrUserNotFound,
	"reviews_subject_id_fkey":          apperrors.ErrUserNotFound,
}

// translate maps constraint violations to domain errors. conflict is
// returned for unique violations; anything else is wrapped with op.
func translate(err error, op string, conflict *apperrors.AppError) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			if conflict != nil {
				return conflict
			}
		case codeForeignKeyViolation:
			if missing, ok := foreignKeys[pqErr.Constraint]; ok {
				return missing
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notFound maps sql.ErrNoRows to missing, wrapping anything else with op
func notFound(err error, op string, missing *apperrors.AppError) error {
	if errors.Is(err, sql.ErrNoRows) {
		return missing
	}
	return fmt.Errorf("%s: %w", op, err)
}

// execOne runs an UPDATE/DELETE expected to touch exactly one row
func (q queries) execOne(ctx context.Context, op string, missing, conflict *apperrors.AppError, query string, args ...interface{}) error {
	res, err := q.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err, op, conflict)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

// limitArg turns a non-positive limit into NULL, which LIMIT treats as none
func limitArg(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}
