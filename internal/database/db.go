package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/resqlink/backend/internal/models"
)

// MapPostgresError translates pgx failures into the service's sentinel
// errors, so repositories and stores never leak SQLSTATE codes to the
// auth flow. A duplicate email surfaces as ErrConflict; a session row
// pointing at a deleted user, or a null in a required column, as
// ErrBadRequest. Anything unrecognized passes through for the caller to
// log.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation (users.email)
			return models.ErrConflict
		case "23503": // foreign_key_violation (sessions.user_id)
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		}
	}

	return err
}

// WithTransaction runs fn inside a transaction, rolling back on error or
// panic. Single-statement writes (the lockout upsert, session updates)
// don't need this; it exists for multi-row account operations.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}
