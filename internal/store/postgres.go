package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resqlink/backend/internal/models"
)

// PostgresSessionStore persists session records in the sessions table.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionStore creates a SessionStore backed by postgres.
func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

func (s *PostgresSessionStore) Create(ctx context.Context, record *models.SessionRecord) error {
	query := `
		INSERT INTO sessions (session_id, user_id, role, permissions, ip_address, user_agent, device_fingerprint,
			elevated, elevated_until, mfa_verified, last_activity_at, created_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.pool.Exec(ctx, query,
		record.SessionID, record.UserID, string(record.Role), record.Permissions.Names(),
		record.IPAddress, record.UserAgent, record.DeviceFingerprint,
		record.Elevated, record.ElevatedUntil, record.MFAVerified,
		record.LastActivityAt, record.CreatedAt, record.ExpiresAt, record.Revoked,
	)
	return err
}

func (s *PostgresSessionStore) Get(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	query := `
		SELECT session_id, user_id, role, permissions, ip_address, user_agent, device_fingerprint,
			elevated, elevated_until, mfa_verified, last_activity_at, created_at, expires_at, revoked
		FROM sessions WHERE session_id = $1 AND expires_at > now()
	`

	var record models.SessionRecord
	var role string
	var permissions []string

	err := s.pool.QueryRow(ctx, query, sessionID).Scan(
		&record.SessionID, &record.UserID, &role, &permissions,
		&record.IPAddress, &record.UserAgent, &record.DeviceFingerprint,
		&record.Elevated, &record.ElevatedUntil, &record.MFAVerified,
		&record.LastActivityAt, &record.CreatedAt, &record.ExpiresAt, &record.Revoked,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	record.Role = models.Role(role)
	record.Permissions = models.ParsePermissionSet(permissions)
	return &record, nil
}

func (s *PostgresSessionStore) Revoke(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET revoked = true WHERE session_id = $1`
	_, err := s.pool.Exec(ctx, query, sessionID)
	return err
}

func (s *PostgresSessionStore) SetElevated(ctx context.Context, sessionID string, until time.Time) error {
	query := `
		UPDATE sessions SET elevated = true, elevated_until = $2, mfa_verified = true
		WHERE session_id = $1
	`
	result, err := s.pool.Exec(ctx, query, sessionID, until)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PostgresSessionStore) TouchActivity(ctx context.Context, sessionID string, at time.Time) error {
	query := `UPDATE sessions SET last_activity_at = $2 WHERE session_id = $1`
	result, err := s.pool.Exec(ctx, query, sessionID, at)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= $1`
	result, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

var _ SessionStore = (*PostgresSessionStore)(nil)

// PostgresAttemptStore persists failure counters in the login_attempts
// table. The upsert increments count, applies the window reset, and sets
// locked_until in a single statement, so concurrent attempts against one
// identifier serialize on the row lock.
type PostgresAttemptStore struct {
	pool  *pgxpool.Pool
	clock Clock
}

// NewPostgresAttemptStore creates an AttemptStore backed by postgres.
func NewPostgresAttemptStore(pool *pgxpool.Pool, clock Clock) *PostgresAttemptStore {
	return &PostgresAttemptStore{pool: pool, clock: clock}
}

func (s *PostgresAttemptStore) IncrementFailure(ctx context.Context, identifier string, policy LockoutPolicy) (*models.LoginAttemptRecord, error) {
	now := s.clock.Now()
	windowStart := now.Add(-policy.Window)
	lockUntil := now.Add(policy.LockoutDuration)

	query := `
		INSERT INTO login_attempts (identifier, failure_count, last_failure_at, locked_until)
		VALUES ($1, 1, $2, CASE WHEN 1 >= $4 THEN $5::timestamptz ELSE NULL END)
		ON CONFLICT (identifier) DO UPDATE SET
			failure_count = CASE
				WHEN login_attempts.last_failure_at < $3 THEN 1
				ELSE login_attempts.failure_count + 1
			END,
			last_failure_at = $2,
			locked_until = CASE
				WHEN (CASE WHEN login_attempts.last_failure_at < $3 THEN 1 ELSE login_attempts.failure_count + 1 END) >= $4 THEN $5::timestamptz
				WHEN login_attempts.last_failure_at < $3 THEN NULL
				ELSE login_attempts.locked_until
			END
		RETURNING identifier, failure_count, last_failure_at, locked_until
	`

	var record models.LoginAttemptRecord
	err := s.pool.QueryRow(ctx, query, identifier, now, windowStart, policy.MaxAttempts, lockUntil).Scan(
		&record.Identifier, &record.FailureCount, &record.LastFailureAt, &record.LockedUntil,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *PostgresAttemptStore) Get(ctx context.Context, identifier string) (*models.LoginAttemptRecord, error) {
	query := `
		SELECT identifier, failure_count, last_failure_at, locked_until
		FROM login_attempts WHERE identifier = $1
	`

	var record models.LoginAttemptRecord
	err := s.pool.QueryRow(ctx, query, identifier).Scan(
		&record.Identifier, &record.FailureCount, &record.LastFailureAt, &record.LockedUntil,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *PostgresAttemptStore) Clear(ctx context.Context, identifier string) error {
	query := `DELETE FROM login_attempts WHERE identifier = $1`
	_, err := s.pool.Exec(ctx, query, identifier)
	return err
}

func (s *PostgresAttemptStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM login_attempts
		WHERE last_failure_at <= $1 AND (locked_until IS NULL OR locked_until <= $2)
	`
	result, err := s.pool.Exec(ctx, query, cutoff, s.clock.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

var _ AttemptStore = (*PostgresAttemptStore)(nil)
