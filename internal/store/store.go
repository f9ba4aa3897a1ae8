package store

import (
	"context"
	"time"

	"github.com/resqlink/backend/internal/models"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// LockoutPolicy configures the consecutive-failure gate.
type LockoutPolicy struct {
	MaxAttempts     int           // failures before the identifier locks
	LockoutDuration time.Duration // how long a lock lasts
	Window          time.Duration // failures older than this reset the count
}

// SessionStore holds server-side session records. Implementations must
// make revocation immediately visible to subsequent reads.
type SessionStore interface {
	Create(ctx context.Context, record *models.SessionRecord) error
	Get(ctx context.Context, sessionID string) (*models.SessionRecord, error)
	// Revoke marks a session revoked. Idempotent; revoking a missing
	// session is not an error.
	Revoke(ctx context.Context, sessionID string) error
	// SetElevated flags the session elevated until the given time.
	SetElevated(ctx context.Context, sessionID string, until time.Time) error
	// TouchActivity updates the session's last-activity timestamp.
	TouchActivity(ctx context.Context, sessionID string, at time.Time) error
	// DeleteExpired removes sessions whose expiry is at or before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// AttemptStore holds per-identifier failure counters. IncrementFailure
// must be atomic per key: two concurrent increments for the same
// identifier must serialize, so both observe the true count.
type AttemptStore interface {
	// IncrementFailure bumps the counter for identifier under the given
	// policy and returns the updated record. When the new count reaches
	// policy.MaxAttempts the record's LockedUntil is set in the same
	// atomic step.
	IncrementFailure(ctx context.Context, identifier string, policy LockoutPolicy) (*models.LoginAttemptRecord, error)
	// Get returns the current record, or models.ErrNotFound.
	Get(ctx context.Context, identifier string) (*models.LoginAttemptRecord, error)
	// Clear resets the counter and lock for identifier. Idempotent.
	Clear(ctx context.Context, identifier string) error
	// DeleteStale removes records whose last failure is at or before the
	// cutoff and whose lock has lapsed.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}
