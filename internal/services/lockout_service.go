package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resqlink/backend/internal/models"
	"github.com/resqlink/backend/internal/store"
	pkglogger "github.com/resqlink/backend/pkg/logger"
)

// LockoutService tracks failed login attempts on two axes: per account
// identifier (email) with a tight threshold, and per source IP with a
// looser ceiling that catches spraying across many accounts. Both axes
// share one AttemptStore, namespaced by key prefix.
type LockoutService struct {
	attempts    store.AttemptStore
	emailPolicy store.LockoutPolicy
	ipPolicy    store.LockoutPolicy
	clock       store.Clock
	logger      *slog.Logger
	audit       *pkglogger.AuditLogger
}

// NewLockoutService creates a LockoutService.
func NewLockoutService(attempts store.AttemptStore, emailPolicy, ipPolicy store.LockoutPolicy, clock store.Clock, logger *slog.Logger, audit *pkglogger.AuditLogger) *LockoutService {
	return &LockoutService{
		attempts:    attempts,
		emailPolicy: emailPolicy,
		ipPolicy:    ipPolicy,
		clock:       clock,
		logger:      logger,
		audit:       audit,
	}
}

func emailKey(email string) string { return "email:" + email }
func ipKey(ip string) string       { return "ip:" + ip }

// CheckLocked fails with a LockedError when either the account
// identifier or the source IP is inside a lockout window. The email is
// checked whether or not such an account exists, so the lockout response
// itself cannot be used to probe for accounts.
func (s *LockoutService) CheckLocked(ctx context.Context, email, ip string) error {
	now := s.clock.Now()

	record, err := s.attempts.Get(ctx, emailKey(email))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to read attempt record: %w", err)
	}
	if record != nil && record.IsLocked(now) {
		return &models.LockedError{
			Sentinel:   models.ErrAccountLocked,
			RetryAfter: record.LockedUntil.Sub(now),
		}
	}

	if ip == "" {
		return nil
	}
	record, err = s.attempts.Get(ctx, ipKey(ip))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to read attempt record: %w", err)
	}
	if record != nil && record.IsLocked(now) {
		return &models.LockedError{
			Sentinel:   models.ErrRateLimitExceeded,
			RetryAfter: record.LockedUntil.Sub(now),
		}
	}

	return nil
}

// RecordFailure increments both counters after a failed credential
// check. Each increment is atomic in the store, so concurrent failures
// against one identifier can neither lose counts nor race past the
// threshold.
func (s *LockoutService) RecordFailure(ctx context.Context, email, ip string) error {
	record, err := s.attempts.IncrementFailure(ctx, emailKey(email), s.emailPolicy)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	if record.FailureCount == s.emailPolicy.MaxAttempts {
		// Log only on the crossing attempt, not every attempt past it
		s.logger.Warn("account lockout applied",
			slog.String("identifier", pkglogger.SanitizedEmail(email)),
			slog.Time("locked_until", *record.LockedUntil))
		s.audit.LogAccountAction("account_locked", "", ip, map[string]string{
			"identifier": pkglogger.SanitizedEmail(email),
		})
	}

	if ip == "" {
		return nil
	}
	record, err = s.attempts.IncrementFailure(ctx, ipKey(ip), s.ipPolicy)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	if record.FailureCount == s.ipPolicy.MaxAttempts {
		s.logger.Warn("source ip lockout applied",
			slog.String("ip_address", ip),
			slog.Time("locked_until", *record.LockedUntil))
		s.audit.LogAccountAction("ip_locked", "", ip, nil)
	}

	return nil
}

// ClearFailures resets the account counter after a successful login. The
// IP counter is left alone: a success on one account says nothing about
// spraying across others.
func (s *LockoutService) ClearFailures(ctx context.Context, email string) error {
	if err := s.attempts.Clear(ctx, emailKey(email)); err != nil {
		return fmt.Errorf("failed to clear attempt record: %w", err)
	}
	return nil
}

// SweepStale deletes attempt records that are unlocked and past the
// retention cutoff. Called from the background cleanup loop.
func (s *LockoutService) SweepStale(ctx context.Context, retention time.Duration) (int64, error) {
	return s.attempts.DeleteStale(ctx, s.clock.Now().Add(-retention))
}
