package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resqlink/backend/internal/models"
	"github.com/resqlink/backend/internal/store"
)

// MFAVerifier is the pass/fail check for a second factor. Provider
// integration beyond this check lives outside the auth core.
type MFAVerifier interface {
	Verify(ctx context.Context, userID, code string) (bool, error)
}

// ElevationConfig configures session elevation.
type ElevationConfig struct {
	Window     time.Duration // how long an elevation lasts
	RequireMFA bool          // whether an MFA code is mandatory
}

// ElevationManager grants a bounded-duration trust upgrade to an
// existing session. Elevation lapses by timestamp; nothing needs to
// actively de-elevate.
type ElevationManager struct {
	sessions store.SessionStore
	mfa      MFAVerifier
	config   ElevationConfig
	clock    store.Clock
	logger   *slog.Logger
}

// NewElevationManager creates an ElevationManager. mfa may be nil when
// RequireMFA is false.
func NewElevationManager(sessions store.SessionStore, mfa MFAVerifier, config ElevationConfig, clock store.Clock, logger *slog.Logger) *ElevationManager {
	return &ElevationManager{
		sessions: sessions,
		mfa:      mfa,
		config:   config,
		clock:    clock,
		logger:   logger,
	}
}

// Elevate upgrades the session's trust until now + the configured
// window. Fails with ErrElevationFailed when the session is missing or
// revoked, or when policy requires an MFA code that is absent or wrong.
func (em *ElevationManager) Elevate(ctx context.Context, sessionID, mfaCode string) (time.Time, error) {
	record, err := em.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return time.Time{}, fmt.Errorf("%w: %w", models.ErrElevationFailed, models.ErrNoActiveSession)
		}
		return time.Time{}, fmt.Errorf("failed to load session for elevation: %w", err)
	}
	if record.Revoked {
		return time.Time{}, fmt.Errorf("%w: %w", models.ErrElevationFailed, models.ErrNoActiveSession)
	}

	if em.config.RequireMFA {
		if mfaCode == "" {
			return time.Time{}, fmt.Errorf("%w: mfa code required", models.ErrElevationFailed)
		}
		ok, err := em.mfa.Verify(ctx, record.UserID, mfaCode)
		if err != nil {
			em.logger.Error("mfa verification error", slog.String("session_id", sessionID), slog.Any("error", err))
			return time.Time{}, fmt.Errorf("mfa verification unavailable: %w", err)
		}
		if !ok {
			em.logger.Warn("elevation rejected: invalid mfa code", slog.String("session_id", sessionID))
			return time.Time{}, fmt.Errorf("%w: invalid mfa code", models.ErrElevationFailed)
		}
	}

	elevatedUntil := em.clock.Now().Add(em.config.Window)
	if err := em.sessions.SetElevated(ctx, sessionID, elevatedUntil); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return time.Time{}, fmt.Errorf("%w: %w", models.ErrElevationFailed, models.ErrNoActiveSession)
		}
		return time.Time{}, fmt.Errorf("failed to persist elevation: %w", err)
	}

	em.logger.Info("session elevated",
		slog.String("session_id", sessionID),
		slog.Time("elevated_until", elevatedUntil))

	return elevatedUntil, nil
}

// IsElevated reports whether the session currently holds an unexpired
// elevation.
func (em *ElevationManager) IsElevated(record *models.SessionRecord) bool {
	return record.IsElevated(em.clock.Now())
}
