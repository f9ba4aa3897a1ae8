package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/resqlink/backend/internal/store"
)

// CleanupManager periodically sweeps expired sessions and stale login
// attempt records. Revoked sessions are removed only once expired, so a
// replayed token still hits the revoked record until its own expiry.
type CleanupManager struct {
	sessions          store.SessionStore
	attempts          store.AttemptStore
	clock             store.Clock
	logger            *slog.Logger
	interval          time.Duration
	attemptsRetention time.Duration
	stopCh            chan struct{}
}

// NewCleanupManager creates a cleanup manager.
func NewCleanupManager(sessions store.SessionStore, attempts store.AttemptStore, clock store.Clock, logger *slog.Logger, interval, attemptsRetention time.Duration) *CleanupManager {
	return &CleanupManager{
		sessions:          sessions,
		attempts:          attempts,
		clock:             clock,
		logger:            logger,
		interval:          interval,
		attemptsRetention: attemptsRetention,
		stopCh:            make(chan struct{}),
	}
}

// Start runs the periodic sweep until Stop is called or ctx is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := cm.clock.Now()

	sessionsDeleted, err := cm.sessions.DeleteExpired(cleanupCtx, now)
	if err != nil {
		cm.logger.Error("failed to sweep expired sessions", slog.Any("error", err))
	} else if sessionsDeleted > 0 {
		cm.logger.Info("expired sessions swept", slog.Int64("rows_deleted", sessionsDeleted))
	}

	attemptsDeleted, err := cm.attempts.DeleteStale(cleanupCtx, now.Add(-cm.attemptsRetention))
	if err != nil {
		cm.logger.Error("failed to sweep stale login attempts", slog.Any("error", err))
	} else if attemptsDeleted > 0 {
		cm.logger.Info("stale login attempts swept", slog.Int64("rows_deleted", attemptsDeleted))
	}
}

// Stop signals the cleanup manager to stop.
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
