package auth

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/resqlink/backend/internal/models"
)

// fakeClock is a manually-advanced clock for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testUser() *models.User {
	return &models.User{
		ID:       "user_1",
		Email:    "responder@example.com",
		FullName: "Test Responder",
		Role:     models.RoleResponder,
		Status:   models.StatusActive,
	}
}
