package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/resqlink/backend/internal/auth"
	"github.com/resqlink/backend/internal/models"
	"github.com/resqlink/backend/internal/store"
	pkgauth "github.com/resqlink/backend/pkg/auth"
	pkglogger "github.com/resqlink/backend/pkg/logger"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	CreateFunc     func(ctx context.Context, user *models.User) (*models.User, error)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

// MockUserAdminRepository implements UserAdminRepository for testing
type MockUserAdminRepository struct {
	MockUserRepository
	UpdateStatusFunc func(ctx context.Context, id string, status models.Status) (*models.User, error)
}

func (m *MockUserAdminRepository) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.User, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil, models.ErrNotFound
}

// MockMFAVerifier implements auth.MFAVerifier for testing
type MockMFAVerifier struct {
	VerifyFunc func(ctx context.Context, userID, code string) (bool, error)
}

func (m *MockMFAVerifier) Verify(ctx context.Context, userID, code string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, userID, code)
	}
	return false, nil
}

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

func discardAudit() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(discardLogger())
}

// authFixture wires a complete in-memory auth stack around one clock.
type authFixture struct {
	clock    *fakeClock
	users    *MockUserRepository
	sessions *store.MemorySessionStore
	attempts *store.MemoryAttemptStore
	lockout  *LockoutService
	tm       *auth.TokenManager
	em       *auth.ElevationManager
	hasher   *pkgauth.PasswordHasher
	service  *AuthService
}

func newAuthFixture(users *MockUserRepository, mfa auth.MFAVerifier, requireMFA bool) *authFixture {
	clock := newFakeClock()
	sessions := store.NewMemorySessionStore(clock)
	attempts := store.NewMemoryAttemptStore(clock)

	emailPolicy := store.LockoutPolicy{MaxAttempts: 5, LockoutDuration: 15 * time.Minute, Window: 30 * time.Minute}
	ipPolicy := store.LockoutPolicy{MaxAttempts: 20, LockoutDuration: 15 * time.Minute, Window: 30 * time.Minute}
	lockout := NewLockoutService(attempts, emailPolicy, ipPolicy, clock, discardLogger(), discardAudit())

	tm := auth.NewTokenManager("test-secret-key-at-least-32-bytes-long!!", 24*time.Hour, sessions, clock)
	em := auth.NewElevationManager(sessions, mfa, auth.ElevationConfig{
		Window:     15 * time.Minute,
		RequireMFA: requireMFA,
	}, clock, discardLogger())

	hasher, _ := pkgauth.NewPasswordHasher(pkgauth.MinBcryptCost)
	timing := auth.NewTimingEqualizer(0, 0)

	service := NewAuthService(users, lockout, tm, em, hasher, timing, discardLogger(), discardAudit())

	return &authFixture{
		clock:    clock,
		users:    users,
		sessions: sessions,
		attempts: attempts,
		lockout:  lockout,
		tm:       tm,
		em:       em,
		hasher:   hasher,
		service:  service,
	}
}
