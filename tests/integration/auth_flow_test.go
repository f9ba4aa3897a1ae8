package integration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resqlink/backend/internal/auth"
	"github.com/resqlink/backend/internal/models"
	"github.com/resqlink/backend/internal/repositories"
	"github.com/resqlink/backend/internal/services"
	"github.com/resqlink/backend/internal/store"
	pkgauth "github.com/resqlink/backend/pkg/auth"
	pkglogger "github.com/resqlink/backend/pkg/logger"
)

const testSigningSecret = "integration-secret-at-least-32-bytes!!"

// newAuthStack wires the full auth pipeline against the real database.
func newAuthStack(t *testing.T) (*services.AuthService, *auth.TokenManager, *repositories.UserRepository) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := pkglogger.NewAuditLogger(logger)
	clock := store.SystemClock{}

	sessions := store.NewPostgresSessionStore(testDB.Pool)
	attempts := store.NewPostgresAttemptStore(testDB.Pool, clock)
	userRepo := repositories.NewUserRepository(testDB.DB)

	emailPolicy := store.LockoutPolicy{MaxAttempts: 5, LockoutDuration: 15 * time.Minute, Window: 30 * time.Minute}
	ipPolicy := store.LockoutPolicy{MaxAttempts: 20, LockoutDuration: 15 * time.Minute, Window: 30 * time.Minute}
	lockout := services.NewLockoutService(attempts, emailPolicy, ipPolicy, clock, logger, audit)

	tm := auth.NewTokenManager(testSigningSecret, 24*time.Hour, sessions, clock)
	mfa := auth.NewTOTPVerifier(userRepo, clock)
	em := auth.NewElevationManager(sessions, mfa, auth.ElevationConfig{
		Window:     15 * time.Minute,
		RequireMFA: true,
	}, clock, logger)

	hasher, err := pkgauth.NewPasswordHasher(pkgauth.MinBcryptCost)
	require.NoError(t, err)
	timing := auth.NewTimingEqualizer(0, 0)

	service := services.NewAuthService(userRepo, lockout, tm, em, hasher, timing, logger, audit)
	return service, tm, userRepo
}

func TestAuthFlow_LoginValidateLogout(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	service, tm, _ := newAuthStack(t)

	user := seedActiveUser(t, "flow@example.com")
	meta := auth.SessionMeta{IPAddress: "203.0.113.7", UserAgent: "integration-test"}

	resp, err := service.Login(ctx, "flow@example.com", "Str0ng!Passw0rd", meta)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Contains(t, resp.Permissions, "emergency:respond")

	// The issued token round-trips through validation against the store
	record, _, err := tm.Validate(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, record.SessionID)
	assert.Equal(t, user.ID, record.UserID)

	// After logout the same token is refused
	require.NoError(t, service.Logout(ctx, resp.SessionID, user.ID))
	_, _, err = tm.Validate(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, models.ErrSessionRevoked)

	// Logout is idempotent
	require.NoError(t, service.Logout(ctx, resp.SessionID, user.ID))
}

func TestAuthFlow_LockoutPersists(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	service, _, _ := newAuthStack(t)

	seedActiveUser(t, "locked@example.com")
	meta := auth.SessionMeta{IPAddress: "203.0.113.8"}

	for i := 0; i < 5; i++ {
		_, err := service.Login(ctx, "locked@example.com", "wrong-password", meta)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	// Even the correct password is refused while locked, and the error
	// carries a retry hint
	_, err := service.Login(ctx, "locked@example.com", "Str0ng!Passw0rd", meta)
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	assert.Greater(t, models.RetryAfterFrom(err), time.Duration(0))

	// A second stack over the same database sees the same lock
	service2, _, _ := newAuthStack(t)
	_, err = service2.Login(ctx, "locked@example.com", "Str0ng!Passw0rd", meta)
	assert.ErrorIs(t, err, models.ErrAccountLocked)
}

func TestAuthFlow_ElevateWithTOTP(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	service, _, _ := newAuthStack(t)

	user := seedActiveUser(t, "elevate@example.com")

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "resqlink-test", AccountName: user.Email})
	require.NoError(t, err)
	require.NoError(t, SeedMFASecret(ctx, testDB.Pool, user.ID, key.Secret()))

	resp, err := service.Login(ctx, "elevate@example.com", "Str0ng!Passw0rd", auth.SessionMeta{})
	require.NoError(t, err)

	// Wrong code is refused
	_, err = service.Elevate(ctx, resp.SessionID, user.ID, "000000", "dispatch override")
	assert.ErrorIs(t, err, models.ErrElevationFailed)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	elevation, err := service.Elevate(ctx, resp.SessionID, user.ID, code, "dispatch override")
	require.NoError(t, err)
	assert.True(t, elevation.Elevated)
	assert.NotEmpty(t, elevation.ElevatedUntil)
}

func TestAuthFlow_SuspendedAccountRefused(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	service, _, userRepo := newAuthStack(t)

	user := seedActiveUser(t, "suspended@example.com")
	_, err := userRepo.UpdateStatus(ctx, user.ID, models.StatusSuspended)
	require.NoError(t, err)

	_, err = service.Login(ctx, "suspended@example.com", "Str0ng!Passw0rd", auth.SessionMeta{})
	var notActive *models.AccountNotActiveError
	require.ErrorAs(t, err, &notActive)
	assert.Equal(t, models.StatusSuspended, notActive.Status)
}

func TestUserRepository_Postgres(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userRepo := repositories.NewUserRepository(testDB.DB)

	created, err := userRepo.Create(ctx, &models.User{
		Email:        "repo@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		FullName:     "Repo User",
		Role:         models.RoleVolunteer,
		Status:       models.StatusActive,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	byEmail, err := userRepo.GetByEmail(ctx, "repo@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, models.RoleVolunteer, byEmail.Role)

	// Duplicate email maps to the conflict sentinel
	_, err = userRepo.Create(ctx, &models.User{
		Email:        "repo@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		FullName:     "Dup",
	})
	assert.ErrorIs(t, err, models.ErrConflict)

	// No enrolled secret reads as not found
	_, err = userRepo.TOTPSecret(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, SeedMFASecret(ctx, testDB.Pool, created.ID, "JBSWY3DPEHPK3PXP"))
	secret, err := userRepo.TOTPSecret(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", secret)
}
