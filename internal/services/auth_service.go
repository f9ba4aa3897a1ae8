package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/resqlink/backend/internal/auth"
	"github.com/resqlink/backend/internal/models"
	pkgauth "github.com/resqlink/backend/pkg/auth"
	pkglogger "github.com/resqlink/backend/pkg/logger"
)

// UserRepository defines the user persistence operations the auth flow
// needs.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// AuthService orchestrates the login pipeline: lockout check, account
// lookup, password verification, status check, counter reset, token
// issue. Each step is owned by a collaborator; this service only fixes
// their order and the failure semantics between them.
type AuthService struct {
	users   UserRepository
	lockout *LockoutService
	tm      *auth.TokenManager
	em      *auth.ElevationManager
	hasher  *pkgauth.PasswordHasher
	timing  *auth.TimingEqualizer
	logger  *slog.Logger
	audit   *pkglogger.AuditLogger
}

// NewAuthService creates an AuthService.
func NewAuthService(users UserRepository, lockout *LockoutService, tm *auth.TokenManager, em *auth.ElevationManager, hasher *pkgauth.PasswordHasher, timing *auth.TimingEqualizer, logger *slog.Logger, audit *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		users:   users,
		lockout: lockout,
		tm:      tm,
		em:      em,
		hasher:  hasher,
		timing:  timing,
		logger:  logger,
		audit:   audit,
	}
}

// UserResponse is the user shape returned by auth operations.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// LoginResponse is returned from a successful login.
type LoginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int64         `json:"expires_in"`
	SessionID   string        `json:"session_id"`
	Permissions []string      `json:"permissions"`
	User        *UserResponse `json:"user"`
}

// ElevationResponse is returned from a successful elevation.
type ElevationResponse struct {
	Elevated      bool   `json:"elevated"`
	ElevatedUntil string `json:"elevated_until"`
}

// SessionResponse describes the caller's own session.
type SessionResponse struct {
	SessionID      string        `json:"session_id"`
	Role           string        `json:"role"`
	Permissions    []string      `json:"permissions"`
	Elevated       bool          `json:"elevated"`
	ElevatedUntil  string        `json:"elevated_until,omitempty"`
	ExpiresAt      string        `json:"expires_at"`
	LastActivityAt string        `json:"last_activity_at"`
	User           *UserResponse `json:"user"`
}

// Login runs the full authentication pipeline for an email/password
// pair. Unknown account and wrong password fail identically with
// ErrInvalidCredentials, and both paths are padded to a uniform
// duration. Failures count toward the attempted identifier's lockout
// whether or not the account exists.
func (s *AuthService) Login(ctx context.Context, email, password string, meta auth.SessionMeta) (*LoginResponse, error) {
	start := time.Now()
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		s.timing.PadFrom(start)
		return nil, models.ErrInvalidCredentials
	}

	// 1. Lockout gate. Runs before any credential work so locked
	// identifiers cost nothing.
	if err := s.lockout.CheckLocked(ctx, email, meta.IPAddress); err != nil {
		if errors.Is(err, models.ErrAccountLocked) || errors.Is(err, models.ErrRateLimitExceeded) {
			s.audit.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     meta.IPAddress,
				UserAgent:     meta.UserAgent,
				FailureReason: "locked_out",
				Success:       false,
			})
			s.timing.PadFrom(start)
			return nil, err
		}
		s.logger.Error("lockout check failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// 2. Account lookup. A miss still burns a failure against the
	// attempted identifier and returns the generic credentials error.
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.failLogin(ctx, start, email, "", meta, "invalid_credentials")
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// 3. Password check. Runs before the status check so a wrong
	// password can never learn whether the account is suspended.
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, s.failLogin(ctx, start, email, user.ID, meta, "invalid_credentials")
	}

	// 4. Status gate. Credentials were right, so the response may say
	// why login is refused.
	if !user.Status.CanAuthenticate() {
		s.logger.Info("login blocked by account status",
			slog.String("user_id", user.ID),
			slog.String("status", string(user.Status)))
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
			FailureReason: "account_" + string(user.Status),
			Success:       false,
		})
		s.timing.PadFrom(start)
		return nil, &models.AccountNotActiveError{Status: user.Status}
	}

	// 5. Reset the failure counter before issuing the token: a crash
	// between the two leaves the user a clean retry, not a stale count.
	if err := s.lockout.ClearFailures(ctx, email); err != nil {
		s.logger.Error("failed to clear login failures", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// 6. Issue the session token.
	tokenString, record, err := s.tm.CreateSession(ctx, user, meta)
	if err != nil {
		s.logger.Error("failed to create session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("session_id", record.SessionID),
		slog.String("role", string(user.Role)))
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		SessionID: record.SessionID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return &LoginResponse{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresIn:   int64(record.ExpiresAt.Sub(record.CreatedAt).Seconds()),
		SessionID:   record.SessionID,
		Permissions: record.Permissions.Names(),
		User:        userModelToResponse(user),
	}, nil
}

// failLogin records the failure, emits the audit event, pads the
// response time, and returns the generic credentials error.
func (s *AuthService) failLogin(ctx context.Context, start time.Time, email, userID string, meta auth.SessionMeta, reason string) error {
	if err := s.lockout.RecordFailure(ctx, email, meta.IPAddress); err != nil {
		s.logger.Error("failed to record login failure", slog.Any("error", err))
	}

	s.logger.Info("login failed: invalid credentials")
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		UserID:        userID,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		FailureReason: reason,
		Success:       false,
	})

	s.timing.PadFrom(start)
	return models.ErrInvalidCredentials
}

// Logout revokes the session. Idempotent: logging out twice, or with an
// already-swept session, succeeds.
func (s *AuthService) Logout(ctx context.Context, sessionID, userID string) error {
	if err := s.tm.Revoke(ctx, sessionID); err != nil {
		s.logger.Error("failed to revoke session", slog.String("session_id", sessionID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user logged out", slog.String("session_id", sessionID))
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "logout",
		UserID:    userID,
		SessionID: sessionID,
		Success:   true,
	})
	return nil
}

// Elevate upgrades the caller's session for the configured window. The
// caller-supplied reason goes to the audit trail on both outcomes.
func (s *AuthService) Elevate(ctx context.Context, sessionID, userID, mfaCode, reason string) (*ElevationResponse, error) {
	until, err := s.em.Elevate(ctx, sessionID, mfaCode)
	if err != nil {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "elevation_failed",
			UserID:        userID,
			SessionID:     sessionID,
			FailureReason: "verification_failed",
			Success:       false,
			Metadata:      map[string]string{"reason": reason},
		})
		return nil, err
	}

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "elevation_success",
		UserID:    userID,
		SessionID: sessionID,
		Success:   true,
		Metadata:  map[string]string{"reason": reason},
	})

	return &ElevationResponse{
		Elevated:      true,
		ElevatedUntil: until.UTC().Format(time.RFC3339),
	}, nil
}

// WhoAmI describes the caller's live session alongside fresh user data.
func (s *AuthService) WhoAmI(ctx context.Context, record *models.SessionRecord) (*SessionResponse, error) {
	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNoActiveSession
		}
		s.logger.Error("failed to get user for session", slog.String("user_id", record.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	resp := &SessionResponse{
		SessionID:      record.SessionID,
		Role:           string(record.Role),
		Permissions:    record.Permissions.Names(),
		Elevated:       s.em.IsElevated(record),
		ExpiresAt:      record.ExpiresAt.UTC().Format(time.RFC3339),
		LastActivityAt: record.LastActivityAt.UTC().Format(time.RFC3339),
		User:           userModelToResponse(user),
	}
	if resp.Elevated && record.ElevatedUntil != nil {
		resp.ElevatedUntil = record.ElevatedUntil.UTC().Format(time.RFC3339)
	}
	return resp, nil
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      string(user.Role),
		Status:    string(user.Status),
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}
