package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/resqlink/backend/internal/models"
	"github.com/resqlink/backend/internal/store"
)

// FingerprintPolicy decides what happens when a request's device
// fingerprint or IP does not match the one bound to the session.
type FingerprintPolicy string

const (
	FingerprintIgnore FingerprintPolicy = "ignore"
	FingerprintWarn   FingerprintPolicy = "warn"
	FingerprintReject FingerprintPolicy = "reject"
)

// SessionMeta carries the optional request attributes bound to a session
// at creation.
type SessionMeta struct {
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
}

// TokenManager issues, validates, and revokes signed session tokens. A
// token is self-verifying (signature and expiry need no lookup);
// revocation is checked against the session store on every validation.
type TokenManager struct {
	secret     []byte
	sessionTTL time.Duration
	sessions   store.SessionStore
	clock      store.Clock
}

// NewTokenManager creates a TokenManager over the given session store.
func NewTokenManager(secret string, sessionTTL time.Duration, sessions store.SessionStore, clock store.Clock) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		sessions:   sessions,
		clock:      clock,
	}
}

// CreateSession durably creates a SessionRecord and returns a signed
// token encoding its claims. The token is only returned once the record
// exists, so a caller can never hold a token without its server-side
// counterpart.
func (tm *TokenManager) CreateSession(ctx context.Context, user *models.User, meta SessionMeta) (string, *models.SessionRecord, error) {
	now := tm.clock.Now()
	sessionID := uuid.New().String()
	permissions := models.PermissionsFor(user.Role)

	record := &models.SessionRecord{
		SessionID:         sessionID,
		UserID:            user.ID,
		Role:              user.Role,
		Permissions:       permissions,
		IPAddress:         meta.IPAddress,
		UserAgent:         meta.UserAgent,
		DeviceFingerprint: meta.DeviceFingerprint,
		LastActivityAt:    now,
		CreatedAt:         now,
		ExpiresAt:         now.Add(tm.sessionTTL),
	}

	claims := &models.SessionClaims{
		SessionID:         sessionID,
		UserID:            user.ID,
		Role:              string(user.Role),
		Permissions:       permissions.Names(),
		DeviceFingerprint: meta.DeviceFingerprint,
		IPAddress:         meta.IPAddress,
		UserAgent:         meta.UserAgent,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	if err := tm.sessions.Create(ctx, record); err != nil {
		return "", nil, fmt.Errorf("failed to create session record: %w", err)
	}

	return tokenString, record, nil
}

// Validate checks a token in two steps: signature and expiry locally,
// then revocation against the session store. Returns the live
// SessionRecord alongside the decoded claims.
func (tm *TokenManager) Validate(ctx context.Context, tokenString string) (*models.SessionRecord, *models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.clock.Now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, nil, models.ErrTokenExpired
		}
		return nil, nil, models.ErrTokenInvalid
	}

	if !token.Valid || claims.SessionID == "" {
		return nil, nil, models.ErrTokenInvalid
	}

	record, err := tm.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Signature verifies but the session is gone: logged out or swept
			return nil, nil, models.ErrSessionRevoked
		}
		return nil, nil, fmt.Errorf("failed to load session record: %w", err)
	}

	if record.Revoked {
		return nil, nil, models.ErrSessionRevoked
	}

	return record, claims, nil
}

// Revoke marks the session revoked. Idempotent: revoking twice, or
// revoking an unknown session id, succeeds.
func (tm *TokenManager) Revoke(ctx context.Context, sessionID string) error {
	return tm.sessions.Revoke(ctx, sessionID)
}

// TouchActivity records request activity on a session. Best-effort from
// the caller's perspective; a missing session is ignored.
func (tm *TokenManager) TouchActivity(ctx context.Context, sessionID string) {
	_ = tm.sessions.TouchActivity(ctx, sessionID, tm.clock.Now())
}

// VerifyBinding applies the fingerprint policy to the current request's
// attributes. Under FingerprintReject a mismatch fails with
// ErrTokenInvalid; under FingerprintWarn or FingerprintIgnore it never
// fails, and the caller decides whether to log.
func VerifyBinding(policy FingerprintPolicy, record *models.SessionRecord, ip, fingerprint string) (mismatch bool, err error) {
	if record.DeviceFingerprint != "" && fingerprint != "" && record.DeviceFingerprint != fingerprint {
		mismatch = true
	}
	if record.IPAddress != "" && ip != "" && record.IPAddress != ip {
		mismatch = true
	}
	if mismatch && policy == FingerprintReject {
		return true, models.ErrTokenInvalid
	}
	return mismatch, nil
}
