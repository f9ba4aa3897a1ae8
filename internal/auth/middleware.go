package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/resqlink/backend/internal/models"
	pkghttp "github.com/resqlink/backend/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey holds the live *models.SessionRecord for the request.
	SessionContextKey contextKey = "session"
	// ClaimsContextKey holds the decoded *models.SessionClaims.
	ClaimsContextKey contextKey = "claims"
)

// MiddlewareConfig tunes the request authentication middleware.
type MiddlewareConfig struct {
	FingerprintPolicy FingerprintPolicy
	IPConfig          *pkghttp.IPConfig
}

// Authenticate validates the bearer token on every request and injects
// the session record and claims into the request context. Expired and
// revoked tokens both come back 401; the body distinguishes them so a
// client knows whether a refresh might help.
func Authenticate(tm *TokenManager, config MiddlewareConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := extractBearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			record, claims, err := tm.Validate(r.Context(), tokenString)
			if err != nil {
				switch {
				case errors.Is(err, models.ErrTokenExpired):
					pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "token has expired")
				case errors.Is(err, models.ErrSessionRevoked):
					pkghttp.WriteError(w, http.StatusUnauthorized, "session_revoked", "session is no longer active")
				case errors.Is(err, models.ErrTokenInvalid):
					pkghttp.WriteUnauthorized(w, "invalid token")
				default:
					logger.Error("session lookup failed", slog.Any("error", err))
					pkghttp.WriteInternalError(w, "unable to verify session")
				}
				return
			}

			clientIP := pkghttp.ExtractClientIP(r, config.IPConfig)
			fingerprint := r.Header.Get("X-Device-Fingerprint")

			mismatch, err := VerifyBinding(config.FingerprintPolicy, record, clientIP, fingerprint)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "session binding mismatch")
				return
			}
			if mismatch && config.FingerprintPolicy == FingerprintWarn {
				logger.Warn("session binding mismatch",
					slog.String("session_id", record.SessionID),
					slog.String("bound_ip", record.IPAddress),
					slog.String("request_ip", clientIP))
			}

			tm.TouchActivity(r.Context(), record.SessionID)

			ctx := context.WithValue(r.Context(), SessionContextKey, record)
			ctx = context.WithValue(ctx, ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a route on a single permission. Must run after
// Authenticate. SuperAdmins pass via the permission snapshot, which
// always carries the full set.
func RequirePermission(perm models.Permission) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			record := GetSessionFromContext(r)
			if record == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			if !record.Permissions.Has(perm) {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireElevated gates a route on an unexpired session elevation.
func RequireElevated(em *ElevationManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			record := GetSessionFromContext(r)
			if record == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			if !em.IsElevated(record) {
				pkghttp.WriteForbidden(w, "elevated session required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetSessionFromContext extracts the session record from the request
// context, or nil when the request never passed Authenticate.
func GetSessionFromContext(r *http.Request) *models.SessionRecord {
	record, ok := r.Context().Value(SessionContextKey).(*models.SessionRecord)
	if !ok {
		return nil
	}
	return record
}

// GetClaimsFromContext extracts the decoded token claims from the
// request context.
func GetClaimsFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(ClaimsContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
