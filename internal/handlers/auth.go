package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/resqlink/backend/internal/auth"
	"github.com/resqlink/backend/internal/models"
	"github.com/resqlink/backend/internal/services"
	pkghttp "github.com/resqlink/backend/pkg/http"
)

// AuthServiceInterface defines the auth operations the handler needs.
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, meta auth.SessionMeta) (*services.LoginResponse, error)
	Logout(ctx context.Context, sessionID, userID string) error
	Elevate(ctx context.Context, sessionID, userID, mfaCode, reason string) (*services.ElevationResponse, error)
	WhoAmI(ctx context.Context, record *models.SessionRecord) (*services.SessionResponse, error)
}

// AuthHandler handles authentication HTTP requests.
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{service: service, ipConfig: ipConfig}
}

// LoginRequest is the request body for login. RememberMe is accepted
// for client compatibility; all sessions currently share one TTL.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// ElevateRequest is the request body for session elevation. Reason is
// recorded in the audit trail alongside the attempt.
type ElevateRequest struct {
	MFACode string `json:"mfa_token" validate:"omitempty,len=6,numeric"`
	Reason  string `json:"reason" validate:"required,max=255"`
}

// Login authenticates an email/password pair and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	meta := auth.SessionMeta{
		IPAddress:         pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent:         r.Header.Get("User-Agent"),
		DeviceFingerprint: r.Header.Get("X-Device-Fingerprint"),
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password, meta)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		case errors.Is(err, models.ErrAccountLocked), errors.Is(err, models.ErrRateLimitExceeded):
			retryAfter := int(models.RetryAfterFrom(err).Seconds())
			pkghttp.WriteTooManyRequests(w, "Too many failed login attempts. Please try again later.", retryAfter)
		default:
			if status, ok := models.IsAccountNotActive(err); ok {
				pkghttp.WriteErrorWithDetails(w, http.StatusForbidden, "account_not_active",
					"Account is not permitted to log in", string(status))
				return
			}
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Logout revokes the caller's session. Repeating the call, or calling it
// with an already-dead session, still returns 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	record := auth.GetSessionFromContext(r)
	if record == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.service.Logout(r.Context(), record.SessionID, record.UserID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Elevate upgrades the caller's session trust for a bounded window.
func (h *AuthHandler) Elevate(w http.ResponseWriter, r *http.Request) {
	record := auth.GetSessionFromContext(r)
	if record == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ElevateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.Elevate(r.Context(), record.SessionID, record.UserID, req.MFACode, req.Reason)
	if err != nil {
		if errors.Is(err, models.ErrElevationFailed) {
			pkghttp.WriteForbidden(w, "Elevation failed")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Me describes the caller's session and current user data.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	record := auth.GetSessionFromContext(r)
	if record == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	resp, err := h.service.WhoAmI(r.Context(), record)
	if err != nil {
		if errors.Is(err, models.ErrNoActiveSession) {
			pkghttp.WriteUnauthorized(w, "No active session")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
