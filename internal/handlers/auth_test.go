package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resqlink/backend/internal/auth"
	"github.com/resqlink/backend/internal/models"
	"github.com/resqlink/backend/internal/services"
)

func withSession(r *http.Request, record *models.SessionRecord) *http.Request {
	ctx := context.WithValue(r.Context(), auth.SessionContextKey, record)
	return r.WithContext(ctx)
}

func testSessionRecord() *models.SessionRecord {
	return &models.SessionRecord{
		SessionID:   "sess_1",
		UserID:      "user_1",
		Role:        models.RoleResponder,
		Permissions: models.PermissionsFor(models.RoleResponder),
	}
}

func TestAuthHandler_LoginSuccess(t *testing.T) {
	mock := &MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, meta auth.SessionMeta) (*services.LoginResponse, error) {
			assert.Equal(t, "responder@example.com", email)
			assert.Equal(t, "resq-app/1.0", meta.UserAgent)
			return &services.LoginResponse{
				AccessToken: "token_abc",
				TokenType:   "Bearer",
				ExpiresIn:   86400,
				SessionID:   "sess_1",
				Permissions: []string{"disaster:read"},
				User:        &services.UserResponse{ID: "user_1"},
			}, nil
		},
	}
	h := NewAuthHandler(mock, nil)

	body := `{"email": "responder@example.com", "password": "correct-horse"}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	r.Header.Set("User-Agent", "resq-app/1.0")
	w := httptest.NewRecorder()

	h.Login(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp services.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "token_abc", resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(86400), resp.ExpiresIn)
}

func TestAuthHandler_LoginInvalidCredentials(t *testing.T) {
	mock := &MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, meta auth.SessionMeta) (*services.LoginResponse, error) {
			return nil, models.ErrInvalidCredentials
		},
	}
	h := NewAuthHandler(mock, nil)

	body := `{"email": "nobody@example.com", "password": "whatever"}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_credentials")
}

func TestAuthHandler_LoginLockedSetsRetryAfter(t *testing.T) {
	mock := &MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, meta auth.SessionMeta) (*services.LoginResponse, error) {
			return nil, &models.LockedError{Sentinel: models.ErrAccountLocked, RetryAfter: 10 * time.Minute}
		},
	}
	h := NewAuthHandler(mock, nil)

	body := `{"email": "a@example.com", "password": "whatever"}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, r)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "600", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

func TestAuthHandler_LoginAccountNotActive(t *testing.T) {
	mock := &MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, meta auth.SessionMeta) (*services.LoginResponse, error) {
			return nil, &models.AccountNotActiveError{Status: models.StatusSuspended}
		},
	}
	h := NewAuthHandler(mock, nil)

	body := `{"email": "a@example.com", "password": "correct"}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "account_not_active")
	assert.Contains(t, w.Body.String(), "suspended")
}

func TestAuthHandler_LoginValidation(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing email", `{"password": "x"}`},
		{"bad email", `{"email": "not-an-email", "password": "x"}`},
		{"missing password", `{"email": "a@example.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Login(w, r)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var gotSessionID string
	mock := &MockAuthService{
		LogoutFunc: func(ctx context.Context, sessionID, userID string) error {
			gotSessionID = sessionID
			return nil
		},
	}
	h := NewAuthHandler(mock, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	w := httptest.NewRecorder()
	h.Logout(w, withSession(r, testSessionRecord()))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "sess_1", gotSessionID)
}

func TestAuthHandler_LogoutWithoutSession(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{}, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	w := httptest.NewRecorder()
	h.Logout(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Elevate(t *testing.T) {
	var gotReason string
	mock := &MockAuthService{
		ElevateFunc: func(ctx context.Context, sessionID, userID, mfaCode, reason string) (*services.ElevationResponse, error) {
			gotReason = reason
			if mfaCode != "123456" {
				return nil, models.ErrElevationFailed
			}
			return &services.ElevationResponse{Elevated: true, ElevatedUntil: "2026-08-01T12:15:00Z"}, nil
		},
	}
	h := NewAuthHandler(mock, nil)

	body := `{"mfa_token": "123456", "reason": "dispatch override"}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/elevate", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Elevate(w, withSession(r, testSessionRecord()))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2026-08-01T12:15:00Z")
	// The stated reason reaches the service untouched
	assert.Equal(t, "dispatch override", gotReason)

	r = httptest.NewRequest(http.MethodPost, "/api/v1/auth/elevate", strings.NewReader(`{"mfa_token": "654321", "reason": "dispatch override"}`))
	w = httptest.NewRecorder()
	h.Elevate(w, withSession(r, testSessionRecord()))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthHandler_ElevateValidation(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"code too short", `{"mfa_token": "12345", "reason": "r"}`},
		{"code not numeric", `{"mfa_token": "abcdef", "reason": "r"}`},
		{"missing reason", `{"mfa_token": "123456"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/elevate", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Elevate(w, withSession(r, testSessionRecord()))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuthHandler_Me(t *testing.T) {
	mock := &MockAuthService{
		WhoAmIFunc: func(ctx context.Context, record *models.SessionRecord) (*services.SessionResponse, error) {
			return &services.SessionResponse{
				SessionID:   record.SessionID,
				Role:        string(record.Role),
				Permissions: record.Permissions.Names(),
				User:        &services.UserResponse{ID: record.UserID},
			}, nil
		},
	}
	h := NewAuthHandler(mock, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	w := httptest.NewRecorder()
	h.Me(w, withSession(r, testSessionRecord()))

	require.Equal(t, http.StatusOK, w.Code)
	var resp services.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sess_1", resp.SessionID)
	assert.Equal(t, "responder", resp.Role)
	assert.Contains(t, resp.Permissions, "emergency:respond")
}
