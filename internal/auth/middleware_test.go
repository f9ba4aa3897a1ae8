package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resqlink/backend/internal/models"
)

func authedRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	r.RemoteAddr = "203.0.113.9:51234"
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_ValidToken(t *testing.T) {
	clock := newFakeClock()
	tm, _ := newTestTokenManager(clock)
	token, created, err := tm.CreateSession(context.Background(), testUser(), SessionMeta{})
	require.NoError(t, err)

	var gotRecord *models.SessionRecord
	var gotClaims *models.SessionClaims
	handler := Authenticate(tm, MiddlewareConfig{FingerprintPolicy: FingerprintWarn}, discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotRecord = GetSessionFromContext(r)
			gotClaims = GetClaimsFromContext(r)
			w.WriteHeader(http.StatusOK)
		}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(t, token))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotRecord)
	require.NotNil(t, gotClaims)
	assert.Equal(t, created.SessionID, gotRecord.SessionID)
	assert.Equal(t, created.SessionID, gotClaims.SessionID)
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	clock := newFakeClock()
	tm, _ := newTestTokenManager(clock)

	var called bool
	handler := Authenticate(tm, MiddlewareConfig{}, discardLogger())(okHandler(&called))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(t, ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	clock := newFakeClock()
	tm, _ := newTestTokenManager(clock)

	var called bool
	handler := Authenticate(tm, MiddlewareConfig{}, discardLogger())(okHandler(&called))

	r := authedRequest(t, "")
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	clock := newFakeClock()
	tm, _ := newTestTokenManager(clock)
	token, _, err := tm.CreateSession(context.Background(), testUser(), SessionMeta{})
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)

	var called bool
	handler := Authenticate(tm, MiddlewareConfig{}, discardLogger())(okHandler(&called))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(t, token))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token_expired")
	assert.False(t, called)
}

func TestAuthenticate_RevokedSession(t *testing.T) {
	clock := newFakeClock()
	tm, _ := newTestTokenManager(clock)
	token, created, err := tm.CreateSession(context.Background(), testUser(), SessionMeta{})
	require.NoError(t, err)
	require.NoError(t, tm.Revoke(context.Background(), created.SessionID))

	var called bool
	handler := Authenticate(tm, MiddlewareConfig{}, discardLogger())(okHandler(&called))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(t, token))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "session_revoked")
	assert.False(t, called)
}

func TestAuthenticate_FingerprintReject(t *testing.T) {
	clock := newFakeClock()
	tm, _ := newTestTokenManager(clock)
	token, _, err := tm.CreateSession(context.Background(), testUser(), SessionMeta{DeviceFingerprint: "fp_abc"})
	require.NoError(t, err)

	var called bool
	handler := Authenticate(tm, MiddlewareConfig{FingerprintPolicy: FingerprintReject}, discardLogger())(okHandler(&called))

	r := authedRequest(t, token)
	r.Header.Set("X-Device-Fingerprint", "fp_other")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestAuthenticate_FingerprintWarnPasses(t *testing.T) {
	clock := newFakeClock()
	tm, _ := newTestTokenManager(clock)
	token, _, err := tm.CreateSession(context.Background(), testUser(), SessionMeta{DeviceFingerprint: "fp_abc"})
	require.NoError(t, err)

	var called bool
	handler := Authenticate(tm, MiddlewareConfig{FingerprintPolicy: FingerprintWarn}, discardLogger())(okHandler(&called))

	r := authedRequest(t, token)
	r.Header.Set("X-Device-Fingerprint", "fp_other")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name       string
		role       models.Role
		perm       models.Permission
		wantStatus int
	}{
		{"responder can dispatch", models.RoleResponder, models.PermResponseDispatch, http.StatusOK},
		{"citizen cannot dispatch", models.RoleCitizen, models.PermResponseDispatch, http.StatusForbidden},
		{"superadmin passes everything", models.RoleSuperAdmin, models.PermSystemAdmin, http.StatusOK},
		{"admin lacks system admin", models.RoleAdmin, models.PermSystemAdmin, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &models.SessionRecord{
				SessionID:   "sess_1",
				Role:        tt.role,
				Permissions: models.PermissionsFor(tt.role),
			}

			var called bool
			handler := RequirePermission(tt.perm)(okHandler(&called))

			r := authedRequest(t, "")
			ctx := context.WithValue(r.Context(), SessionContextKey, record)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r.WithContext(ctx))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
		})
	}
}

func TestRequirePermission_NoSession(t *testing.T) {
	var called bool
	handler := RequirePermission(models.PermTaskRead)(okHandler(&called))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(t, ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestRequireElevated(t *testing.T) {
	clock := newFakeClock()
	em, sessions := newTestElevation(clock, nil, false)
	createSession(t, sessions, clock, "sess_1")

	record, err := sessions.Get(context.Background(), "sess_1")
	require.NoError(t, err)

	var called bool
	handler := RequireElevated(em)(okHandler(&called))

	r := authedRequest(t, "")
	ctx := context.WithValue(r.Context(), SessionContextKey, record)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r.WithContext(ctx))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)

	_, err = em.Elevate(context.Background(), "sess_1", "")
	require.NoError(t, err)
	record, err = sessions.Get(context.Background(), "sess_1")
	require.NoError(t, err)

	ctx = context.WithValue(r.Context(), SessionContextKey, record)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r.WithContext(ctx))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}
