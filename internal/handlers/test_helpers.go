package handlers

import (
	"context"

	"github.com/resqlink/backend/internal/auth"
	"github.com/resqlink/backend/internal/models"
	"github.com/resqlink/backend/internal/services"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc   func(ctx context.Context, email, password string, meta auth.SessionMeta) (*services.LoginResponse, error)
	LogoutFunc  func(ctx context.Context, sessionID, userID string) error
	ElevateFunc func(ctx context.Context, sessionID, userID, mfaCode, reason string) (*services.ElevationResponse, error)
	WhoAmIFunc  func(ctx context.Context, record *models.SessionRecord) (*services.SessionResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta auth.SessionMeta) (*services.LoginResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, meta)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Logout(ctx context.Context, sessionID, userID string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, sessionID, userID)
	}
	return nil
}

func (m *MockAuthService) Elevate(ctx context.Context, sessionID, userID, mfaCode, reason string) (*services.ElevationResponse, error) {
	if m.ElevateFunc != nil {
		return m.ElevateFunc(ctx, sessionID, userID, mfaCode, reason)
	}
	return nil, models.ErrElevationFailed
}

func (m *MockAuthService) WhoAmI(ctx context.Context, record *models.SessionRecord) (*services.SessionResponse, error) {
	if m.WhoAmIFunc != nil {
		return m.WhoAmIFunc(ctx, record)
	}
	return nil, models.ErrNoActiveSession
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	CreateUserFunc   func(ctx context.Context, email, fullName, password string, role models.Role) (*services.UserResponse, error)
	GetUserFunc      func(ctx context.Context, id string) (*services.UserResponse, error)
	UpdateStatusFunc func(ctx context.Context, id string, status models.Status) (*services.UserResponse, error)
}

func (m *MockUserService) CreateUser(ctx context.Context, email, fullName, password string, role models.Role) (*services.UserResponse, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, email, fullName, password, role)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) GetUser(ctx context.Context, id string) (*services.UserResponse, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) UpdateStatus(ctx context.Context, id string, status models.Status) (*services.UserResponse, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil, models.ErrNotFound
}
