package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/resqlink/backend/internal/models"
	pkgauth "github.com/resqlink/backend/pkg/auth"
	pkglogger "github.com/resqlink/backend/pkg/logger"
)

// UserAdminRepository extends UserRepository with the administrative
// mutations the user service needs.
type UserAdminRepository interface {
	UserRepository
	UpdateStatus(ctx context.Context, id string, status models.Status) (*models.User, error)
}

// UserService handles administrative user management: account creation
// and lifecycle transitions. Self-service registration is out of scope;
// accounts are provisioned by admins.
type UserService struct {
	users  UserAdminRepository
	hasher *pkgauth.PasswordHasher
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
}

// NewUserService creates a UserService.
func NewUserService(users UserAdminRepository, hasher *pkgauth.PasswordHasher, logger *slog.Logger, audit *pkglogger.AuditLogger) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		logger: logger,
		audit:  audit,
	}
}

// CreateUser provisions a new account. Admin-created accounts start
// Active; there is no self-service verification step to wait on.
func (s *UserService) CreateUser(ctx context.Context, email, fullName, password string, role models.Role) (*UserResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fullName = strings.TrimSpace(fullName)
	if email == "" || fullName == "" {
		return nil, models.ErrBadRequest
	}
	if !role.IsValid() {
		return nil, models.ErrBadRequest
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	created, err := s.users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         role,
		Status:       models.StatusActive,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user created",
		slog.String("user_id", created.ID),
		slog.String("role", string(created.Role)))
	s.audit.LogAccountAction("user_created", created.ID, "", map[string]string{
		"role": string(created.Role),
	})

	return userModelToResponse(created), nil
}

// GetUser fetches a single account.
func (s *UserService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return userModelToResponse(user), nil
}

// UpdateStatus moves an account through its lifecycle. Status changes
// take effect on the next login; live sessions are untouched until they
// expire or are revoked.
func (s *UserService) UpdateStatus(ctx context.Context, id string, status models.Status) (*UserResponse, error) {
	updated, err := s.users.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update user status", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user status updated",
		slog.String("user_id", id),
		slog.String("status", string(status)))
	s.audit.LogAccountAction("user_status_updated", id, "", map[string]string{
		"status": string(status),
	})

	return userModelToResponse(updated), nil
}
