package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/resqlink/backend/internal/models"
	"github.com/resqlink/backend/internal/services"
	pkgauth "github.com/resqlink/backend/pkg/auth"
	pkghttp "github.com/resqlink/backend/pkg/http"
)

// UserServiceInterface defines the user management operations the
// handler needs.
type UserServiceInterface interface {
	CreateUser(ctx context.Context, email, fullName, password string, role models.Role) (*services.UserResponse, error)
	GetUser(ctx context.Context, id string) (*services.UserResponse, error)
	UpdateStatus(ctx context.Context, id string, status models.Status) (*services.UserResponse, error)
}

// UserHandler handles administrative user management requests.
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// CreateUserRequest is the request body for provisioning an account.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required,min=1"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=citizen volunteer responder admin super_admin"`
}

// UpdateStatusRequest is the request body for lifecycle transitions.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending active inactive suspended banned"`
}

// CreateUser provisions a new account.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	role, _ := models.ParseRole(req.Role)

	resp, err := h.service.CreateUser(r.Context(), req.Email, req.FullName, req.Password, role)
	if err != nil {
		var pve *pkgauth.PasswordValidationError
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this email already exists")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid user data")
		case errors.As(err, &pve):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, resp)
}

// GetUser fetches a single account.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "User ID is required")
		return
	}

	resp, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// UpdateStatus applies an account lifecycle transition.
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "User ID is required")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	status, _ := models.ParseStatus(req.Status)

	resp, err := h.service.UpdateStatus(r.Context(), id, status)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
