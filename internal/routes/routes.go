package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/resqlink/backend/internal/auth"
	"github.com/resqlink/backend/internal/handlers"
	"github.com/resqlink/backend/internal/middleware"
	"github.com/resqlink/backend/internal/models"
)

// RegisterRoutes wires all API routes.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	tokenManager *auth.TokenManager,
	elevationManager *auth.ElevationManager,
	mwConfig auth.MiddlewareConfig,
	logger *slog.Logger,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public: login is the only unauthenticated operation, and it sits
	// behind a per-IP request throttle
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)

	// Authenticated routes
	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(tokenManager, mwConfig, logger))

		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/elevate", authHandler.Elevate)
		r.Get("/auth/me", authHandler.Me)

		// User management additionally requires a fresh elevation on
		// top of the permission check
		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePermission(models.PermUserManage))
			r.Use(auth.RequireElevated(elevationManager))

			r.Post("/users", userHandler.CreateUser)
			r.Get("/users/{id}", userHandler.GetUser)
			r.Patch("/users/{id}/status", userHandler.UpdateStatus)
		})
	})
}
