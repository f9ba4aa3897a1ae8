package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/resqlink/backend/internal/auth"
	"github.com/resqlink/backend/internal/background"
	"github.com/resqlink/backend/internal/config"
	"github.com/resqlink/backend/internal/database"
	"github.com/resqlink/backend/internal/handlers"
	middlewareCustom "github.com/resqlink/backend/internal/middleware"
	"github.com/resqlink/backend/internal/models"
	"github.com/resqlink/backend/internal/repositories"
	"github.com/resqlink/backend/internal/routes"
	"github.com/resqlink/backend/internal/services"
	"github.com/resqlink/backend/internal/store"
	pkgauth "github.com/resqlink/backend/pkg/auth"
	pkghttp "github.com/resqlink/backend/pkg/http"
	pkglogger "github.com/resqlink/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	clock := store.SystemClock{}

	// Session and attempt stores. Memory is for single-instance
	// deployments and development; postgres survives restarts and is
	// shared across replicas.
	var sessions store.SessionStore
	var attempts store.AttemptStore
	if cfg.Auth.SessionBackend == "memory" {
		sessions = store.NewMemorySessionStore(clock)
		attempts = store.NewMemoryAttemptStore(clock)
	} else {
		sessions = store.NewPostgresSessionStore(db.Pool)
		attempts = store.NewPostgresAttemptStore(db.Pool, clock)
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)

	// Auth core
	auditLogger := pkglogger.NewAuditLogger(logger)

	hasher, err := pkgauth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		logger.Error("invalid bcrypt configuration", slog.Any("error", err))
		os.Exit(1)
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, sessions, clock)

	var mfaVerifier auth.MFAVerifier
	if cfg.Auth.RequireMFA {
		mfaVerifier = auth.NewTOTPVerifier(userRepo, clock)
	}
	elevationManager := auth.NewElevationManager(sessions, mfaVerifier, auth.ElevationConfig{
		Window:     cfg.Auth.ElevationWindow,
		RequireMFA: cfg.Auth.RequireMFA,
	}, clock, logger)

	emailPolicy := store.LockoutPolicy{
		MaxAttempts:     cfg.Lockout.MaxAttempts,
		LockoutDuration: cfg.Lockout.LockoutDuration,
		Window:          cfg.Lockout.Window,
	}
	ipPolicy := store.LockoutPolicy{
		MaxAttempts:     cfg.Lockout.IPMaxAttempts,
		LockoutDuration: cfg.Lockout.LockoutDuration,
		Window:          cfg.Lockout.Window,
	}
	lockoutService := services.NewLockoutService(attempts, emailPolicy, ipPolicy, clock, logger, auditLogger)

	timing := auth.NewTimingEqualizer(cfg.Auth.TimingFloor, cfg.Auth.TimingJitter)

	// Services and handlers
	authService := services.NewAuthService(userRepo, lockoutService, tokenManager, elevationManager, hasher, timing, logger, auditLogger)
	userService := services.NewUserService(userRepo, hasher, logger, auditLogger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	userHandler := handlers.NewUserHandler(userService)

	// Bootstrap the first admin account if configured
	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootstrapCtx, userRepo, hasher, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootstrapCancel()

	// Router
	corsConfig := middlewareCustom.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	mwConfig := auth.MiddlewareConfig{
		FingerprintPolicy: auth.FingerprintPolicy(cfg.Auth.FingerprintPolicy),
		IPConfig:          ipConfig,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Route("/api/v1", func(r chi.Router) {
		routes.RegisterRoutes(r, authHandler, userHandler, tokenManager, elevationManager, mwConfig, logger)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background sweep of expired sessions and stale attempt counters
	cleanupManager := background.NewCleanupManager(sessions, attempts, clock, logger, cfg.Auth.CleanupInterval, cfg.Lockout.AttemptsRetention)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser creates the first admin account when ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no such account exists yet.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, hasher *pkgauth.PasswordHasher, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := hasher.Hash(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		FullName:     "Administrator",
		Role:         models.RoleSuperAdmin,
		Status:       models.StatusSysAdmin,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
