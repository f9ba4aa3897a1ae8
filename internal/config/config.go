package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Lockout  LockoutConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret         string
	SessionTTL        time.Duration
	BcryptCost        int
	ElevationWindow   time.Duration
	RequireMFA        bool
	FingerprintPolicy string // ignore | warn | reject
	TimingFloor       time.Duration
	TimingJitter      time.Duration
	CleanupInterval   time.Duration
	SessionBackend    string // memory | postgres
}

type LockoutConfig struct {
	MaxAttempts       int
	LockoutDuration   time.Duration
	Window            time.Duration
	IPMaxAttempts     int
	AttemptsRetention time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "resqlink"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseCSV(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			SessionTTL:        getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			BcryptCost:        getEnvAsInt("BCRYPT_COST", 12),
			ElevationWindow:   getEnvAsDuration("ELEVATION_WINDOW", 15*time.Minute),
			RequireMFA:        getEnvAsBool("ELEVATION_REQUIRE_MFA", true),
			FingerprintPolicy: getEnv("FINGERPRINT_POLICY", "warn"),
			TimingFloor:       getEnvAsDuration("LOGIN_TIMING_FLOOR", 100*time.Millisecond),
			TimingJitter:      getEnvAsDuration("LOGIN_TIMING_JITTER", 50*time.Millisecond),
			CleanupInterval:   getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 1*time.Hour),
			SessionBackend:    getEnv("SESSION_BACKEND", "postgres"),
		},
		Lockout: LockoutConfig{
			MaxAttempts:       getEnvAsInt("LOCKOUT_MAX_ATTEMPTS", 5),
			LockoutDuration:   getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
			Window:            getEnvAsDuration("LOCKOUT_WINDOW", 30*time.Minute),
			IPMaxAttempts:     getEnvAsInt("LOCKOUT_IP_MAX_ATTEMPTS", 20),
			AttemptsRetention: getEnvAsDuration("LOCKOUT_RETENTION", 24*time.Hour),
		},
	}

	if cfg.Auth.SessionBackend == "postgres" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}
	if err := validateAuthConfig(&cfg.Auth); err != nil {
		return nil, err
	}
	if cfg.Lockout.MaxAttempts < 1 {
		return nil, fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum strength for the signing secret.
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func validateAuthConfig(auth *AuthConfig) error {
	if auth.BcryptCost < 10 || auth.BcryptCost > 18 {
		return fmt.Errorf("BCRYPT_COST must be between 10 and 18 (got %d)", auth.BcryptCost)
	}

	switch auth.FingerprintPolicy {
	case "ignore", "warn", "reject":
	default:
		return fmt.Errorf("FINGERPRINT_POLICY must be one of ignore, warn, reject (got %q)", auth.FingerprintPolicy)
	}

	switch auth.SessionBackend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("SESSION_BACKEND must be memory or postgres (got %q)", auth.SessionBackend)
	}

	if auth.ElevationWindow <= 0 {
		return fmt.Errorf("ELEVATION_WINDOW must be positive")
	}
	if auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		return parseCSV(originsStr)
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
