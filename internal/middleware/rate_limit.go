package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/resqlink/backend/pkg/http"
)

// RateLimitConfig holds transport-level rate limiting configuration.
// This throttle is independent of credential lockout: it caps request
// volume before any credential work happens.
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit caps login-path traffic at 10 requests per minute
// per source IP.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 10}
}

// RateLimitByIP limits requests per client IP.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded", 60)
		}),
	)
}
