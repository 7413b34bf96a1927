package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modvault/session-security/internal/http/response"
	"github.com/modvault/session-security/internal/service"
)

// LoginRateLimit applies the pre-auth attempt limiter keyed by client IP.
// The limiter fails open: the per-account throttle behind it is the actual
// security boundary, so a redis outage must not take logins down with it.
func LoginRateLimit(limiter service.LoginAttemptLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter, err := limiter.Allow(r.Context(), ClientIP(r))
			if err != nil {
				slog.Warn("login limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				seconds := int(retryAfter.Round(time.Second).Seconds())
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many login attempts", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
