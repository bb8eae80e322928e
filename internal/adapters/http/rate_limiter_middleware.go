package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// RateLimiter decides whether another request for key fits in the window.
type RateLimiter interface {
	IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimiterMiddleware limits requests per client IP.
type RateLimiterMiddleware struct {
	limiter RateLimiter
	limit   int
	window  time.Duration
	logger  *slog.Logger
}

func NewRateLimiterMiddleware(limiter RateLimiter, limit int, window time.Duration, logger *slog.Logger) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		logger:  logger,
	}
}

func (m *RateLimiterMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			m.logger.Error("failed to resolve client IP", "error", err, "remote_addr", r.RemoteAddr)
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := m.limiter.IsAllowed(r.Context(), ip, m.limit, m.window)
		if err != nil {
			// Fail open while the limiter backend is down.
			m.logger.Error("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			writeJSONError(w, "Too Many Requests", http.StatusTooManyRequests, m.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}
