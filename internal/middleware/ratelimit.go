package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/taskflow/taskflow/internal/activity"
	"github.com/taskflow/taskflow/internal/cache"
	"github.com/taskflow/taskflow/internal/httputil"
	"github.com/taskflow/taskflow/internal/metrics"
)

// RateLimiter counts a request from ip against a fixed window.
type RateLimiter interface {
	CheckIPRateLimit(ctx context.Context, ip string, max int, window time.Duration) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter RateLimiter
	Metrics metrics.Recorder
	Enabled bool
	Max     int
	Window  time.Duration
}

// RateLimitIP returns middleware that rate limits requests per client IP.
// It runs ahead of authentication and fails open when the limiter errors.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		if !cfg.Enabled || cfg.Limiter == nil || cfg.Max <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			result, err := cfg.Limiter.CheckIPRateLimit(r.Context(), ip, cfg.Max, cfg.Window)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, result)

			if !result.Allowed {
				retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int("retry_after_seconds", retryAfter),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				cfg.Metrics.IncRateLimited()

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteFailure(w, http.StatusTooManyRequests, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders sets the standard draft RateLimit-* headers.
func setRateLimitHeaders(w http.ResponseWriter, result *cache.RateLimitResult) {
	reset := int64(math.Ceil(time.Until(result.ResetAt).Seconds()))
	if reset < 0 {
		reset = 0
	}
	w.Header().Set("RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	w.Header().Set("RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	w.Header().Set("RateLimit-Reset", strconv.FormatInt(reset, 10))
}

// clientIP returns the host part of RemoteAddr. chi's RealIP middleware
// has already applied any trusted forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP records the client IP on the request context for the activity trail.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := activity.WithClientIP(r.Context(), clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
