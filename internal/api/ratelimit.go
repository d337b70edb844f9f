package api

import (
	"net/http"
	"time"

	"github.com/bookmarkhive/hivecache/internal/ratelimit"
)

// RateLimiter limits requests per client key.
type RateLimiter = ratelimit.KeyedRateLimiter

// NewRateLimiter creates a rate limiter allowing ratePerInterval requests
// per interval with the given burst.
func NewRateLimiter(ratePerInterval int, interval time.Duration, burst int) *RateLimiter {
	rps := float64(ratePerInterval) / interval.Seconds()
	return ratelimit.New(rps, burst)
}

// rateLimitMiddleware limits requests by client IP.
// Returns 429 Too Many Requests when the limit is exceeded.
func rateLimitMiddleware(limiter *RateLimiter, logger interface{ Warn(msg string, args ...any) }) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r)

			if !limiter.Allow(key) {
				if logger != nil {
					logger.Warn("Rate limit exceeded",
						"ip", key,
						"path", r.URL.Path,
					)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"v":1,"success":false,"error":{"code":"RATE_LIMITED","message":"Too many requests. Please try again later."}}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the chain.
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr (strip port).
	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}
	return ip
}
