package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/errsink/errsink/internal/api/response"
	"github.com/errsink/errsink/internal/cache"
)

const defaultRequestsPerMinute = 60

// RateLimit provides per-caller sliding-window rate limiting via Redis.
// Admin callers share one bucket; capture clients are bucketed by IP.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
}

// NewRateLimit creates the rate limit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin}
}

// LimitByIP buckets by the resolved client address.
func (rl *RateLimit) LimitByIP(next http.Handler) http.Handler {
	return rl.limit(next, func(r *http.Request) string {
		if ip := GetClientIP(r); ip != "" {
			return ip
		}
		return r.RemoteAddr
	})
}

// LimitShared buckets all callers under one name.
func (rl *RateLimit) LimitShared(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return rl.limit(next, func(*http.Request) string { return name })
	}
}

func (rl *RateLimit) limit(next http.Handler, caller func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := cache.RateLimitKey(caller(r))
		count, err := rl.cache.IncrWithExpiry(r.Context(), key, 60*time.Second)
		if err != nil {
			// Redis trouble must not take the API down; fail open.
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(60*time.Second).Unix(), 10))

		if count > int64(rl.requestsPerMin) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
