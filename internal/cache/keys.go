package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Key prefixes for persisted transient entries.
const (
	errorStatsPrefix = "stats:errors"
	loginStatsPrefix = "stats:logins"
	rateLimitPrefix  = "ratelimit"
)

// ErrorStatsKey is the cache key for the dashboard error aggregate.
func ErrorStatsKey() string {
	return errorStatsPrefix
}

// LoginStatsKey builds a cache key for login statistics bounded by a date
// range. The range is hashed into the key so distinct queries don't collide.
func LoginStatsKey(from, to time.Time) string {
	h := sha256.Sum256([]byte(from.UTC().Format(time.RFC3339) + "|" + to.UTC().Format(time.RFC3339)))
	return fmt.Sprintf("%s:%s", loginStatsPrefix, hex.EncodeToString(h[:8]))
}

// LoginStatsDefaultKey is the cache key for the implicit trailing-30-day
// window. Its bounds move with the clock, so hashing them would produce a
// fresh key on every request; staleness is bounded by the TTL instead.
func LoginStatsDefaultKey() string {
	return loginStatsPrefix + ":default"
}

// StatsPrefixes returns every stats key prefix, for explicit invalidation.
func StatsPrefixes() []string {
	return []string{errorStatsPrefix, loginStatsPrefix}
}

// RateLimitKey is the per-caller request counter key for the admin API.
func RateLimitKey(caller string) string {
	return fmt.Sprintf("%s:%s", rateLimitPrefix, caller)
}
