package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitIPPrefix is the Redis key prefix for per-IP counters.
const rateLimitIPPrefix = "ratelimit:ip:"

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// fixedWindowScript counts hits in the current window. The first hit of a
// window sets its expiry, so the window starts at the first request.
// Returns {count, remaining window ms}.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {count, ttl}
`)

// CheckIPRateLimit counts a request from ip against a fixed window of
// length window allowing max requests. IPs are hashed before use as keys.
// Callers decide how to treat an error; the middleware fails open.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, max int, window time.Duration) (*RateLimitResult, error) {
	key := rateLimitIPPrefix + hashIP(ip)

	res, err := fixedWindowScript.Run(ctx, c.rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	limit := int64(max)

	result := &RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   time.Now().Add(ttl),
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		result.RetryAfter = ttl
	}
	return result, nil
}

// hashIP creates a truncated SHA256 hash of an IP address.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8])
}
