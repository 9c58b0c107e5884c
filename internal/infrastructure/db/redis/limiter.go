package redis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const limiterKeyTTL = time.Minute

// tokenBucketScript refills and consumes a bucket atomically.
// KEYS[1] = bucket key
// ARGV[1] = refill rate (tokens per second)
// ARGV[2] = capacity
// ARGV[3] = now (unix seconds, microsecond precision)
// ARGV[4] = key ttl (seconds)
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, ttl)

return allowed
`)

// RateLimiter is a token bucket per client key shared by every service
// instance through Redis.
// Key format: ratelimit:<scope>:<client>
type RateLimiter struct {
	client *redis.Client
	scope  string
	rate   float64
	burst  int
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing rate requests per second with the
// given burst for each client key.
func NewRateLimiter(client *redis.Client, scope string, rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{client: client, scope: scope, rate: rate, burst: burst, now: time.Now}
}

// Allow consumes one token for client and reports whether it was available.
func (l *RateLimiter) Allow(ctx context.Context, client string) (bool, error) {
	now := float64(l.now().UnixMicro()) / 1e6
	ttl := int64(math.Ceil(limiterKeyTTL.Seconds()))

	n, err := tokenBucketScript.Run(ctx, l.client, []string{l.key(client)}, l.rate, l.burst, now, ttl).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	return n == 1, nil
}

func (l *RateLimiter) key(client string) string {
	return fmt.Sprintf("ratelimit:%s:%s", l.scope, client)
}
