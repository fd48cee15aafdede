package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"liqtrack/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// RateLimiter throttles the read API per client IP with a sliding window
// over a Redis sorted set. The window lives in Redis so the limit holds
// across tracker replicas behind one load balancer.
type RateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
}

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		script: redis.NewScript(slidingWindowLua),
	}
}

// Allow admits and counts one request for key when fewer than limit requests
// landed inside the trailing window, and rejects it otherwise. Admission and
// counting happen atomically in the Lua script.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	res, err := rl.script.Run(
		ctx,
		rl.rdb,
		[]string{"liqtrack:ratelimit:" + key},
		time.Now().UnixMicro(),
		window.Microseconds(),
		limit,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}
	if len(res) < 2 {
		return false, fmt.Errorf("redis: rate limit allow %s: unexpected result length %d", key, len(res))
	}
	return res[0] == 1, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
