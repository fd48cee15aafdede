package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"liqtrack/internal/domain"
)

// releaseLua deletes a lock key only when its value matches the holder's
// token, so a release after TTL expiry cannot steal a lock re-acquired by
// another replica in the meantime.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const releaseTimeout = 5 * time.Second

// LockManager coordinates singleton jobs, such as the opportunity archive
// sweep, across tracker replicas. Locks are SET NX keys with a TTL and a
// token-checked Lua release.
type LockManager struct {
	rdb     *redis.Client
	release *redis.Script
}

func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:     c.Underlying(),
		release: redis.NewScript(releaseLua),
	}
}

// Acquire takes the named lock for at most ttl. It returns domain.ErrLockHeld
// when another replica holds it. The returned release function is idempotent
// and works even after the caller's context is cancelled.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := "liqtrack:lock:" + key

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = lm.release.Run(rctx, lm.rdb, []string{lk}, token).Err()
		})
	}
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
