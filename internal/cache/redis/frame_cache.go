package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"liqtrack/internal/domain"
)

// frameTTL bounds how long a latest frame survives without refresh. The
// producer overwrites it every tick, so expiry only matters when the
// pipeline stops.
const frameTTL = 5 * time.Minute

// FrameCache implements domain.FrameCache with one JSON value per symbol at
// key "frame:{symbol}".
type FrameCache struct {
	rdb *redis.Client
}

// NewFrameCache creates a FrameCache backed by the given Client.
func NewFrameCache(c *Client) *FrameCache {
	return &FrameCache{rdb: c.Underlying()}
}

func frameKey(symbol string) string {
	return "frame:" + symbol
}

// SetLatest overwrites the latest frame for a symbol.
func (fc *FrameCache) SetLatest(ctx context.Context, symbol string, frame domain.MetricsFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("redis: marshal frame %s: %w", symbol, err)
	}
	if err := fc.rdb.Set(ctx, frameKey(symbol), payload, frameTTL).Err(); err != nil {
		return fmt.Errorf("redis: set frame %s: %w", symbol, err)
	}
	return nil
}

// GetLatest returns the latest frame for a symbol, or domain.ErrNotFound
// when none is cached.
func (fc *FrameCache) GetLatest(ctx context.Context, symbol string) (domain.MetricsFrame, error) {
	payload, err := fc.rdb.Get(ctx, frameKey(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MetricsFrame{}, domain.ErrNotFound
		}
		return domain.MetricsFrame{}, fmt.Errorf("redis: get frame %s: %w", symbol, err)
	}

	var frame domain.MetricsFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return domain.MetricsFrame{}, fmt.Errorf("redis: unmarshal frame %s: %w", symbol, err)
	}
	return frame, nil
}

// Compile-time interface check.
var _ domain.FrameCache = (*FrameCache)(nil)
