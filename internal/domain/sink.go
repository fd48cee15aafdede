package domain

import (
	"context"
	"io"
	"time"
)

// Signal bus channel and stream names shared by publishers and subscribers.
const (
	ChannelMetrics       = "metrics"
	ChannelOpportunities = "opportunities"
	StreamOpportunities  = "stream:opportunities"
)

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides fire-and-forget pub/sub plus durable streams. The core
// publishes metrics frames and opportunities through it and never depends on
// what subscribers do with them.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// FrameCache stores the latest metrics frame per symbol for fast reads.
type FrameCache interface {
	SetLatest(ctx context.Context, symbol string, frame MetricsFrame) error
	GetLatest(ctx context.Context, symbol string) (MetricsFrame, error)
}

// OpportunityStore persists detected arbitrage opportunities. This is an
// append-mostly history of detector output, not order book state.
type OpportunityStore interface {
	Insert(ctx context.Context, opp ArbitrageOpportunity) error
	ListRecent(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]ArbitrageOpportunity, error)
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver flushes batches of expired opportunities to cold storage.
type Archiver interface {
	ArchiveOpportunities(ctx context.Context, opps []ArbitrageOpportunity, asOf time.Time) (string, error)
}

// LockManager provides coarse distributed mutual exclusion, used to keep
// batch jobs such as archiving single-flight across replicas.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter bounds request rates per key. Allow both checks and counts;
// callers that want to block poll it themselves.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
