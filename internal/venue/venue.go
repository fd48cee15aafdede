// Package venue defines the adapter contract that every exchange feed
// implements, plus the shared connection state machine and reconnect policy.
// One adapter instance owns one connection to one venue and publishes
// normalized order books on a fan-in channel; adapters never share state with
// each other.
package venue

import (
	"context"
	"sync"
	"time"

	"liqtrack/internal/domain"
)

// Well-known venue names.
const (
	Binance  = "binance"
	Kraken   = "kraken"
	Coinbase = "coinbase"
)

// Adapter is a live connection to one exchange's public order book feed.
//
// Run blocks until the context is cancelled, Stop is called, or the reconnect
// budget is exhausted (a terminal, per-venue failure that must not take other
// adapters down). Stop is idempotent and safe from any goroutine.
type Adapter interface {
	Venue() string
	Run(ctx context.Context) error
	Stop() error
	LatestBook() *domain.OrderBook
	IsStale(threshold time.Duration) bool
	State() domain.ConnState
}

// ReconnectPolicy controls the exponential backoff applied between
// reconnection attempts. The same policy applies to every venue.
type ReconnectPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultReconnectPolicy mirrors the venue feeds' production settings:
// 1s base, 60s cap, 10 attempts before the adapter gives up.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		MaxAttempts: 10,
	}
}

// Delay returns the backoff before the given attempt (1-based):
// base * 2^(attempt-1), capped at MaxDelay.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Shifting past 32 cannot come back under the cap.
	shift := attempt - 1
	if shift > 32 {
		shift = 32
	}
	d := p.BaseDelay << uint(shift)
	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Tracker is the mutable adapter state read by other components: connection
// state, reconnect attempt count, and the latest normalized book. The owning
// adapter is the only writer; venue implementations embed it.
type Tracker struct {
	mu       sync.RWMutex
	state    domain.ConnState
	attempts int
	latest   *domain.OrderBook
}

func (t *Tracker) SetState(s domain.ConnState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// State returns the current connection state.
func (t *Tracker) State() domain.ConnState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// BumpAttempts increments and returns the reconnect attempt counter.
func (t *Tracker) BumpAttempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	return t.attempts
}

// ResetAttempts clears the counter after a successful connect.
func (t *Tracker) ResetAttempts() {
	t.mu.Lock()
	t.attempts = 0
	t.mu.Unlock()
}

func (t *Tracker) SetLatest(b *domain.OrderBook) {
	t.mu.Lock()
	t.latest = b
	t.mu.Unlock()
}

// LatestBook returns the most recent complete book, or nil before the first
// publish.
func (t *Tracker) LatestBook() *domain.OrderBook {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

// IsStale reports whether the latest book is older than threshold. A missing
// book is always stale.
func (t *Tracker) IsStale(threshold time.Duration) bool {
	b := t.LatestBook()
	if b == nil {
		return true
	}
	return b.IsStale(time.Now(), threshold)
}
