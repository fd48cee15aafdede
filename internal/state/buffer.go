// Package state holds the in-memory working set: the latest complete book
// per venue and symbol, bounded history of books and metrics frames, and
// venue health derived from update recency. One writer goroutine owns all
// mutation; everything else reads through the lock.
package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"liqtrack/internal/domain"
)

// DefaultHistorySize bounds the per-stream book history and the frame
// history.
const DefaultHistorySize = 512

type bookKey struct {
	venue  string
	symbol string
}

// VenueHealth summarizes one venue's data quality at a point in time.
type VenueHealth struct {
	Venue      string    `json:"venue"`
	HasData    bool      `json:"has_data"`
	Stale      bool      `json:"stale"`
	LastUpdate time.Time `json:"last_update,omitempty"`
}

// Buffer is the shared market state. Books are immutable once stored, so
// readers either see the previous complete book or the next one, never a
// partial write.
type Buffer struct {
	logger      *slog.Logger
	historySize int

	mu      sync.RWMutex
	latest  map[bookKey]*domain.OrderBook
	history map[bookKey]*Ring[*domain.OrderBook]
	seen    map[string]time.Time
	frames  *Ring[*domain.MetricsFrame]
}

// NewBuffer creates a buffer keeping historySize books per venue+symbol
// stream and historySize metrics frames.
func NewBuffer(historySize int, logger *slog.Logger) *Buffer {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	return &Buffer{
		logger:      logger.With(slog.String("component", "state_buffer")),
		historySize: historySize,
		latest:      make(map[bookKey]*domain.OrderBook),
		history:     make(map[bookKey]*Ring[*domain.OrderBook]),
		seen:        make(map[string]time.Time),
		frames:      NewRing[*domain.MetricsFrame](historySize),
	}
}

// Run consumes the fan-in update channel until ctx is cancelled or the
// channel closes. It is the buffer's only writer for book state.
func (b *Buffer) Run(ctx context.Context, updates <-chan domain.BookUpdate) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.apply(upd)
		}
	}
}

func (b *Buffer) apply(upd domain.BookUpdate) {
	if upd.Book == nil {
		return
	}
	if upd.Book.Crossed() {
		// Momentarily inconsistent venue data. Stored anyway; consumers
		// decide how much to trust it.
		b.logger.Warn("crossed book",
			slog.String("venue", upd.Venue),
			slog.String("symbol", upd.Book.Symbol),
		)
	}

	key := bookKey{venue: upd.Venue, symbol: upd.Book.Symbol}

	b.mu.Lock()
	b.latest[key] = upd.Book
	ring, ok := b.history[key]
	if !ok {
		ring = NewRing[*domain.OrderBook](b.historySize)
		b.history[key] = ring
	}
	ring.Push(upd.Book)
	b.seen[upd.Venue] = upd.Book.CapturedAt
	b.mu.Unlock()
}

// Latest returns the most recent complete book for one venue+symbol stream,
// or nil before the first update.
func (b *Buffer) Latest(venue, symbol string) *domain.OrderBook {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest[bookKey{venue: venue, symbol: symbol}]
}

// Snapshot returns the latest book per venue, grouped by symbol. The maps
// are fresh; the books inside are shared immutable values.
func (b *Buffer) Snapshot() map[string]map[string]*domain.OrderBook {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]map[string]*domain.OrderBook)
	for key, book := range b.latest {
		byVenue, ok := out[key.symbol]
		if !ok {
			byVenue = make(map[string]*domain.OrderBook)
			out[key.symbol] = byVenue
		}
		byVenue[key.venue] = book
	}
	return out
}

// History returns up to n of the most recent books for one stream,
// oldest-first.
func (b *Buffer) History(venue, symbol string, n int) []*domain.OrderBook {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ring, ok := b.history[bookKey{venue: venue, symbol: symbol}]
	if !ok {
		return nil
	}
	return ring.Tail(n)
}

// VenueStatus reports per-venue data health against the given staleness
// threshold.
func (b *Buffer) VenueStatus(now time.Time, threshold time.Duration) map[string]VenueHealth {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]VenueHealth, len(b.seen))
	for venue, last := range b.seen {
		out[venue] = VenueHealth{
			Venue:      venue,
			HasData:    !last.IsZero(),
			Stale:      last.IsZero() || now.UTC().Sub(last) > threshold,
			LastUpdate: last,
		}
	}
	return out
}

// MarkVenue registers a venue so status reporting covers it before its first
// book arrives.
func (b *Buffer) MarkVenue(venue string) {
	b.mu.Lock()
	if _, ok := b.seen[venue]; !ok {
		b.seen[venue] = time.Time{}
	}
	b.mu.Unlock()
}

// AddFrame appends a metrics frame to the bounded history.
func (b *Buffer) AddFrame(frame *domain.MetricsFrame) {
	if frame == nil {
		return
	}
	b.mu.Lock()
	b.frames.Push(frame)
	b.mu.Unlock()
}

// LatestFrame returns the most recent metrics frame, or nil.
func (b *Buffer) LatestFrame() *domain.MetricsFrame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	frame, ok := b.frames.Last()
	if !ok {
		return nil
	}
	return frame
}

// RecentFrames returns up to n of the most recent frames, oldest-first.
func (b *Buffer) RecentFrames(n int) []*domain.MetricsFrame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frames.Tail(n)
}

// FramesSince returns the frames captured strictly after ts, oldest-first.
func (b *Buffer) FramesSince(ts time.Time) []*domain.MetricsFrame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	all := b.frames.Items()
	out := make([]*domain.MetricsFrame, 0, len(all))
	for _, frame := range all {
		if frame.TS.After(ts) {
			out = append(out, frame)
		}
	}
	return out
}
