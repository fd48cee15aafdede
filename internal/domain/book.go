package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies one side of an order book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Valid reports whether s is a known order book side.
func (s Side) Valid() bool { return s == SideBid || s == SideAsk }

// PriceLevel is a single price+size entry in an order book. Both fields are
// strictly positive; use NewPriceLevel to enforce that.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// NewPriceLevel validates and builds a price level. It fails when either the
// price or the size is not strictly positive.
func NewPriceLevel(price, size decimal.Decimal) (PriceLevel, error) {
	if !price.IsPositive() {
		return PriceLevel{}, fmt.Errorf("domain: price must be positive, got %s: %w", price, ErrInvalidLevel)
	}
	if !size.IsPositive() {
		return PriceLevel{}, fmt.Errorf("domain: size must be positive, got %s: %w", size, ErrInvalidLevel)
	}
	return PriceLevel{Price: price, Size: size}, nil
}

// OrderBook is a normalized order book from any venue. It is immutable after
// construction: adapters build a fresh book per update and the previous one is
// simply replaced. Bids are sorted descending by price, asks ascending.
type OrderBook struct {
	Venue      string       `json:"venue"`
	Symbol     string       `json:"symbol"`
	CapturedAt time.Time    `json:"captured_at"`
	ServerTime *time.Time   `json:"server_time,omitempty"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
}

// NewOrderBook validates every level, sorts both sides, and normalizes
// timestamps to UTC. A crossed book (best bid >= best ask) is legal here;
// Crossed lets the consumer surface it as a data-quality warning.
func NewOrderBook(venue, symbol string, capturedAt time.Time, serverTime *time.Time, bids, asks []PriceLevel) (*OrderBook, error) {
	for _, lvl := range bids {
		if !lvl.Price.IsPositive() || !lvl.Size.IsPositive() {
			return nil, fmt.Errorf("domain: bid level %s@%s: %w", lvl.Size, lvl.Price, ErrInvalidLevel)
		}
	}
	for _, lvl := range asks {
		if !lvl.Price.IsPositive() || !lvl.Size.IsPositive() {
			return nil, fmt.Errorf("domain: ask level %s@%s: %w", lvl.Size, lvl.Price, ErrInvalidLevel)
		}
	}

	sortedBids := make([]PriceLevel, len(bids))
	copy(sortedBids, bids)
	sort.Slice(sortedBids, func(i, j int) bool {
		return sortedBids[i].Price.GreaterThan(sortedBids[j].Price)
	})

	sortedAsks := make([]PriceLevel, len(asks))
	copy(sortedAsks, asks)
	sort.Slice(sortedAsks, func(i, j int) bool {
		return sortedAsks[i].Price.LessThan(sortedAsks[j].Price)
	})

	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	capturedAt = capturedAt.UTC()
	if serverTime != nil {
		t := serverTime.UTC()
		serverTime = &t
	}

	return &OrderBook{
		Venue:      venue,
		Symbol:     symbol,
		CapturedAt: capturedAt,
		ServerTime: serverTime,
		Bids:       sortedBids,
		Asks:       sortedAsks,
	}, nil
}

// BestBid returns the highest bid price. The second return is false when the
// bid side is empty.
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	if len(b.Bids) == 0 {
		return decimal.Zero, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the lowest ask price. The second return is false when the
// ask side is empty.
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(b.Asks) == 0 {
		return decimal.Zero, false
	}
	return b.Asks[0].Price, true
}

// MidPrice returns (bestBid+bestAsk)/2. Undefined when either side is empty.
func (b *OrderBook) MidPrice() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(two), true
}

// SpreadBps returns 10000*(bestAsk-bestBid)/mid. Undefined when either side
// is empty. Negative on a crossed book; callers treat that as best-effort.
func (b *OrderBook) SpreadBps() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	mid, okMid := b.MidPrice()
	if !okBid || !okAsk || !okMid || mid.IsZero() {
		return decimal.Zero, false
	}
	return ask.Sub(bid).Mul(bpsScale).Div(mid), true
}

// Crossed reports whether the best bid is at or above the best ask. A crossed
// book signals momentarily inconsistent venue data; it does not invalidate
// the book.
func (b *OrderBook) Crossed() bool {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	return okBid && okAsk && bid.GreaterThanOrEqual(ask)
}

// Age returns how old the book is relative to now, by local capture time.
func (b *OrderBook) Age(now time.Time) time.Duration {
	return now.UTC().Sub(b.CapturedAt)
}

// IsStale reports whether the book is older than the given threshold.
func (b *OrderBook) IsStale(now time.Time, threshold time.Duration) bool {
	return b.Age(now) > threshold
}

// Latency is the capture delay: now minus the server timestamp when the venue
// provides one, else now minus local capture time. Clamped at zero.
func (b *OrderBook) Latency(now time.Time) time.Duration {
	ref := b.CapturedAt
	if b.ServerTime != nil {
		ref = *b.ServerTime
	}
	d := now.UTC().Sub(ref)
	if d < 0 {
		return 0
	}
	return d
}

var (
	two      = decimal.NewFromInt(2)
	bpsScale = decimal.NewFromInt(10000)
)
