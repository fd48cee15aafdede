// Package metrics derives cross-venue market metrics from the latest books:
// the per-tick metrics frame, the fee-aware smart order router, and the
// arbitrage detector. Everything here is pure computation over immutable
// books; the caller owns scheduling and persistence.
package metrics

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"liqtrack/internal/domain"
)

var (
	one      = decimal.NewFromInt(1)
	bpsScale = decimal.NewFromInt(10000)
)

// Engine computes one MetricsFrame per tick from the latest book per venue.
// A failed sub-computation nulls its field; it never aborts the frame.
type Engine struct {
	windowBps      decimal.Decimal
	staleThreshold time.Duration
	logger         *slog.Logger
}

// NewEngine creates an engine with the given depth window and staleness
// threshold.
func NewEngine(windowBps decimal.Decimal, staleThreshold time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		windowBps:      windowBps,
		staleThreshold: staleThreshold,
		logger:         logger.With(slog.String("component", "metrics_engine")),
	}
}

// ComputeMetrics builds a frame from the given venue books. Nil books are
// skipped; with no usable book at all the frame carries null metrics and an
// empty venue list.
func (e *Engine) ComputeMetrics(now time.Time, symbol string, books ...*domain.OrderBook) *domain.MetricsFrame {
	frame := &domain.MetricsFrame{
		TS:        now.UTC(),
		Symbol:    symbol,
		WindowBps: e.windowBps,
		Venues:    []domain.VenueMetrics{},
	}

	live := make([]*domain.OrderBook, 0, len(books))
	for _, b := range books {
		if b != nil {
			live = append(live, b)
		}
	}
	if len(live) == 0 {
		return frame
	}

	for _, b := range live {
		frame.Venues = append(frame.Venues, e.venueMetrics(now, b))
	}

	if mid, ok := crossVenueMid(live); ok {
		frame.Mid = &mid

		if spread, ok := e.crossVenueSpreadBps(live, mid); ok {
			frame.SpreadBps = &spread
		}

		depth, bidDepth, askDepth := e.windowDepth(live)
		frame.Depth050 = &depth

		imb := imbalance(bidDepth, askDepth)
		frame.Imbalance = &imb
	}

	hhi := hhiFromShares(frame.Venues)
	frame.HHI = &hhi

	return frame
}

func (e *Engine) venueMetrics(now time.Time, b *domain.OrderBook) domain.VenueMetrics {
	vm := domain.VenueMetrics{
		Venue:     b.Venue,
		Stale:     b.IsStale(now, e.staleThreshold),
		LatencyMs: float64(b.Latency(now)) / float64(time.Millisecond),
	}
	if spread, ok := b.SpreadBps(); ok {
		vm.SpreadBps = &spread
	}
	bidDepth, askDepth := b.DepthWithinBps(e.windowBps)
	vm.Share = bidDepth.Add(askDepth)
	return vm
}

// crossVenueMid averages the available venue mids, falling back to a single
// venue. False when no venue has a two-sided book.
func crossVenueMid(books []*domain.OrderBook) (decimal.Decimal, bool) {
	sum := decimal.Zero
	n := 0
	for _, b := range books {
		if mid, ok := b.MidPrice(); ok {
			sum = sum.Add(mid)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}

// crossVenueSpreadBps is the best ask across venues minus the best bid
// across venues, in bps of the cross-venue mid. False when either side is
// missing or the implied spread is non-positive (crossed across venues).
func (e *Engine) crossVenueSpreadBps(books []*domain.OrderBook, mid decimal.Decimal) (decimal.Decimal, bool) {
	var bestBid, bestAsk decimal.Decimal
	haveBid, haveAsk := false, false
	for _, b := range books {
		if bid, ok := b.BestBid(); ok && (!haveBid || bid.GreaterThan(bestBid)) {
			bestBid, haveBid = bid, true
		}
		if ask, ok := b.BestAsk(); ok && (!haveAsk || ask.LessThan(bestAsk)) {
			bestAsk, haveAsk = ask, true
		}
	}
	if !haveBid || !haveAsk || mid.IsZero() || !bestAsk.GreaterThan(bestBid) {
		return decimal.Zero, false
	}
	return bestAsk.Sub(bestBid).Mul(bpsScale).Div(mid), true
}

// windowDepth sums each venue's within-window depth on both sides.
func (e *Engine) windowDepth(books []*domain.OrderBook) (total, bid, ask decimal.Decimal) {
	for _, b := range books {
		bd, ad := b.DepthWithinBps(e.windowBps)
		bid = bid.Add(bd)
		ask = ask.Add(ad)
	}
	return bid.Add(ask), bid, ask
}

// imbalance is (bid-ask)/(bid+ask) clamped to [-1, 1], 0 at zero depth.
func imbalance(bidDepth, askDepth decimal.Decimal) float64 {
	total := bidDepth.Add(askDepth)
	if !total.IsPositive() {
		return 0
	}
	imb, _ := bidDepth.Sub(askDepth).Div(total).Float64()
	if imb > 1 {
		return 1
	}
	if imb < -1 {
		return -1
	}
	return imb
}

// hhiFromShares normalizes the venue shares to sum to 1 and returns the sum
// of squares. 0 when the total share is 0.
func hhiFromShares(venues []domain.VenueMetrics) float64 {
	total := decimal.Zero
	for _, v := range venues {
		if v.Share.IsPositive() {
			total = total.Add(v.Share)
		}
	}
	if !total.IsPositive() {
		return 0
	}
	hhi := 0.0
	for _, v := range venues {
		if v.Share.IsPositive() {
			share, _ := v.Share.Div(total).Float64()
			hhi += share * share
		}
	}
	return hhi
}
