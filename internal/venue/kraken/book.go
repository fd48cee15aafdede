package kraken

import (
	"time"

	"github.com/shopspring/decimal"

	"liqtrack/internal/domain"
	"liqtrack/internal/venue"
)

// accumulator folds snapshot and delta payloads into the current book
// state. Prices are keyed by their wire string so that upserts and
// removals for the same level always hit the same entry.
type accumulator struct {
	bids map[string]decimal.Decimal
	asks map[string]decimal.Decimal
}

func newAccumulator() *accumulator {
	return &accumulator{
		bids: make(map[string]decimal.Decimal),
		asks: make(map[string]decimal.Decimal),
	}
}

// reset discards all accumulated state. Called on every (re)connect so a
// fresh snapshot is required before anything is published again.
func (ac *accumulator) reset() {
	ac.bids = make(map[string]decimal.Decimal)
	ac.asks = make(map[string]decimal.Decimal)
}

// apply folds one payload into the book. Snapshot entries and delta
// entries use the same upsert-or-remove rule, so they share applySide.
func (ac *accumulator) apply(p *bookPayload) {
	applySide(ac.bids, p.SnapshotBids)
	applySide(ac.asks, p.SnapshotAsks)
	applySide(ac.bids, p.Bids)
	applySide(ac.asks, p.Asks)
}

func applySide(side map[string]decimal.Decimal, entries [][]string) {
	for _, entry := range entries {
		if len(entry) < 2 {
			continue
		}
		size, err := decimal.NewFromString(entry[1])
		if err != nil || size.IsNegative() {
			continue
		}
		if size.IsZero() {
			delete(side, entry[0])
			continue
		}
		if _, err := decimal.NewFromString(entry[0]); err != nil {
			continue
		}
		side[entry[0]] = size
	}
}

// ready reports whether both sides hold at least one level. One-sided
// state is normal mid-warmup and must not be published.
func (ac *accumulator) ready() bool {
	return len(ac.bids) > 0 && len(ac.asks) > 0
}

// materialize builds an immutable book from the accumulated state.
func (ac *accumulator) materialize(symbol string, capturedAt time.Time) (*domain.OrderBook, error) {
	bids := make([]domain.PriceLevel, 0, len(ac.bids))
	for price, size := range ac.bids {
		p, err := decimal.NewFromString(price)
		if err != nil {
			continue
		}
		lvl, err := domain.NewPriceLevel(p, size)
		if err != nil {
			continue
		}
		bids = append(bids, lvl)
	}
	asks := make([]domain.PriceLevel, 0, len(ac.asks))
	for price, size := range ac.asks {
		p, err := decimal.NewFromString(price)
		if err != nil {
			continue
		}
		lvl, err := domain.NewPriceLevel(p, size)
		if err != nil {
			continue
		}
		asks = append(asks, lvl)
	}
	return domain.NewOrderBook(venue.Kraken, symbol, capturedAt, nil, bids, asks)
}
