package coinbase

import (
	"time"

	"github.com/shopspring/decimal"

	"liqtrack/internal/domain"
	"liqtrack/internal/venue"
)

// bookState holds the working book. A snapshot replaces both sides
// wholesale; l2update changes upsert or remove individual levels. Prices
// are keyed by their wire string so updates always hit the same entry.
type bookState struct {
	bids map[string]decimal.Decimal
	asks map[string]decimal.Decimal
}

func newBookState() *bookState {
	return &bookState{
		bids: make(map[string]decimal.Decimal),
		asks: make(map[string]decimal.Decimal),
	}
}

func (bs *bookState) reset() {
	bs.bids = make(map[string]decimal.Decimal)
	bs.asks = make(map[string]decimal.Decimal)
}

// applySnapshot replaces the whole book.
func (bs *bookState) applySnapshot(bids, asks [][]string) {
	bs.reset()
	for _, entry := range bids {
		upsert(bs.bids, entry)
	}
	for _, entry := range asks {
		upsert(bs.asks, entry)
	}
}

// applyChanges folds l2update [side, price, size] tuples into the book.
// A size of "0" removes the level; unknown sides and malformed tuples are
// skipped.
func (bs *bookState) applyChanges(changes [][]string) {
	for _, change := range changes {
		if len(change) < 3 {
			continue
		}
		switch change[0] {
		case "buy":
			upsert(bs.bids, change[1:])
		case "sell":
			upsert(bs.asks, change[1:])
		}
	}
}

func upsert(side map[string]decimal.Decimal, entry []string) {
	if len(entry) < 2 {
		return
	}
	size, err := decimal.NewFromString(entry[1])
	if err != nil || size.IsNegative() {
		return
	}
	if size.IsZero() {
		delete(side, entry[0])
		return
	}
	if _, err := decimal.NewFromString(entry[0]); err != nil {
		return
	}
	side[entry[0]] = size
}

// ready reports whether both sides hold at least one level.
func (bs *bookState) ready() bool {
	return len(bs.bids) > 0 && len(bs.asks) > 0
}

// materialize builds an immutable book from the working state.
func (bs *bookState) materialize(symbol string, capturedAt time.Time) (*domain.OrderBook, error) {
	return domain.NewOrderBook(venue.Coinbase, symbol, capturedAt, nil,
		sideLevels(bs.bids), sideLevels(bs.asks))
}

func sideLevels(side map[string]decimal.Decimal) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(side))
	for price, size := range side {
		p, err := decimal.NewFromString(price)
		if err != nil {
			continue
		}
		lvl, err := domain.NewPriceLevel(p, size)
		if err != nil {
			continue
		}
		levels = append(levels, lvl)
	}
	return levels
}
