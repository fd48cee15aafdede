package venue

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"liqtrack/internal/domain"
)

// ParseRawLevels converts venue [price, size, ...] string tuples into price
// levels. Malformed or non-positive entries are dropped; a bad level never
// fails the whole message.
func ParseRawLevels(raw [][]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		price, err := decimal.NewFromString(entry[0])
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(entry[1])
		if err != nil {
			continue
		}
		lvl, err := domain.NewPriceLevel(price, size)
		if err != nil {
			continue
		}
		levels = append(levels, lvl)
	}
	return levels
}

// Emit forwards a freshly built book to the fan-in channel without blocking
// the read loop. The buffer keeps only the most recent book per venue, so
// dropping under backpressure is safe; the next update supersedes this one
// anyway.
func Emit(out chan<- domain.BookUpdate, venueName string, book *domain.OrderBook, logger *slog.Logger) {
	select {
	case out <- domain.BookUpdate{Venue: venueName, Book: book}:
	default:
		logger.Debug("book update dropped, consumer busy", slog.String("venue", venueName))
	}
}
