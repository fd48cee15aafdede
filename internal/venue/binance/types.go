package binance

import (
	"time"

	"liqtrack/internal/domain"
	"liqtrack/internal/venue"
)

// depthMessage is the wire shape of a Binance depth event. Partial book
// snapshot streams omit the "e" discriminator entirely; diff streams carry
// "depthUpdate". Either way the payload is a complete top-N view of both
// sides, so the adapter treats a missing discriminator as an implicit
// snapshot.
type depthMessage struct {
	EventType    string     `json:"e"`
	EventTimeMs  int64      `json:"E"`
	Symbol       string     `json:"s"`
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// isBookEvent reports whether the message should be normalized into a book.
// An empty event type counts as a snapshot.
func (m *depthMessage) isBookEvent() bool {
	switch m.EventType {
	case "", "depthUpdate", "depthSnapshot":
		return true
	default:
		return false
	}
}

// normalize turns the wire message into a fresh OrderBook. Binance reports
// the server event time in epoch milliseconds; it becomes the book's server
// timestamp when present. Books always carry the configured normalized
// symbol; the wire symbol ("BTCUSDT") never leaks into buffer keys.
func (m *depthMessage) normalize(symbol string, capturedAt time.Time) (*domain.OrderBook, error) {
	var serverTime *time.Time
	if m.EventTimeMs > 0 {
		t := time.UnixMilli(m.EventTimeMs).UTC()
		serverTime = &t
	}
	return domain.NewOrderBook(
		venue.Binance,
		symbol,
		capturedAt,
		serverTime,
		venue.ParseRawLevels(m.Bids),
		venue.ParseRawLevels(m.Asks),
	)
}
