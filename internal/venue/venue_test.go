package venue

import (
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liqtrack/internal/domain"
)

func TestReconnectPolicyDelay(t *testing.T) {
	p := DefaultReconnectPolicy()

	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 32*time.Second, p.Delay(6))
	// Capped from attempt 7 on.
	assert.Equal(t, 60*time.Second, p.Delay(7))
	assert.Equal(t, 60*time.Second, p.Delay(50))
	// Defensive clamp for nonsense input.
	assert.Equal(t, time.Second, p.Delay(0))
}

func TestParseRawLevelsDropsBadEntries(t *testing.T) {
	levels := ParseRawLevels([][]string{
		{"30000", "1.5"},
		{"30000.5", "2", "ignored-extra"},
		{"oops", "1"},
		{"29990", "bad"},
		{"29980", "0"},
		{"29970"},
	})

	require.Len(t, levels, 2)
	assert.True(t, levels[0].Price.Equal(decimal.NewFromInt(30000)))
	assert.True(t, levels[1].Size.Equal(decimal.NewFromInt(2)))
}

func TestTrackerStaleness(t *testing.T) {
	var tr Tracker
	assert.True(t, tr.IsStale(time.Minute), "no book yet")

	book, err := domain.NewOrderBook(Binance, "BTC-USD", time.Now(), nil,
		[]domain.PriceLevel{mustLevel(t, "30000", "1")},
		[]domain.PriceLevel{mustLevel(t, "30010", "1")},
	)
	require.NoError(t, err)
	tr.SetLatest(book)
	assert.False(t, tr.IsStale(time.Minute))

	old, err := domain.NewOrderBook(Binance, "BTC-USD", time.Now().Add(-2*time.Minute), nil,
		[]domain.PriceLevel{mustLevel(t, "30000", "1")},
		[]domain.PriceLevel{mustLevel(t, "30010", "1")},
	)
	require.NoError(t, err)
	tr.SetLatest(old)
	assert.True(t, tr.IsStale(time.Minute))
}

func TestTrackerAttempts(t *testing.T) {
	var tr Tracker
	assert.Equal(t, 1, tr.BumpAttempts())
	assert.Equal(t, 2, tr.BumpAttempts())
	tr.ResetAttempts()
	assert.Equal(t, 1, tr.BumpAttempts())
}

func TestEmitDropsWhenConsumerBusy(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	out := make(chan domain.BookUpdate, 1)

	book, err := domain.NewOrderBook(Kraken, "BTC-USD", time.Now(), nil,
		[]domain.PriceLevel{mustLevel(t, "30000", "1")},
		[]domain.PriceLevel{mustLevel(t, "30010", "1")},
	)
	require.NoError(t, err)

	Emit(out, Kraken, book, logger)
	// Channel full: this must not block.
	Emit(out, Kraken, book, logger)

	upd := <-out
	assert.Equal(t, Kraken, upd.Venue)
	assert.Empty(t, out)
}

func mustLevel(t *testing.T, price, size string) domain.PriceLevel {
	t.Helper()
	lvl, err := domain.NewPriceLevel(decimal.RequireFromString(price), decimal.RequireFromString(size))
	require.NoError(t, err)
	return lvl
}
