package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func level(t *testing.T, price, size string) PriceLevel {
	t.Helper()
	lvl, err := NewPriceLevel(decimal.RequireFromString(price), decimal.RequireFromString(size))
	require.NoError(t, err)
	return lvl
}

func testBook(t *testing.T, bids, asks []PriceLevel) *OrderBook {
	t.Helper()
	book, err := NewOrderBook("binance", "BTC-USD", time.Now(), nil, bids, asks)
	require.NoError(t, err)
	return book
}

func TestNewPriceLevelRejectsNonPositive(t *testing.T) {
	_, err := NewPriceLevel(decimal.Zero, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidLevel)

	_, err = NewPriceLevel(decimal.NewFromInt(1), decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestNewOrderBookSortsBothSides(t *testing.T) {
	book := testBook(t,
		[]PriceLevel{level(t, "29990", "1"), level(t, "30000", "1"), level(t, "29995", "1")},
		[]PriceLevel{level(t, "30020", "1"), level(t, "30010", "1")},
	)

	assert.True(t, book.Bids[0].Price.Equal(decimal.NewFromInt(30000)))
	assert.True(t, book.Bids[2].Price.Equal(decimal.NewFromInt(29990)))
	assert.True(t, book.Asks[0].Price.Equal(decimal.NewFromInt(30010)))
}

func TestNewOrderBookRejectsInvalidLevel(t *testing.T) {
	bad := PriceLevel{Price: decimal.NewFromInt(30000), Size: decimal.Zero}
	_, err := NewOrderBook("binance", "BTC-USD", time.Now(), nil, []PriceLevel{bad}, nil)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestTopOfBookDerivations(t *testing.T) {
	book := testBook(t,
		[]PriceLevel{level(t, "50000", "1")},
		[]PriceLevel{level(t, "50010", "1")},
	)

	mid, ok := book.MidPrice()
	require.True(t, ok)
	assert.True(t, mid.Equal(decimal.NewFromInt(50005)))

	spread, ok := book.SpreadBps()
	require.True(t, ok)
	// 10 / 50005 * 10000 ~= 1.9998 bps
	assert.InDelta(t, 1.9998, spread.InexactFloat64(), 0.001)

	assert.False(t, book.Crossed())
}

func TestDerivationsUndefinedOnEmptySide(t *testing.T) {
	book := testBook(t, []PriceLevel{level(t, "50000", "1")}, nil)

	_, ok := book.BestAsk()
	assert.False(t, ok)
	_, ok = book.MidPrice()
	assert.False(t, ok)
	_, ok = book.SpreadBps()
	assert.False(t, ok)
	assert.False(t, book.Crossed())
}

func TestCrossedBook(t *testing.T) {
	book := testBook(t,
		[]PriceLevel{level(t, "50010", "1")},
		[]PriceLevel{level(t, "50000", "1")},
	)
	assert.True(t, book.Crossed())

	spread, ok := book.SpreadBps()
	require.True(t, ok)
	assert.True(t, spread.IsNegative())
}

func TestStalenessAndLatency(t *testing.T) {
	captured := time.Now().Add(-3 * time.Second)
	server := captured.Add(-250 * time.Millisecond)
	book, err := NewOrderBook("kraken", "BTC-USD", captured, &server,
		[]PriceLevel{level(t, "50000", "1")},
		[]PriceLevel{level(t, "50010", "1")},
	)
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, book.IsStale(now, 5*time.Second))
	assert.True(t, book.IsStale(now, time.Second))

	// Latency prefers the server clock when present.
	assert.Greater(t, book.Latency(now), book.Age(now))

	// A server clock ahead of ours clamps to zero.
	future := now.Add(time.Minute)
	book.ServerTime = &future
	assert.Equal(t, time.Duration(0), book.Latency(now))
}

func TestTimestampsNormalizedToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	captured := time.Date(2026, 8, 30, 12, 0, 0, 0, loc)
	book, err := NewOrderBook("binance", "BTC-USD", captured, nil,
		[]PriceLevel{level(t, "50000", "1")},
		[]PriceLevel{level(t, "50010", "1")},
	)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, book.CapturedAt.Location())
	assert.True(t, book.CapturedAt.Equal(captured))
}
