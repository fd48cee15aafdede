package state

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liqtrack/internal/domain"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func makeBook(t *testing.T, venue, symbol string, bid, ask string, capturedAt time.Time) *domain.OrderBook {
	t.Helper()
	bidLvl, err := domain.NewPriceLevel(decimal.RequireFromString(bid), decimal.NewFromInt(1))
	require.NoError(t, err)
	askLvl, err := domain.NewPriceLevel(decimal.RequireFromString(ask), decimal.NewFromInt(1))
	require.NoError(t, err)
	book, err := domain.NewOrderBook(venue, symbol, capturedAt, nil,
		[]domain.PriceLevel{bidLvl}, []domain.PriceLevel{askLvl})
	require.NoError(t, err)
	return book
}

func TestBufferLatestAndSnapshot(t *testing.T) {
	b := NewBuffer(8, testLogger())
	now := time.Now()

	b.apply(domain.BookUpdate{Venue: "binance", Book: makeBook(t, "binance", "BTC-USD", "50000", "50010", now)})
	b.apply(domain.BookUpdate{Venue: "kraken", Book: makeBook(t, "kraken", "BTC-USD", "50001", "50009", now)})
	b.apply(domain.BookUpdate{Venue: "binance", Book: makeBook(t, "binance", "ETH-USD", "3000", "3001", now)})

	got := b.Latest("kraken", "BTC-USD")
	require.NotNil(t, got)
	bid, _ := got.BestBid()
	assert.True(t, bid.Equal(decimal.NewFromInt(50001)))

	assert.Nil(t, b.Latest("coinbase", "BTC-USD"))

	snap := b.Snapshot()
	require.Len(t, snap, 2)
	assert.Len(t, snap["BTC-USD"], 2)
	assert.Len(t, snap["ETH-USD"], 1)
}

func TestBufferReplaceKeepsHistory(t *testing.T) {
	b := NewBuffer(3, testLogger())
	now := time.Now()

	for i := 0; i < 5; i++ {
		book := makeBook(t, "binance", "BTC-USD", "50000", "50010", now.Add(time.Duration(i)*time.Second))
		b.apply(domain.BookUpdate{Venue: "binance", Book: book})
	}

	hist := b.History("binance", "BTC-USD", 10)
	require.Len(t, hist, 3)
	assert.True(t, hist[2].CapturedAt.After(hist[0].CapturedAt))

	latest := b.Latest("binance", "BTC-USD")
	assert.True(t, latest.CapturedAt.Equal(hist[2].CapturedAt))
}

func TestBufferVenueStatus(t *testing.T) {
	b := NewBuffer(8, testLogger())
	now := time.Now()

	b.MarkVenue("coinbase")
	b.apply(domain.BookUpdate{Venue: "binance", Book: makeBook(t, "binance", "BTC-USD", "50000", "50010", now)})
	b.apply(domain.BookUpdate{Venue: "kraken", Book: makeBook(t, "kraken", "BTC-USD", "50001", "50009", now.Add(-10*time.Second))})

	status := b.VenueStatus(now, 5*time.Second)
	require.Len(t, status, 3)

	assert.True(t, status["binance"].HasData)
	assert.False(t, status["binance"].Stale)

	assert.True(t, status["kraken"].HasData)
	assert.True(t, status["kraken"].Stale)

	assert.False(t, status["coinbase"].HasData)
	assert.True(t, status["coinbase"].Stale)
}

func TestBufferFrameHistory(t *testing.T) {
	b := NewBuffer(4, testLogger())
	base := time.Now()

	assert.Nil(t, b.LatestFrame())

	for i := 0; i < 6; i++ {
		b.AddFrame(&domain.MetricsFrame{TS: base.Add(time.Duration(i) * time.Second), Symbol: "BTC-USD"})
	}

	latest := b.LatestFrame()
	require.NotNil(t, latest)
	assert.True(t, latest.TS.Equal(base.Add(5*time.Second)))

	recent := b.RecentFrames(2)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].TS.Before(recent[1].TS))

	since := b.FramesSince(base.Add(3 * time.Second))
	assert.Len(t, since, 2)
}

func TestBufferRunConsumesUntilCancel(t *testing.T) {
	b := NewBuffer(8, testLogger())
	updates := make(chan domain.BookUpdate, 4)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := b.Run(ctx, updates)
		assert.ErrorIs(t, err, context.Canceled)
	}()

	updates <- domain.BookUpdate{Venue: "binance", Book: makeBook(t, "binance", "BTC-USD", "50000", "50010", time.Now())}

	require.Eventually(t, func() bool {
		return b.Latest("binance", "BTC-USD") != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()
}
