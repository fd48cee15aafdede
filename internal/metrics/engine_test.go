package metrics

import (
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liqtrack/internal/domain"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func book(t *testing.T, venue string, capturedAt time.Time, bids, asks [][2]string) *domain.OrderBook {
	t.Helper()
	toLevels := func(raw [][2]string) []domain.PriceLevel {
		levels := make([]domain.PriceLevel, 0, len(raw))
		for _, entry := range raw {
			lvl, err := domain.NewPriceLevel(
				decimal.RequireFromString(entry[0]),
				decimal.RequireFromString(entry[1]),
			)
			require.NoError(t, err)
			levels = append(levels, lvl)
		}
		return levels
	}
	b, err := domain.NewOrderBook(venue, "BTC-USD", capturedAt, nil, toLevels(bids), toLevels(asks))
	require.NoError(t, err)
	return b
}

func TestComputeMetricsTwoVenues(t *testing.T) {
	now := time.Now()
	binance := book(t, "binance", now,
		[][2]string{{"50000", "2"}},
		[][2]string{{"50010", "2"}},
	)
	kraken := book(t, "kraken", now,
		[][2]string{{"50001", "2"}},
		[][2]string{{"50009", "2"}},
	)

	engine := NewEngine(decimal.NewFromInt(50), 5*time.Second, testLogger())
	frame := engine.ComputeMetrics(now, "BTC-USD", binance, kraken)

	require.NotNil(t, frame.Mid)
	assert.True(t, frame.Mid.Equal(decimal.NewFromInt(50005)), "both mids are 50005")

	// Best bid 50001, best ask 50009: 8 / 50005 * 10000 ~= 1.6 bps.
	require.NotNil(t, frame.SpreadBps)
	assert.InDelta(t, 1.6, frame.SpreadBps.InexactFloat64(), 0.01)

	// Symmetric depth on both venues.
	require.NotNil(t, frame.Imbalance)
	assert.Zero(t, *frame.Imbalance)

	// Equal shares: HHI = 0.5^2 + 0.5^2.
	require.NotNil(t, frame.HHI)
	assert.InDelta(t, 0.5, *frame.HHI, 1e-9)

	require.NotNil(t, frame.Depth050)
	assert.True(t, frame.Depth050.Equal(decimal.NewFromInt(8)))

	require.Len(t, frame.Venues, 2)
	for _, vm := range frame.Venues {
		assert.False(t, vm.Stale)
		assert.GreaterOrEqual(t, vm.LatencyMs, 0.0)
		require.NotNil(t, vm.SpreadBps)
	}
}

func TestComputeMetricsSingleVenueFallback(t *testing.T) {
	now := time.Now()
	binance := book(t, "binance", now,
		[][2]string{{"50000", "1"}},
		[][2]string{{"50010", "1"}},
	)

	engine := NewEngine(decimal.NewFromInt(50), 5*time.Second, testLogger())
	frame := engine.ComputeMetrics(now, "BTC-USD", binance, nil)

	require.NotNil(t, frame.Mid)
	assert.True(t, frame.Mid.Equal(decimal.NewFromInt(50005)))
	require.Len(t, frame.Venues, 1)

	// One venue holds the whole share.
	require.NotNil(t, frame.HHI)
	assert.InDelta(t, 1.0, *frame.HHI, 1e-9)
}

func TestComputeMetricsNoData(t *testing.T) {
	engine := NewEngine(decimal.NewFromInt(50), 5*time.Second, testLogger())
	frame := engine.ComputeMetrics(time.Now(), "BTC-USD", nil, nil)

	assert.Nil(t, frame.Mid)
	assert.Nil(t, frame.SpreadBps)
	assert.Nil(t, frame.Depth050)
	assert.Nil(t, frame.Imbalance)
	assert.Empty(t, frame.Venues)
}

func TestCrossVenueSpreadNilWhenCrossed(t *testing.T) {
	now := time.Now()
	// Binance bid 50020 sits above Kraken ask 50009: crossed across venues.
	binance := book(t, "binance", now,
		[][2]string{{"50020", "1"}},
		[][2]string{{"50030", "1"}},
	)
	kraken := book(t, "kraken", now,
		[][2]string{{"50001", "1"}},
		[][2]string{{"50009", "1"}},
	)

	engine := NewEngine(decimal.NewFromInt(50), 5*time.Second, testLogger())
	frame := engine.ComputeMetrics(now, "BTC-USD", binance, kraken)

	require.NotNil(t, frame.Mid)
	assert.Nil(t, frame.SpreadBps)
}

func TestVenueStaleFlag(t *testing.T) {
	now := time.Now()
	fresh := book(t, "binance", now,
		[][2]string{{"50000", "1"}}, [][2]string{{"50010", "1"}})
	stale := book(t, "kraken", now.Add(-time.Minute),
		[][2]string{{"50001", "1"}}, [][2]string{{"50009", "1"}})

	engine := NewEngine(decimal.NewFromInt(50), 5*time.Second, testLogger())
	frame := engine.ComputeMetrics(now, "BTC-USD", fresh, stale)

	byVenue := map[string]domain.VenueMetrics{}
	for _, vm := range frame.Venues {
		byVenue[vm.Venue] = vm
	}
	assert.False(t, byVenue["binance"].Stale)
	assert.True(t, byVenue["kraken"].Stale)
}

func TestImbalanceLeansTowardBids(t *testing.T) {
	now := time.Now()
	heavy := book(t, "binance", now,
		[][2]string{{"50000", "9"}},
		[][2]string{{"50010", "1"}},
	)

	engine := NewEngine(decimal.NewFromInt(50), 5*time.Second, testLogger())
	frame := engine.ComputeMetrics(now, "BTC-USD", heavy)

	require.NotNil(t, frame.Imbalance)
	assert.InDelta(t, 0.8, *frame.Imbalance, 1e-9)
}
