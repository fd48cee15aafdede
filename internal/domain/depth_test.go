package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ladderBook(t *testing.T) *OrderBook {
	t.Helper()
	return testBook(t,
		[]PriceLevel{
			level(t, "50000", "1"),
			level(t, "49990", "2"),
			level(t, "49980", "3"),
		},
		[]PriceLevel{
			level(t, "50010", "1"),
			level(t, "50020", "2"),
			level(t, "50030", "3"),
		},
	)
}

func TestAnalyzeDepthCumulative(t *testing.T) {
	da := ladderBook(t).AnalyzeDepth()

	require.Len(t, da.BidLadder, 3)
	assert.True(t, da.BidLadder[0].Cumulative.Equal(decimal.NewFromInt(1)))
	assert.True(t, da.BidLadder[2].Cumulative.Equal(decimal.NewFromInt(6)))
	assert.True(t, da.TotalBidDepth.Equal(decimal.NewFromInt(6)))
	assert.True(t, da.TotalAskDepth.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, 3, da.BidLevels)
}

func TestDepthAtOrBetter(t *testing.T) {
	book := ladderBook(t)

	// Bids at or above 49990: 1 + 2.
	got := book.DepthAtOrBetter(decimal.NewFromInt(49990), SideBid)
	assert.True(t, got.Equal(decimal.NewFromInt(3)))

	// Asks at or below 50020: 1 + 2.
	got = book.DepthAtOrBetter(decimal.NewFromInt(50020), SideAsk)
	assert.True(t, got.Equal(decimal.NewFromInt(3)))

	// Nothing qualifies above the best bid.
	got = book.DepthAtOrBetter(decimal.NewFromInt(50005), SideBid)
	assert.True(t, got.IsZero())
}

func TestDepthWithinBpsMonotonic(t *testing.T) {
	book := ladderBook(t)

	narrowBid, narrowAsk := book.DepthWithinBps(decimal.NewFromInt(1))
	wideBid, wideAsk := book.DepthWithinBps(decimal.NewFromInt(50))

	assert.True(t, wideBid.GreaterThanOrEqual(narrowBid))
	assert.True(t, wideAsk.GreaterThanOrEqual(narrowAsk))

	// 50 bps around mid 50015 reaches every level in this book.
	assert.True(t, wideBid.Equal(decimal.NewFromInt(6)))
	assert.True(t, wideAsk.Equal(decimal.NewFromInt(6)))
}

func TestMarketImpactSweep(t *testing.T) {
	da := ladderBook(t).AnalyzeDepth()

	// Buy 2 units: 1 @ 50010 + 1 @ 50020 -> vwap 50015.
	vwap, impact := da.MarketImpact(decimal.NewFromInt(2), SideAsk)
	assert.True(t, vwap.Equal(decimal.NewFromInt(50015)))
	// (50015-50010)/50010 * 10000 ~= 0.9998 bps
	assert.InDelta(t, 0.9998, impact.InexactFloat64(), 0.001)

	// Sell 1 unit rests entirely at the best bid: zero impact.
	vwap, impact = da.MarketImpact(decimal.NewFromInt(1), SideBid)
	assert.True(t, vwap.Equal(decimal.NewFromInt(50000)))
	assert.True(t, impact.IsZero())
}

func TestMarketImpactCannotFill(t *testing.T) {
	da := ladderBook(t).AnalyzeDepth()

	vwap, impact := da.MarketImpact(decimal.NewFromInt(100), SideAsk)
	assert.True(t, vwap.IsZero())
	assert.True(t, impact.IsZero())

	// Non-positive sizes are also undefined.
	vwap, _ = da.MarketImpact(decimal.Zero, SideBid)
	assert.True(t, vwap.IsZero())
}

func TestOptimalTradeSize(t *testing.T) {
	da := ladderBook(t).AnalyzeDepth()

	// A generous budget admits every candidate both sides can absorb; the
	// ladder's largest such candidate is 5.
	size, impact := da.OptimalTradeSize(decimal.NewFromInt(100))
	assert.True(t, size.Equal(decimal.NewFromInt(5)))
	assert.True(t, impact.GreaterThan(decimal.Zero))

	// A tiny budget only admits sizes resting at the top of book.
	size, impact = da.OptimalTradeSize(decimal.RequireFromString("0.01"))
	assert.True(t, size.Equal(decimal.NewFromInt(1)))
	assert.True(t, impact.IsZero())
}

func TestOptimalTradeSizeNoCandidate(t *testing.T) {
	book := testBook(t,
		[]PriceLevel{level(t, "50000", "0.05")},
		[]PriceLevel{level(t, "50010", "0.05")},
	)
	size, impact := book.AnalyzeDepth().OptimalTradeSize(decimal.NewFromInt(100))
	assert.True(t, size.IsZero())
	assert.True(t, impact.IsZero())
}

func TestLiquidityScore(t *testing.T) {
	book := ladderBook(t)

	score := book.LiquidityScore(decimal.NewFromInt(50))
	// 12 units within the window at mid 50015.
	assert.True(t, score.Equal(decimal.NewFromInt(12).Mul(decimal.NewFromInt(50015))))

	empty := testBook(t, []PriceLevel{level(t, "50000", "1")}, nil)
	assert.True(t, empty.LiquidityScore(decimal.NewFromInt(50)).IsZero())
}
