package domain

import (
	"github.com/shopspring/decimal"
)

// CumulativeLevel is one rung of a depth ladder: a price level plus the total
// size available at that price or better.
type CumulativeLevel struct {
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// DepthAnalysis holds cumulative-by-price ladders for both sides of a book.
// It is derived on demand from an OrderBook and never persisted.
type DepthAnalysis struct {
	BidLadder     []CumulativeLevel
	AskLadder     []CumulativeLevel
	TotalBidDepth decimal.Decimal
	TotalAskDepth decimal.Decimal
	BidLevels     int
	AskLevels     int
}

// AnalyzeDepth builds the cumulative depth ladders for both sides, walking
// from the best price outward.
func (b *OrderBook) AnalyzeDepth() *DepthAnalysis {
	da := &DepthAnalysis{
		BidLadder: make([]CumulativeLevel, 0, len(b.Bids)),
		AskLadder: make([]CumulativeLevel, 0, len(b.Asks)),
		BidLevels: len(b.Bids),
		AskLevels: len(b.Asks),
	}

	cum := decimal.Zero
	for _, lvl := range b.Bids {
		cum = cum.Add(lvl.Size)
		da.BidLadder = append(da.BidLadder, CumulativeLevel{Price: lvl.Price, Size: lvl.Size, Cumulative: cum})
	}
	da.TotalBidDepth = cum

	cum = decimal.Zero
	for _, lvl := range b.Asks {
		cum = cum.Add(lvl.Size)
		da.AskLadder = append(da.AskLadder, CumulativeLevel{Price: lvl.Price, Size: lvl.Size, Cumulative: cum})
	}
	da.TotalAskDepth = cum

	return da
}

// DepthAtOrBetter sums the size on the given side at or better than the
// target price: bids at or above it, asks at or below it.
func (b *OrderBook) DepthAtOrBetter(targetPrice decimal.Decimal, side Side) decimal.Decimal {
	total := decimal.Zero
	switch side {
	case SideBid:
		for _, lvl := range b.Bids {
			if lvl.Price.LessThan(targetPrice) {
				break
			}
			total = total.Add(lvl.Size)
		}
	case SideAsk:
		for _, lvl := range b.Asks {
			if lvl.Price.GreaterThan(targetPrice) {
				break
			}
			total = total.Add(lvl.Size)
		}
	}
	return total
}

// DepthWithinBps returns the bid depth at prices >= mid*(1-bps/10000) and the
// ask depth at prices <= mid*(1+bps/10000). It returns (0, 0) when the mid is
// undefined. The result is monotonically non-decreasing in bps.
func (b *OrderBook) DepthWithinBps(bps decimal.Decimal) (bidDepth, askDepth decimal.Decimal) {
	mid, ok := b.MidPrice()
	if !ok {
		return decimal.Zero, decimal.Zero
	}
	frac := bps.Div(bpsScale)
	bidBound := mid.Mul(decimal.NewFromInt(1).Sub(frac))
	askBound := mid.Mul(decimal.NewFromInt(1).Add(frac))
	return b.DepthAtOrBetter(bidBound, SideBid), b.DepthAtOrBetter(askBound, SideAsk)
}

// MarketImpact simulates sweeping tradeSize units into the given side of the
// book, consuming levels from the best price outward. It returns the
// volume-weighted execution price and the impact versus the best price in
// bps. When tradeSize exceeds the available depth it returns (0, 0), which
// means "cannot fill", not a zero-impact fill.
func (da *DepthAnalysis) MarketImpact(tradeSize decimal.Decimal, side Side) (vwap, impactBps decimal.Decimal) {
	if !tradeSize.IsPositive() {
		return decimal.Zero, decimal.Zero
	}

	var ladder []CumulativeLevel
	switch side {
	case SideBid:
		ladder = da.BidLadder
	case SideAsk:
		ladder = da.AskLadder
	default:
		return decimal.Zero, decimal.Zero
	}
	if len(ladder) == 0 {
		return decimal.Zero, decimal.Zero
	}
	if tradeSize.GreaterThan(ladder[len(ladder)-1].Cumulative) {
		return decimal.Zero, decimal.Zero
	}

	remaining := tradeSize
	notional := decimal.Zero
	for _, lvl := range ladder {
		if !remaining.IsPositive() {
			break
		}
		fill := decimal.Min(remaining, lvl.Size)
		notional = notional.Add(fill.Mul(lvl.Price))
		remaining = remaining.Sub(fill)
	}

	vwap = notional.Div(tradeSize)
	best := ladder[0].Price
	impactBps = vwap.Sub(best).Abs().Mul(bpsScale).Div(best)
	return vwap, impactBps
}

// tradeSizeLadder is the fixed candidate ladder evaluated by
// OptimalTradeSize, in base units, ascending.
var tradeSizeLadder = []decimal.Decimal{
	decimal.RequireFromString("0.1"),
	decimal.RequireFromString("0.25"),
	decimal.RequireFromString("0.5"),
	decimal.RequireFromString("1"),
	decimal.RequireFromString("2.5"),
	decimal.RequireFromString("5"),
	decimal.RequireFromString("10"),
	decimal.RequireFromString("25"),
	decimal.RequireFromString("50"),
}

// OptimalTradeSize scans a fixed ascending ladder of candidate sizes and
// returns the largest one whose worse-of-buy-or-sell impact stays at or below
// maxImpactBps, together with that impact. A buy consumes asks and a sell
// consumes bids, so both sides must absorb the candidate. Returns (0, 0) when
// no candidate qualifies. Deterministic for a given book: a bounded linear
// scan, not a closed-form solve.
func (da *DepthAnalysis) OptimalTradeSize(maxImpactBps decimal.Decimal) (size, impactBps decimal.Decimal) {
	best := decimal.Zero
	bestImpact := decimal.Zero
	for _, candidate := range tradeSizeLadder {
		if candidate.GreaterThan(da.TotalAskDepth) || candidate.GreaterThan(da.TotalBidDepth) {
			break // cannot fill both legs; larger candidates cannot either
		}
		_, buyImpact := da.MarketImpact(candidate, SideAsk)
		_, sellImpact := da.MarketImpact(candidate, SideBid)
		worse := decimal.Max(buyImpact, sellImpact)
		if worse.LessThanOrEqual(maxImpactBps) {
			best = candidate
			bestImpact = worse
		}
	}
	return best, bestImpact
}

// LiquidityScore expresses the depth within the given window in quote
// currency: (bidDepth+askDepth) * mid. Zero when the mid is undefined.
func (b *OrderBook) LiquidityScore(windowBps decimal.Decimal) decimal.Decimal {
	mid, ok := b.MidPrice()
	if !ok {
		return decimal.Zero
	}
	bidDepth, askDepth := b.DepthWithinBps(windowBps)
	return bidDepth.Add(askDepth).Mul(mid)
}
