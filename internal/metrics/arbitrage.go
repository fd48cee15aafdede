package metrics

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"liqtrack/internal/domain"
)

// Confidence scoring references. Each component is normalized against its
// reference, capped at 1, then weighted.
var (
	confSpreadRefBps   = decimal.NewFromInt(100)     // 100 bps = full spread score
	confLiquidityRefUS = decimal.NewFromInt(1000000) // $1M = full liquidity score
	confDepthRefUnits  = decimal.NewFromInt(100)     // 100 base units = full depth score
)

const (
	confSpreadWeight    = 0.4
	confLiquidityWeight = 0.3
	confDepthWeight     = 0.2
	confRecencyWeight   = 0.1
	confRecencyMaxAge   = 5 * time.Second
)

// SymbolThresholds are the per-asset qualification rules. More liquid assets
// carry tighter spread thresholds.
type SymbolThresholds struct {
	MinSpreadBps decimal.Decimal
	MaxImpactBps decimal.Decimal
	MinDepthUSD  decimal.Decimal
}

// DetectorConfig configures the arbitrage detector.
type DetectorConfig struct {
	Symbols           []string
	Thresholds        map[string]SymbolThresholds
	DefaultThresholds SymbolThresholds
	StaleThreshold    time.Duration
	// MinProfitBps gates which retained opportunities count as profitable.
	MinProfitBps decimal.Decimal
	// RoundTripFeeBps is the fixed both-legs fee assumption subtracted from
	// the spread before an opportunity qualifies.
	RoundTripFeeBps decimal.Decimal
	// Expiry is how long a detected opportunity stays listable.
	Expiry time.Duration
	// WindowBps feeds the liquidity component of the confidence score.
	WindowBps decimal.Decimal
}

// DetectorStats are aggregate detection counters, maintained incrementally
// across passes.
type DetectorStats struct {
	TotalOpportunities      int             `json:"total_opportunities"`
	ProfitableOpportunities int             `json:"profitable_opportunities"`
	TotalProfitPotentialUSD decimal.Decimal `json:"total_profit_potential_usd"`
	AvgSpreadBps            decimal.Decimal `json:"avg_spread_bps"`
}

// SymbolSummary aggregates the live opportunities of one symbol.
type SymbolSummary struct {
	Count                   int             `json:"count"`
	BestSpreadBps           decimal.Decimal `json:"best_spread_bps"`
	TotalProfitPotentialUSD decimal.Decimal `json:"total_profit_potential_usd"`
	AvgConfidence           float64         `json:"avg_confidence"`
}

// Summary is a point-in-time view over all retained, unexpired
// opportunities plus the lifetime detection stats.
type Summary struct {
	Timestamp               time.Time                `json:"timestamp"`
	TotalOpportunities      int                      `json:"total_opportunities"`
	ProfitableOpportunities int                      `json:"profitable_opportunities"`
	TotalProfitPotentialUSD decimal.Decimal          `json:"total_profit_potential_usd"`
	AvgSpreadBps            decimal.Decimal          `json:"avg_spread_bps"`
	BySymbol                map[string]SymbolSummary `json:"by_symbol"`
	Stats                   DetectorStats            `json:"detection_stats"`
}

// Detector finds, sizes, and scores cross-venue spread opportunities.
// Opportunities are retained per symbol until they expire; expired ones are
// purged on every detection pass.
type Detector struct {
	cfg    DetectorConfig
	logger *slog.Logger

	mu          sync.Mutex
	open        map[string][]domain.ArbitrageOpportunity
	stats       DetectorStats
	spreadSum   decimal.Decimal
	spreadCount int64
}

// NewDetector creates a detector tracking cfg.Symbols.
func NewDetector(cfg DetectorConfig, logger *slog.Logger) *Detector {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 5 * time.Minute
	}
	open := make(map[string][]domain.ArbitrageOpportunity, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		open[symbol] = nil
	}
	return &Detector{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "arbitrage_detector")),
		open:      open,
		stats:     DetectorStats{TotalProfitPotentialUSD: decimal.Zero, AvgSpreadBps: decimal.Zero},
		spreadSum: decimal.Zero,
	}
}

func (d *Detector) thresholds(symbol string) SymbolThresholds {
	if th, ok := d.cfg.Thresholds[symbol]; ok {
		return th
	}
	return d.cfg.DefaultThresholds
}

// DetectOpportunities runs one detection pass over the latest books, keyed
// symbol then venue. It returns the opportunities created on this pass.
func (d *Detector) DetectOpportunities(now time.Time, books map[string]map[string]*domain.OrderBook) []domain.ArbitrageOpportunity {
	found := make([]domain.ArbitrageOpportunity, 0)

	for _, symbol := range d.cfg.Symbols {
		opp, ok := d.detectSymbol(now, symbol, books[symbol])
		if !ok {
			continue
		}
		found = append(found, opp)

		d.mu.Lock()
		d.open[symbol] = append(d.open[symbol], opp)
		d.updateStatsLocked(opp)
		d.mu.Unlock()

		d.logger.Info("arbitrage opportunity detected",
			slog.String("symbol", symbol),
			slog.String("spread_bps", opp.SpreadBps.StringFixed(1)),
			slog.String("profit_usd", opp.EstimatedProfitUSD.StringFixed(2)),
			slog.String("buy_venue", opp.BuyVenue),
			slog.String("sell_venue", opp.SellVenue),
		)
	}

	d.purgeExpired(now)
	return found
}

// detectSymbol evaluates one symbol against its thresholds. It uses the two
// venues with the widest mid divergence; with fewer than two fresh
// two-sided books there is nothing to compare.
func (d *Detector) detectSymbol(now time.Time, symbol string, byVenue map[string]*domain.OrderBook) (domain.ArbitrageOpportunity, bool) {
	var none domain.ArbitrageOpportunity
	if len(byVenue) < 2 {
		return none, false
	}
	th := d.thresholds(symbol)

	type venueMid struct {
		book *domain.OrderBook
		mid  decimal.Decimal
	}
	var low, high *venueMid
	for _, book := range byVenue {
		if book == nil || book.IsStale(now, d.cfg.StaleThreshold) {
			continue
		}
		mid, ok := book.MidPrice()
		if !ok {
			continue
		}
		vm := &venueMid{book: book, mid: mid}
		if low == nil || mid.LessThan(low.mid) || (mid.Equal(low.mid) && book.Venue < low.book.Venue) {
			low = vm
		}
		if high == nil || mid.GreaterThan(high.mid) || (mid.Equal(high.mid) && book.Venue > high.book.Venue) {
			high = vm
		}
	}
	if low == nil || high == nil || low.book.Venue == high.book.Venue {
		return none, false
	}

	spreadBps := high.mid.Sub(low.mid).Mul(bpsScale).Div(decimal.Min(low.mid, high.mid))
	if spreadBps.LessThan(th.MinSpreadBps) {
		return none, false
	}
	// Both legs pay fees; the spread must survive the round trip.
	if !spreadBps.Sub(d.cfg.RoundTripFeeBps).IsPositive() {
		return none, false
	}

	// Both legs must execute, so each venue's impact constraint binds.
	buySize, _ := low.book.AnalyzeDepth().OptimalTradeSize(th.MaxImpactBps)
	sellSize, _ := high.book.AnalyzeDepth().OptimalTradeSize(th.MaxImpactBps)
	size := decimal.Min(buySize, sellSize)
	if !size.IsPositive() {
		return none, false
	}
	if size.Mul(low.mid).LessThan(th.MinDepthUSD) {
		return none, false
	}

	profit := high.mid.Sub(low.mid).Mul(size)

	return domain.ArbitrageOpportunity{
		ID:                 uuid.NewString(),
		Symbol:             symbol,
		BuyVenue:           low.book.Venue,
		SellVenue:          high.book.Venue,
		BuyPrice:           low.mid,
		SellPrice:          high.mid,
		SpreadBps:          spreadBps,
		EstimatedProfitUSD: profit,
		MaxTradeSize:       size,
		ConfidenceScore:    d.confidence(now, spreadBps, low.book, high.book),
		DetectedAt:         now.UTC(),
		ExpiresAt:          now.UTC().Add(d.cfg.Expiry),
	}, true
}

// confidence is a [0,1] weighted sum: spread magnitude, combined liquidity,
// combined depth, and data recency, each capped at its weight.
func (d *Detector) confidence(now time.Time, spreadBps decimal.Decimal, buyBook, sellBook *domain.OrderBook) float64 {
	score := 0.0

	spreadScore, _ := spreadBps.Div(confSpreadRefBps).Float64()
	score += confSpreadWeight * capAtOne(spreadScore)

	liquidity := buyBook.LiquidityScore(d.cfg.WindowBps).Add(sellBook.LiquidityScore(d.cfg.WindowBps))
	liquidityScore, _ := liquidity.Div(confLiquidityRefUS).Float64()
	score += confLiquidityWeight * capAtOne(liquidityScore)

	buyDepth := buyBook.AnalyzeDepth()
	sellDepth := sellBook.AnalyzeDepth()
	depth := buyDepth.TotalBidDepth.Add(buyDepth.TotalAskDepth).
		Add(sellDepth.TotalBidDepth).Add(sellDepth.TotalAskDepth)
	depthScore, _ := depth.Div(confDepthRefUnits).Float64()
	score += confDepthWeight * capAtOne(depthScore)

	age := buyBook.Age(now)
	if sellAge := sellBook.Age(now); sellAge > age {
		age = sellAge
	}
	recency := 1 - float64(age)/float64(confRecencyMaxAge)
	if recency < 0 {
		recency = 0
	}
	score += confRecencyWeight * recency

	return capAtOne(score)
}

func capAtOne(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// updateStatsLocked folds one new opportunity into the lifetime stats.
// Caller holds d.mu.
func (d *Detector) updateStatsLocked(opp domain.ArbitrageOpportunity) {
	d.stats.TotalOpportunities++
	if opp.IsProfitable(d.cfg.MinProfitBps) {
		d.stats.ProfitableOpportunities++
		d.stats.TotalProfitPotentialUSD = d.stats.TotalProfitPotentialUSD.Add(opp.EstimatedProfitUSD)
	}
	d.spreadSum = d.spreadSum.Add(opp.SpreadBps)
	d.spreadCount++
	d.stats.AvgSpreadBps = d.spreadSum.Div(decimal.NewFromInt(d.spreadCount))
}

func (d *Detector) purgeExpired(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for symbol, opps := range d.open {
		live := opps[:0]
		for _, opp := range opps {
			if !opp.IsExpired(now) {
				live = append(live, opp)
			}
		}
		d.open[symbol] = live
	}
}

// GetBestOpportunities returns up to limit live profitable opportunities
// across all symbols, ordered by estimated profit then confidence.
func (d *Detector) GetBestOpportunities(now time.Time, limit int) []domain.ArbitrageOpportunity {
	d.mu.Lock()
	defer d.mu.Unlock()

	best := make([]domain.ArbitrageOpportunity, 0)
	for _, opps := range d.open {
		for _, opp := range opps {
			if opp.IsExpired(now) || !opp.IsProfitable(d.cfg.MinProfitBps) {
				continue
			}
			best = append(best, opp)
		}
	}

	sort.SliceStable(best, func(i, j int) bool {
		if !best[i].EstimatedProfitUSD.Equal(best[j].EstimatedProfitUSD) {
			return best[i].EstimatedProfitUSD.GreaterThan(best[j].EstimatedProfitUSD)
		}
		return best[i].ConfidenceScore > best[j].ConfidenceScore
	})

	if limit > 0 && len(best) > limit {
		best = best[:limit]
	}
	return best
}

// GetOpportunitiesSummary aggregates the live opportunities per symbol plus
// the lifetime detection stats.
func (d *Detector) GetOpportunitiesSummary(now time.Time) Summary {
	d.mu.Lock()
	defer d.mu.Unlock()

	summary := Summary{
		Timestamp:               now.UTC(),
		TotalProfitPotentialUSD: decimal.Zero,
		AvgSpreadBps:            decimal.Zero,
		BySymbol:                make(map[string]SymbolSummary),
		Stats:                   d.stats,
	}

	spreadSum := decimal.Zero
	for symbol, opps := range d.open {
		live := make([]domain.ArbitrageOpportunity, 0, len(opps))
		for _, opp := range opps {
			if !opp.IsExpired(now) {
				live = append(live, opp)
			}
		}
		if len(live) == 0 {
			continue
		}

		sym := SymbolSummary{Count: len(live), TotalProfitPotentialUSD: decimal.Zero}
		confSum := 0.0
		for _, opp := range live {
			if opp.SpreadBps.GreaterThan(sym.BestSpreadBps) {
				sym.BestSpreadBps = opp.SpreadBps
			}
			sym.TotalProfitPotentialUSD = sym.TotalProfitPotentialUSD.Add(opp.EstimatedProfitUSD)
			confSum += opp.ConfidenceScore
			spreadSum = spreadSum.Add(opp.SpreadBps)

			summary.TotalOpportunities++
			if opp.IsProfitable(d.cfg.MinProfitBps) {
				summary.ProfitableOpportunities++
				summary.TotalProfitPotentialUSD = summary.TotalProfitPotentialUSD.Add(opp.EstimatedProfitUSD)
			}
		}
		sym.AvgConfidence = confSum / float64(len(live))
		summary.BySymbol[symbol] = sym
	}

	if summary.TotalOpportunities > 0 {
		summary.AvgSpreadBps = spreadSum.Div(decimal.NewFromInt(int64(summary.TotalOpportunities)))
	}
	return summary
}
