package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbitrageOpportunity is a detected cross-venue spread: buy on the venue
// with the lower mid, sell on the other. Opportunities are read-only after
// creation and expire on their own; expired ones must be excluded from every
// listing without explicit deletion.
//
// The two legs are priced from independently refreshing books, so an
// opportunity is a simulation, never an atomically consistent snapshot.
type ArbitrageOpportunity struct {
	ID                 string          `json:"id"`
	Symbol             string          `json:"symbol"`
	BuyVenue           string          `json:"buy_venue"`
	SellVenue          string          `json:"sell_venue"`
	BuyPrice           decimal.Decimal `json:"buy_price"`
	SellPrice          decimal.Decimal `json:"sell_price"`
	SpreadBps          decimal.Decimal `json:"spread_bps"`
	EstimatedProfitUSD decimal.Decimal `json:"estimated_profit_usd"`
	MaxTradeSize       decimal.Decimal `json:"max_trade_size"`
	ConfidenceScore    float64         `json:"confidence_score"`
	DetectedAt         time.Time       `json:"detected_at"`
	ExpiresAt          time.Time       `json:"expires_at"`
}

// IsExpired reports whether the opportunity has passed its expiry.
func (o ArbitrageOpportunity) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// IsProfitable reports whether the spread meets the minimum profit threshold.
func (o ArbitrageOpportunity) IsProfitable(minProfitBps decimal.Decimal) bool {
	return o.SpreadBps.GreaterThanOrEqual(minProfitBps)
}
