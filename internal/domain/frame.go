package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VenueMetrics is the per-venue entry of a metrics frame. Nil-able fields are
// pointers: a venue that cannot produce a sub-metric reports null rather than
// failing the frame.
type VenueMetrics struct {
	Venue     string           `json:"venue"`
	SpreadBps *decimal.Decimal `json:"spread_bps"`
	Share     decimal.Decimal  `json:"share"`
	LatencyMs float64          `json:"latency_ms"`
	Stale     bool             `json:"stale"`
}

// MetricsFrame is one tick of cross-venue market metrics. Mid, SpreadBps,
// Depth and HHI are nil when the underlying data is missing or inconsistent;
// consumers must tolerate partial frames.
type MetricsFrame struct {
	TS        time.Time        `json:"ts"`
	Symbol    string           `json:"symbol"`
	WindowBps decimal.Decimal  `json:"window_bps"`
	Mid       *decimal.Decimal `json:"mid"`
	SpreadBps *decimal.Decimal `json:"spread_bps"`
	Depth050  *decimal.Decimal `json:"depth_050"`
	HHI       *float64         `json:"hhi"`
	Imbalance *float64         `json:"imbalance"`
	Venues    []VenueMetrics   `json:"venues"`
}

// Fill is a single (venue, price, quantity) slice of a simulated execution.
type Fill struct {
	Venue string          `json:"venue"`
	Price decimal.Decimal `json:"px"`
	Qty   decimal.Decimal `json:"qty"`
}

// ExecutionLeg summarizes one execution strategy: its fills, their VWAP, and
// the slippage versus the pre-trade cross-venue mid.
type ExecutionLeg struct {
	Venue       string          `json:"venue,omitempty"`
	VWAP        decimal.Decimal `json:"vwap"`
	SlippageBps decimal.Decimal `json:"slippage_bps"`
	Fills       []Fill          `json:"fills"`
}

// ExecutionReport compares a routed multi-venue execution against the naive
// single-venue baseline for the same order. Both executions are simulations
// over two independently refreshing books; there is no cross-venue atomicity.
type ExecutionReport struct {
	TS               time.Time       `json:"ts"`
	Symbol           string          `json:"symbol"`
	Side             string          `json:"side"`
	Notional         decimal.Decimal `json:"notional"`
	MidAtStart       decimal.Decimal `json:"mid_t0"`
	Naive            ExecutionLeg    `json:"naive"`
	Routed           ExecutionLeg    `json:"routed"`
	SlippageSavedBps decimal.Decimal `json:"slippage_saved_bps"`
}
