package handler

import (
	"log/slog"
	"net/http"
	"time"

	"liqtrack/internal/domain"
	"liqtrack/internal/metrics"
)

// OpportunitySource defines the live detector methods the handler requires.
type OpportunitySource interface {
	GetBestOpportunities(now time.Time, limit int) []domain.ArbitrageOpportunity
	GetOpportunitiesSummary(now time.Time) metrics.Summary
}

// ArbHandler serves arbitrage-related HTTP endpoints.
type ArbHandler struct {
	detector OpportunitySource
	store    domain.OpportunityStore // optional; history endpoints return 501 when nil
	logger   *slog.Logger
}

// NewArbHandler creates an ArbHandler over the live detector.
func NewArbHandler(detector OpportunitySource, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{detector: detector, logger: logger}
}

// WithStore sets the persistence store backing the history endpoint.
func (h *ArbHandler) WithStore(store domain.OpportunityStore) *ArbHandler {
	h.store = store
	return h
}

// listOppsResponse wraps the opportunity list response.
type listOppsResponse struct {
	Opportunities []domain.ArbitrageOpportunity `json:"opportunities"`
}

// ListOpportunities returns the currently live, unexpired opportunities
// ranked by estimated profit.
// GET /api/arbitrage/opportunities?limit=20
func (h *ArbHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 200)
	opps := h.detector.GetBestOpportunities(time.Now().UTC(), limit)
	if opps == nil {
		opps = []domain.ArbitrageOpportunity{}
	}
	writeJSON(w, http.StatusOK, listOppsResponse{Opportunities: opps})
}

// GetSummary returns lifetime and live detector statistics.
// GET /api/arbitrage/summary
func (h *ArbHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.detector.GetOpportunitiesSummary(time.Now().UTC()))
}

// ListHistory returns persisted opportunities, newest first, optionally
// filtered by symbol.
// GET /api/arbitrage/history?limit=50&symbol=BTC-USD
func (h *ArbHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "opportunity persistence not configured")
		return
	}

	limit := parseLimit(r, 50, 500)

	var (
		opps []domain.ArbitrageOpportunity
		err  error
	)
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		opps, err = h.store.ListBySymbol(r.Context(), symbol, limit)
	} else {
		opps, err = h.store.ListRecent(r.Context(), limit)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunity history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunity history")
		return
	}

	if opps == nil {
		opps = []domain.ArbitrageOpportunity{}
	}
	writeJSON(w, http.StatusOK, listOppsResponse{Opportunities: opps})
}
