package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"liqtrack/internal/domain"
)

// OrderExecutor simulates an order against the latest books and reports the
// routed-vs-naive comparison.
type OrderExecutor interface {
	ExecuteOrder(
		now time.Time,
		symbol, side string,
		notionalUSD decimal.Decimal,
		feeBpsByVenue map[string]decimal.Decimal,
		books ...*domain.OrderBook,
	) (*domain.ExecutionReport, error)
}

// SORHandler serves the smart order router simulation endpoint.
type SORHandler struct {
	exec   OrderExecutor
	books  BookSource
	fees   map[string]decimal.Decimal
	logger *slog.Logger
}

// NewSORHandler creates a SORHandler with the given executor, book source,
// and per-venue fee schedule in bps.
func NewSORHandler(exec OrderExecutor, books BookSource, fees map[string]decimal.Decimal, logger *slog.Logger) *SORHandler {
	return &SORHandler{exec: exec, books: books, fees: fees, logger: logger}
}

// executeRequest is the JSON body for an execution simulation.
type executeRequest struct {
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	NotionalUSD decimal.Decimal `json:"notional_usd"`
}

// Execute simulates routing an order across venues. Nothing is sent to any
// exchange; the response is a pure paper comparison.
// POST /api/sor/execute
func (h *SORHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}

	byVenue := h.books.Snapshot()[req.Symbol]
	books := make([]*domain.OrderBook, 0, len(byVenue))
	for _, b := range byVenue {
		books = append(books, b)
	}

	report, err := h.exec.ExecuteOrder(time.Now().UTC(), req.Symbol, req.Side, req.NotionalUSD, h.fees, books...)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoMarketData):
			writeError(w, http.StatusServiceUnavailable, "no market data for symbol")
		default:
			h.logger.ErrorContext(r.Context(), "handler: execute order failed",
				slog.String("symbol", req.Symbol),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, report)
}
