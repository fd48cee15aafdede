package handler

import (
	"log/slog"
	"net/http"

	"liqtrack/internal/domain"
)

// BookSource exposes the latest normalized order books held by the state
// buffer.
type BookSource interface {
	Latest(venue, symbol string) *domain.OrderBook
	Snapshot() map[string]map[string]*domain.OrderBook
}

// BookHandler serves order book read endpoints.
type BookHandler struct {
	books  BookSource
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler over the given book source.
func NewBookHandler(books BookSource, logger *slog.Logger) *BookHandler {
	return &BookHandler{books: books, logger: logger}
}

// GetBook returns the latest order book for one venue and symbol.
// GET /api/book/{venue}?symbol=BTC-USD
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	venue := r.PathValue("venue")
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol query parameter")
		return
	}

	book := h.books.Latest(venue, symbol)
	if book == nil {
		writeError(w, http.StatusNotFound, "no book for venue/symbol")
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// ListBooks returns the latest book for every tracked venue and symbol.
// GET /api/books
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.books.Snapshot())
}
