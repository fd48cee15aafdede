package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liqtrack/internal/domain"
	"liqtrack/internal/metrics"
	"liqtrack/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeStatus struct {
	venues map[string]state.VenueHealth
}

func (f *fakeStatus) VenueStatus(time.Time, time.Duration) map[string]state.VenueHealth {
	return f.venues
}

type fakeBooks struct {
	books map[string]map[string]*domain.OrderBook // symbol -> venue -> book
}

func (f *fakeBooks) Latest(venue, symbol string) *domain.OrderBook {
	return f.books[symbol][venue]
}

func (f *fakeBooks) Snapshot() map[string]map[string]*domain.OrderBook {
	return f.books
}

type fakeFrames struct {
	frames []*domain.MetricsFrame
}

func (f *fakeFrames) LatestFrame() *domain.MetricsFrame {
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

func (f *fakeFrames) RecentFrames(n int) []*domain.MetricsFrame {
	if n <= 0 || n >= len(f.frames) {
		return f.frames
	}
	return f.frames[len(f.frames)-n:]
}

func (f *fakeFrames) FramesSince(ts time.Time) []*domain.MetricsFrame {
	out := []*domain.MetricsFrame{}
	for _, fr := range f.frames {
		if fr.TS.After(ts) {
			out = append(out, fr)
		}
	}
	return out
}

type fakeDetector struct {
	opps    []domain.ArbitrageOpportunity
	summary metrics.Summary
}

func (f *fakeDetector) GetBestOpportunities(time.Time, int) []domain.ArbitrageOpportunity {
	return f.opps
}

func (f *fakeDetector) GetOpportunitiesSummary(time.Time) metrics.Summary {
	return f.summary
}

func mustBook(t *testing.T, venue, symbol string, bids, asks [][2]string) *domain.OrderBook {
	t.Helper()
	toLevels := func(entries [][2]string) []domain.PriceLevel {
		out := make([]domain.PriceLevel, 0, len(entries))
		for _, e := range entries {
			out = append(out, domain.PriceLevel{
				Price: decimal.RequireFromString(e[0]),
				Size:  decimal.RequireFromString(e[1]),
			})
		}
		return out
	}
	book, err := domain.NewOrderBook(venue, symbol, time.Now().UTC(), nil, toLevels(bids), toLevels(asks))
	require.NoError(t, err)
	return book
}

func TestHealthCheckReportsDegradedOnStaleVenue(t *testing.T) {
	h := NewHealthHandler(&fakeStatus{venues: map[string]state.VenueHealth{
		"binance": {Venue: "binance", HasData: true, Stale: false},
		"kraken":  {Venue: "kraken", HasData: false, Stale: true},
	}}, 5*time.Second, testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string                       `json:"status"`
		Venues map[string]state.VenueHealth `json:"venues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Len(t, body.Venues, 2)
}

func TestGetBook(t *testing.T) {
	books := &fakeBooks{books: map[string]map[string]*domain.OrderBook{
		"BTC-USD": {
			"binance": mustBook(t, "binance", "BTC-USD",
				[][2]string{{"50000", "1"}}, [][2]string{{"50010", "1"}}),
		},
	}}
	h := NewBookHandler(books, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/book/binance?symbol=BTC-USD", nil)
	req.SetPathValue("venue", "binance")
	rec := httptest.NewRecorder()
	h.GetBook(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var book domain.OrderBook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &book))
	assert.Equal(t, "binance", book.Venue)
	assert.Len(t, book.Bids, 1)
}

func TestGetBookMissing(t *testing.T) {
	h := NewBookHandler(&fakeBooks{books: map[string]map[string]*domain.OrderBook{}}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/book/kraken?symbol=BTC-USD", nil)
	req.SetPathValue("venue", "kraken")
	rec := httptest.NewRecorder()
	h.GetBook(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/book/kraken", nil)
	req.SetPathValue("venue", "kraken")
	rec = httptest.NewRecorder()
	h.GetBook(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsLatestFiltersBySymbol(t *testing.T) {
	now := time.Now().UTC()
	frames := &fakeFrames{frames: []*domain.MetricsFrame{
		{TS: now.Add(-2 * time.Second), Symbol: "BTC-USD"},
		{TS: now.Add(-time.Second), Symbol: "ETH-USD"},
		{TS: now, Symbol: "BTC-USD"},
	}}
	h := NewMetricsHandler(frames, testLogger())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/latest?symbol=ETH-USD", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var frame domain.MetricsFrame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Equal(t, "ETH-USD", frame.Symbol)

	rec = httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/latest?symbol=SOL-USD", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsHistorySince(t *testing.T) {
	now := time.Now().UTC()
	frames := &fakeFrames{frames: []*domain.MetricsFrame{
		{TS: now.Add(-time.Hour), Symbol: "BTC-USD"},
		{TS: now, Symbol: "BTC-USD"},
	}}
	h := NewMetricsHandler(frames, testLogger())

	since := now.Add(-time.Minute).Format(time.RFC3339)
	rec := httptest.NewRecorder()
	h.GetHistory(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/history?since="+since, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body listFramesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Frames, 1)

	rec = httptest.NewRecorder()
	h.GetHistory(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/history?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOpportunities(t *testing.T) {
	det := &fakeDetector{opps: []domain.ArbitrageOpportunity{
		{ID: "1", Symbol: "BTC-USD", BuyVenue: "binance", SellVenue: "kraken"},
	}}
	h := NewArbHandler(det, testLogger())

	rec := httptest.NewRecorder()
	h.ListOpportunities(rec, httptest.NewRequest(http.MethodGet, "/api/arbitrage/opportunities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body listOppsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Opportunities, 1)
	assert.Equal(t, "binance", body.Opportunities[0].BuyVenue)
}

func TestListHistoryWithoutStore(t *testing.T) {
	h := NewArbHandler(&fakeDetector{}, testLogger())

	rec := httptest.NewRecorder()
	h.ListHistory(rec, httptest.NewRequest(http.MethodGet, "/api/arbitrage/history", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestSORExecute(t *testing.T) {
	books := &fakeBooks{books: map[string]map[string]*domain.OrderBook{
		"BTC-USD": {
			"binance": mustBook(t, "binance", "BTC-USD",
				[][2]string{{"49990", "5"}}, [][2]string{{"50010", "5"}}),
			"kraken": mustBook(t, "kraken", "BTC-USD",
				[][2]string{{"49995", "5"}}, [][2]string{{"50005", "5"}}),
		},
	}}
	fees := map[string]decimal.Decimal{
		"binance": decimal.NewFromInt(10),
		"kraken":  decimal.NewFromInt(25),
	}
	h := NewSORHandler(metrics.NewRouter(testLogger()), books, fees, testLogger())

	body := strings.NewReader(`{"symbol":"BTC-USD","side":"buy","notional_usd":"100000"}`)
	rec := httptest.NewRecorder()
	h.Execute(rec, httptest.NewRequest(http.MethodPost, "/api/sor/execute", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var report domain.ExecutionReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "buy", report.Side)
	assert.NotEmpty(t, report.Routed.Fills)
}

func TestSORExecuteNoMarketData(t *testing.T) {
	h := NewSORHandler(metrics.NewRouter(testLogger()), &fakeBooks{
		books: map[string]map[string]*domain.OrderBook{},
	}, nil, testLogger())

	body := strings.NewReader(`{"symbol":"BTC-USD","side":"buy","notional_usd":"1000"}`)
	rec := httptest.NewRecorder()
	h.Execute(rec, httptest.NewRequest(http.MethodPost, "/api/sor/execute", body))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.Execute(rec, httptest.NewRequest(http.MethodPost, "/api/sor/execute", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
