package handler

import (
	"log/slog"
	"net/http"
	"time"

	"liqtrack/internal/domain"
)

// FrameSource exposes the in-memory metrics frame history.
type FrameSource interface {
	LatestFrame() *domain.MetricsFrame
	RecentFrames(n int) []*domain.MetricsFrame
	FramesSince(ts time.Time) []*domain.MetricsFrame
}

// MetricsHandler serves cross-venue metrics endpoints.
type MetricsHandler struct {
	frames FrameSource
	logger *slog.Logger
}

// NewMetricsHandler creates a MetricsHandler over the given frame source.
func NewMetricsHandler(frames FrameSource, logger *slog.Logger) *MetricsHandler {
	return &MetricsHandler{frames: frames, logger: logger}
}

// GetLatest returns the most recent metrics frame, optionally restricted to
// one symbol.
// GET /api/metrics/latest?symbol=BTC-USD
func (h *MetricsHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	if symbol == "" {
		frame := h.frames.LatestFrame()
		if frame == nil {
			writeError(w, http.StatusNotFound, "no metrics computed yet")
			return
		}
		writeJSON(w, http.StatusOK, frame)
		return
	}

	// Scan recent frames newest-first for the requested symbol.
	recent := h.frames.RecentFrames(0)
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Symbol == symbol {
			writeJSON(w, http.StatusOK, recent[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "no metrics for symbol")
}

// listFramesResponse wraps the frame history response.
type listFramesResponse struct {
	Frames []*domain.MetricsFrame `json:"frames"`
}

// GetHistory returns recent metrics frames, newest last. Either a count limit
// or an RFC3339 "since" timestamp can bound the window.
// GET /api/metrics/history?limit=100&since=2026-01-02T15:04:05Z&symbol=BTC-USD
func (h *MetricsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	var frames []*domain.MetricsFrame

	if v := r.URL.Query().Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp, want RFC3339")
			return
		}
		frames = h.frames.FramesSince(ts)
	} else {
		frames = h.frames.RecentFrames(parseLimit(r, 100, 1000))
	}

	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		filtered := frames[:0:0]
		for _, f := range frames {
			if f.Symbol == symbol {
				filtered = append(filtered, f)
			}
		}
		frames = filtered
	}

	if frames == nil {
		frames = []*domain.MetricsFrame{}
	}
	writeJSON(w, http.StatusOK, listFramesResponse{Frames: frames})
}
