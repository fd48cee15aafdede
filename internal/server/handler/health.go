package handler

import (
	"log/slog"
	"net/http"
	"time"

	"liqtrack/internal/state"
)

// VenueStatusSource reports per-venue feed health.
type VenueStatusSource interface {
	VenueStatus(now time.Time, threshold time.Duration) map[string]state.VenueHealth
}

// HealthHandler serves the health-check endpoint, including per-venue feed
// freshness.
type HealthHandler struct {
	status         VenueStatusSource
	staleThreshold time.Duration
	startedAt      time.Time
	logger         *slog.Logger
}

// NewHealthHandler creates a HealthHandler over the given status source.
func NewHealthHandler(status VenueStatusSource, staleThreshold time.Duration, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		status:         status,
		staleThreshold: staleThreshold,
		startedAt:      time.Now().UTC(),
		logger:         logger,
	}
}

// HealthCheck responds with overall process status and per-venue freshness.
// The endpoint reports 200 even when some venues are stale; the payload
// carries the detail.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	venues := h.status.VenueStatus(now, h.staleThreshold)

	status := "ok"
	for _, v := range venues {
		if v.Stale {
			status = "degraded"
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"timestamp":      now.Format(time.RFC3339),
		"uptime_seconds": int64(now.Sub(h.startedAt).Seconds()),
		"venues":         venues,
	})
}
