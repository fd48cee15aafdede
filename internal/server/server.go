package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"liqtrack/internal/domain"
	"liqtrack/internal/server/handler"
	"liqtrack/internal/server/middleware"
	"liqtrack/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port           int
	CORSOrigins    []string
	APIKey         string // if empty, authentication is disabled
	RateLimitPerIP int    // requests per minute per client IP; 0 disables
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Books   *handler.BookHandler
	Metrics *handler.MetricsHandler
	Arb     *handler.ArbHandler
	SOR     *handler.SORHandler
}

// Server is the read-only HTTP + WebSocket API over the tracker state.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (rate limiting, auth, logging, CORS) wired in.
// limiter may be nil, in which case rate limiting is disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Order book endpoints.
	mux.HandleFunc("GET /api/books", handlers.Books.ListBooks)
	mux.HandleFunc("GET /api/book/{venue}", handlers.Books.GetBook)

	// Metrics endpoints.
	mux.HandleFunc("GET /api/metrics/latest", handlers.Metrics.GetLatest)
	mux.HandleFunc("GET /api/metrics/history", handlers.Metrics.GetHistory)

	// Arbitrage endpoints.
	mux.HandleFunc("GET /api/arbitrage/opportunities", handlers.Arb.ListOpportunities)
	mux.HandleFunc("GET /api/arbitrage/summary", handlers.Arb.GetSummary)
	mux.HandleFunc("GET /api/arbitrage/history", handlers.Arb.ListHistory)

	// Smart order router simulation endpoint.
	mux.HandleFunc("POST /api/sor/execute", handlers.SOR.Execute)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimitPerIP > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerIP, time.Minute)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
