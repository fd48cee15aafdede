package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"liqtrack/internal/config"
	"liqtrack/internal/domain"
	"liqtrack/internal/metrics"
	"liqtrack/internal/server"
	"liqtrack/internal/server/handler"
	"liqtrack/internal/server/ws"
	"liqtrack/internal/state"
	"liqtrack/internal/venue"
	"liqtrack/internal/venue/binance"
	"liqtrack/internal/venue/coinbase"
	"liqtrack/internal/venue/kraken"
)

// updateBufferSize is the fan-in channel capacity shared by all adapters.
const updateBufferSize = 256

// archiveLockTTL bounds how long the archive lock can stay held if a replica
// dies mid-flush.
const archiveLockTTL = 5 * time.Minute

// runTracker builds the pipeline (adapters -> buffer -> metrics/detector ->
// sinks + server) and runs every component until ctx is cancelled or a fatal
// error occurs.
func (a *App) runTracker(ctx context.Context, deps *Dependencies) error {
	cfg := a.cfg

	updates := make(chan domain.BookUpdate, updateBufferSize)
	buffer := state.NewBuffer(cfg.Tracker.HistorySize, a.logger)

	adapters, err := a.buildAdapters(updates)
	if err != nil {
		return err
	}
	for _, ad := range adapters {
		buffer.MarkVenue(ad.Venue())
	}

	windowBps := decimal.NewFromFloat(cfg.Tracker.WindowBps)
	engine := metrics.NewEngine(windowBps, cfg.Tracker.StaleThreshold.Duration, a.logger)
	router := metrics.NewRouter(a.logger)
	detector := metrics.NewDetector(detectorConfig(cfg, windowBps), a.logger)

	g, ctx := errgroup.WithContext(ctx)

	// State buffer consumes the adapter fan-in channel.
	g.Go(func() error {
		return buffer.Run(ctx, updates)
	})

	// Venue adapters. A venue that exhausts its reconnect budget is terminal
	// for that adapter only; the remaining venues, the buffer, the tick loop,
	// and the server keep running.
	for _, ad := range adapters {
		g.Go(func() error {
			return a.runAdapter(ctx, ad)
		})
	}

	// Metrics tick loop.
	g.Go(func() error {
		return a.runTicks(ctx, deps, buffer, engine, detector)
	})

	// HTTP + WebSocket server.
	if cfg.Server.Enabled {
		a.startServer(ctx, g, deps, buffer, router, detector)
	}

	// Periodic archive flush.
	if deps.Archiver != nil && deps.OpportunityStore != nil && cfg.S3.ArchiveEvery.Duration > 0 {
		g.Go(func() error {
			return a.runArchiver(ctx, deps)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// runAdapter runs one venue adapter to completion. Adapter failures are
// contained here: a dead venue is logged and its goroutine exits cleanly,
// never cancelling the shared group.
func (a *App) runAdapter(ctx context.Context, ad venue.Adapter) error {
	defer ad.Stop()

	err := ad.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}

	a.logger.ErrorContext(ctx, "venue adapter terminated",
		slog.String("venue", ad.Venue()),
		slog.String("error", err.Error()),
	)
	return nil
}

// buildAdapters constructs one adapter per enabled venue per tracked symbol.
func (a *App) buildAdapters(updates chan<- domain.BookUpdate) ([]venue.Adapter, error) {
	cfg := a.cfg
	policy := venue.ReconnectPolicy{
		BaseDelay:   cfg.Tracker.Reconnect.BaseDelay.Duration,
		MaxDelay:    cfg.Tracker.Reconnect.MaxDelay.Duration,
		MaxAttempts: cfg.Tracker.Reconnect.MaxAttempts,
	}

	var adapters []venue.Adapter
	for _, symbol := range cfg.Tracker.Symbols {
		if vc := cfg.Venues.Binance; vc.Enabled {
			wire, ok := vc.Symbols[symbol]
			if !ok {
				return nil, fmt.Errorf("app: binance: no wire name for symbol %q", symbol)
			}
			adapters = append(adapters, binance.New(binance.Config{
				URL:    strings.TrimRight(vc.WSURL, "/") + "/" + wire + "@depth20@100ms",
				Symbol: symbol,
				Policy: policy,
			}, updates, a.logger))
		}
		if vc := cfg.Venues.Kraken; vc.Enabled {
			wire, ok := vc.Symbols[symbol]
			if !ok {
				return nil, fmt.Errorf("app: kraken: no wire name for symbol %q", symbol)
			}
			adapters = append(adapters, kraken.New(kraken.Config{
				URL:    vc.WSURL,
				Pair:   wire,
				Symbol: symbol,
				Policy: policy,
			}, updates, a.logger))
		}
		if vc := cfg.Venues.Coinbase; vc.Enabled {
			wire, ok := vc.Symbols[symbol]
			if !ok {
				return nil, fmt.Errorf("app: coinbase: no wire name for symbol %q", symbol)
			}
			adapters = append(adapters, coinbase.New(coinbase.Config{
				URL:       vc.WSURL,
				ProductID: wire,
				Symbol:    symbol,
				Policy:    policy,
			}, updates, a.logger))
		}
	}
	return adapters, nil
}

// runTicks computes metrics frames and detects arbitrage opportunities on
// the configured interval, fanning results out to the buffer and every
// configured sink.
func (a *App) runTicks(
	ctx context.Context,
	deps *Dependencies,
	buffer *state.Buffer,
	engine *metrics.Engine,
	detector *metrics.Detector,
) error {
	ticker := time.NewTicker(a.cfg.Tracker.TickInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		now := time.Now().UTC()
		snapshot := buffer.Snapshot()

		for _, symbol := range a.cfg.Tracker.Symbols {
			books := make([]*domain.OrderBook, 0, len(snapshot[symbol]))
			for _, b := range snapshot[symbol] {
				books = append(books, b)
			}
			frame := engine.ComputeMetrics(now, symbol, books...)
			buffer.AddFrame(frame)
			a.publishFrame(ctx, deps, frame)
		}

		for _, opp := range detector.DetectOpportunities(now, snapshot) {
			a.publishOpportunity(ctx, deps, opp)
		}
	}
}

// publishFrame fans a metrics frame out to the frame cache and the signal
// bus. Sink failures are logged and never stop the tick loop.
func (a *App) publishFrame(ctx context.Context, deps *Dependencies, frame *domain.MetricsFrame) {
	if deps.FrameCache != nil {
		if err := deps.FrameCache.SetLatest(ctx, frame.Symbol, *frame); err != nil {
			a.logger.WarnContext(ctx, "frame cache write failed",
				slog.String("symbol", frame.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}
	if deps.SignalBus != nil {
		payload, err := json.Marshal(frame)
		if err != nil {
			return
		}
		if err := deps.SignalBus.Publish(ctx, domain.ChannelMetrics, payload); err != nil {
			a.logger.WarnContext(ctx, "metrics publish failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// publishOpportunity persists a detected opportunity and announces it on the
// signal bus, both channel and durable stream.
func (a *App) publishOpportunity(ctx context.Context, deps *Dependencies, opp domain.ArbitrageOpportunity) {
	a.logger.InfoContext(ctx, "arbitrage opportunity detected",
		slog.String("symbol", opp.Symbol),
		slog.String("buy_venue", opp.BuyVenue),
		slog.String("sell_venue", opp.SellVenue),
		slog.String("spread_bps", opp.SpreadBps.String()),
		slog.String("est_profit_usd", opp.EstimatedProfitUSD.String()),
	)

	if deps.OpportunityStore != nil {
		if err := deps.OpportunityStore.Insert(ctx, opp); err != nil {
			a.logger.ErrorContext(ctx, "opportunity insert failed",
				slog.String("id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if deps.SignalBus != nil {
		payload, err := json.Marshal(opp)
		if err != nil {
			return
		}
		if err := deps.SignalBus.Publish(ctx, domain.ChannelOpportunities, payload); err != nil {
			a.logger.WarnContext(ctx, "opportunity publish failed",
				slog.String("error", err.Error()),
			)
		}
		if err := deps.SignalBus.StreamAppend(ctx, domain.StreamOpportunities, payload); err != nil {
			a.logger.WarnContext(ctx, "opportunity stream append failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// startServer wires the HTTP handlers and WebSocket hub and registers them
// with the errgroup, including graceful shutdown on context cancellation.
func (a *App) startServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	buffer *state.Buffer,
	router *metrics.Router,
	detector *metrics.Detector,
) {
	cfg := a.cfg

	fees := make(map[string]decimal.Decimal, len(cfg.SOR.FeeBps))
	for v, bps := range cfg.SOR.FeeBps {
		fees[v] = decimal.NewFromFloat(bps)
	}

	arbHandler := handler.NewArbHandler(detector, a.logger)
	if deps.OpportunityStore != nil {
		arbHandler = arbHandler.WithStore(deps.OpportunityStore)
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(buffer, cfg.Tracker.StaleThreshold.Duration, a.logger),
		Books:   handler.NewBookHandler(buffer, a.logger),
		Metrics: handler.NewMetricsHandler(buffer, a.logger),
		Arb:     arbHandler,
		SOR:     handler.NewSORHandler(router, buffer, fees, a.logger),
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger)
		g.Go(func() error {
			if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("app: ws hub: %w", err)
			}
			return nil
		})
	}

	srv := server.NewServer(server.Config{
		Port:           cfg.Server.Port,
		CORSOrigins:    cfg.Server.CORSOrigins,
		APIKey:         cfg.Server.APIKey,
		RateLimitPerIP: cfg.Server.RateLimitPerIP,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// runArchiver periodically flushes recent persisted opportunities to object
// storage. When a lock manager is available the flush is single-flight
// across replicas.
func (a *App) runArchiver(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(a.cfg.S3.ArchiveEvery.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := a.archiveOnce(ctx, deps); err != nil {
			a.logger.ErrorContext(ctx, "archive flush failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

func (a *App) archiveOnce(ctx context.Context, deps *Dependencies) error {
	if deps.LockManager != nil {
		release, err := deps.LockManager.Acquire(ctx, "archive:opportunities", archiveLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.DebugContext(ctx, "archive lock held elsewhere, skipping")
				return nil
			}
			return fmt.Errorf("app: acquire archive lock: %w", err)
		}
		defer release()
	}

	opps, err := deps.OpportunityStore.ListRecent(ctx, 1000)
	if err != nil {
		return fmt.Errorf("app: list opportunities for archive: %w", err)
	}
	if len(opps) == 0 {
		return nil
	}

	key, err := deps.Archiver.ArchiveOpportunities(ctx, opps, time.Now().UTC())
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "opportunities archived",
		slog.Int("count", len(opps)),
		slog.String("key", key),
	)
	return nil
}

// detectorConfig maps the TOML arbitrage section onto the detector's config.
func detectorConfig(cfg *config.Config, windowBps decimal.Decimal) metrics.DetectorConfig {
	thresholds := make(map[string]metrics.SymbolThresholds, len(cfg.Arbitrage.Thresholds))
	for symbol, t := range cfg.Arbitrage.Thresholds {
		thresholds[symbol] = symbolThresholds(t)
	}
	return metrics.DetectorConfig{
		Symbols:           cfg.Tracker.Symbols,
		Thresholds:        thresholds,
		DefaultThresholds: symbolThresholds(cfg.Arbitrage.DefaultThresholds),
		StaleThreshold:    cfg.Tracker.StaleThreshold.Duration,
		MinProfitBps:      decimal.NewFromFloat(cfg.Arbitrage.MinProfitBps),
		RoundTripFeeBps:   decimal.NewFromFloat(cfg.Arbitrage.RoundTripFeeBps),
		Expiry:            cfg.Arbitrage.Expiry.Duration,
		WindowBps:         windowBps,
	}
}

func symbolThresholds(t config.ThresholdsConfig) metrics.SymbolThresholds {
	return metrics.SymbolThresholds{
		MinSpreadBps: decimal.NewFromFloat(t.MinSpreadBps),
		MaxImpactBps: decimal.NewFromFloat(t.MaxImpactBps),
		MinDepthUSD:  decimal.NewFromFloat(t.MinDepthUSD),
	}
}
