package app

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"liqtrack/internal/domain"
)

// fakeAdapter runs until its context is cancelled unless a terminal error is
// configured, in which case it returns immediately.
type fakeAdapter struct {
	venue   string
	runErr  error
	stopped bool
}

func (f *fakeAdapter) Venue() string { return f.venue }

func (f *fakeAdapter) Run(ctx context.Context) error {
	if f.runErr != nil {
		return f.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeAdapter) Stop() error {
	f.stopped = true
	return nil
}

func (f *fakeAdapter) LatestBook() *domain.OrderBook        { return nil }
func (f *fakeAdapter) IsStale(threshold time.Duration) bool { return true }
func (f *fakeAdapter) State() domain.ConnState              { return domain.StateStopped }

func testApp() *App {
	return &App{logger: slog.New(slog.DiscardHandler)}
}

func TestRunAdapterSwallowsReconnectExhaustion(t *testing.T) {
	a := testApp()
	ad := &fakeAdapter{
		venue:  "kraken",
		runErr: fmt.Errorf("kraken: %w", domain.ErrMaxReconnects),
	}

	err := a.runAdapter(context.Background(), ad)
	require.NoError(t, err)
	assert.True(t, ad.stopped)
}

func TestRunAdapterCleanOnCancel(t *testing.T) {
	a := testApp()
	ad := &fakeAdapter{venue: "binance"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.runAdapter(ctx, ad))
	assert.True(t, ad.stopped)
}

// A venue that dies permanently must not take the rest of the group down
// with it: the healthy adapter keeps running until the caller cancels.
func TestDeadVenueLeavesOthersRunning(t *testing.T) {
	a := testApp()
	dead := &fakeAdapter{
		venue:  "kraken",
		runErr: fmt.Errorf("kraken: %w", domain.ErrMaxReconnects),
	}
	healthy := &fakeAdapter{venue: "binance"}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runAdapter(gctx, dead) })
	g.Go(func() error { return a.runAdapter(gctx, healthy) })

	// Let the dead adapter finish, then confirm the group context survived.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-gctx.Done():
		t.Fatal("terminal venue failure cancelled the shared group context")
	default:
	}

	cancel()
	require.NoError(t, g.Wait())
	assert.True(t, dead.stopped)
	assert.True(t, healthy.stopped)
}
