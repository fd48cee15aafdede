// Package binance implements the Binance order book adapter. Binance speaks
// a snapshot-replace protocol: the stream URL carries the subscription and
// every inbound message is a complete top-N book, so the adapter needs no
// subscribe handshake and no local accumulation state.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"liqtrack/internal/domain"
	"liqtrack/internal/venue"
)

const (
	handshakeTimeout = 15 * time.Second
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
)

// Config configures the Binance adapter.
type Config struct {
	// URL is the full stream endpoint, e.g.
	// "wss://stream.binance.com:9443/ws/btcusdt@depth20@100ms".
	URL    string
	Symbol string
	Policy venue.ReconnectPolicy
}

// Adapter maintains one connection to the Binance depth stream and publishes
// normalized books on the fan-in channel.
type Adapter struct {
	venue.Tracker

	cfg    Config
	out    chan<- domain.BookUpdate
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Binance adapter publishing to out.
func New(cfg Config, out chan<- domain.BookUpdate, logger *slog.Logger) *Adapter {
	return &Adapter{
		cfg:    cfg,
		out:    out,
		logger: logger.With(slog.String("component", "binance_adapter")),
		done:   make(chan struct{}),
	}
}

// Venue returns the venue name.
func (a *Adapter) Venue() string { return venue.Binance }

// Run connects and listens until ctx is cancelled, Stop is called, or the
// reconnect budget is exhausted. Each connection failure enters the backoff
// schedule; a successful connect resets it.
func (a *Adapter) Run(ctx context.Context) error {
	defer a.SetState(domain.StateStopped)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.done:
			return nil
		default:
		}

		err := a.runConnection(ctx)
		if a.stopped() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		attempt := a.BumpAttempts()
		if a.cfg.Policy.MaxAttempts > 0 && attempt > a.cfg.Policy.MaxAttempts {
			a.logger.Error("giving up after max reconnect attempts",
				slog.Int("attempts", attempt-1),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("binance: %w", domain.ErrMaxReconnects)
		}

		delay := a.cfg.Policy.Delay(attempt)
		a.SetState(domain.StateReconnecting)
		a.logger.Warn("connection lost, reconnecting",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.done:
			return nil
		case <-time.After(delay):
		}
	}
}

// Stop closes the adapter. It is idempotent; the listen loop and the ping
// loop observe the done channel and the closed connection and exit.
func (a *Adapter) Stop() error {
	a.stopOnce.Do(func() {
		close(a.done)
		a.closeConn()
	})
	return nil
}

func (a *Adapter) stopped() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// runConnection performs one connect+listen cycle. It always closes the
// connection before returning, on every exit path.
func (a *Adapter) runConnection(ctx context.Context) error {
	a.SetState(domain.StateConnecting)
	a.logger.Info("connecting", slog.String("url", a.cfg.URL))

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, a.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("binance: connect: %w", err)
	}
	a.setConn(conn)
	defer a.closeConn()

	a.ResetAttempts()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go a.pingLoop(conn, pingDone)

	// The stream URL already carries the subscription: go straight from
	// Connecting to Listening.
	a.SetState(domain.StateListening)
	a.logger.Info("listening", slog.String("symbol", a.cfg.Symbol))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.done:
			return nil
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-a.done:
				return nil
			default:
			}
			a.SetState(domain.StateDisconnected)
			return fmt.Errorf("binance: read: %w: %w", domain.ErrWSDisconnect, err)
		}
		a.handleMessage(raw)
	}
}

// handleMessage parses one frame. Malformed payloads are logged and dropped;
// they never terminate the connection.
func (a *Adapter) handleMessage(raw []byte) {
	var msg depthMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		a.logger.Warn("dropping malformed message",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(raw)),
		)
		return
	}
	if !msg.isBookEvent() {
		a.logger.Debug("ignoring event", slog.String("event", msg.EventType))
		return
	}

	book, err := msg.normalize(a.cfg.Symbol, time.Now())
	if err != nil {
		a.logger.Warn("dropping unnormalizable book", slog.String("error", err.Error()))
		return
	}

	a.SetLatest(book)
	venue.Emit(a.out, venue.Binance, book, a.logger)
}

func (a *Adapter) pingLoop(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-connDone:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				// The read loop will surface the dead connection.
				return
			}
		}
	}
}

func (a *Adapter) setConn(conn *websocket.Conn) {
	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
}

func (a *Adapter) closeConn() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		_ = a.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		_ = a.conn.Close()
		a.conn = nil
	}
}

var _ venue.Adapter = (*Adapter)(nil)
