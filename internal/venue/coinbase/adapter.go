// Package coinbase implements the Coinbase Exchange order book adapter over
// the level2 channel: a subscribe handshake, one snapshot that seeds the
// book, then l2update frames that mutate individual levels.
package coinbase

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

// Config configures the Coinbase adapter.
type Config struct {
	// URL is the exchange websocket endpoint, e.g. "wss://ws-feed.exchange.coinbase.com".
	URL string
	// ProductID is the wire product name, e.g. "BTC-USD".
	ProductID string
	// Symbol is the normalized symbol published on books. Usually equal to
	// ProductID; kept separate so symbol mapping stays a config concern.
	Symbol string
	Policy venue.ReconnectPolicy
}

// Adapter maintains one connection to the Coinbase level2 channel and
// publishes normalized books on the fan-in channel.
type Adapter struct {
	venue.Tracker

	cfg    Config
	out    chan<- domain.BookUpdate
	logger *slog.Logger

	// book is only touched by the listen loop of the current connection
	// and is reset on every connect.
	book *bookState

	mu   sync.Mutex
	conn *websocket.Conn

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Coinbase adapter publishing to out.
func New(cfg Config, out chan<- domain.BookUpdate, logger *slog.Logger) *Adapter {
	if cfg.Symbol == "" {
		cfg.Symbol = cfg.ProductID
	}
	return &Adapter{
		cfg:    cfg,
		out:    out,
		logger: logger.With(slog.String("component", "coinbase_adapter")),
		book:   newBookState(),
		done:   make(chan struct{}),
	}
}

// Venue returns the venue name.
func (a *Adapter) Venue() string { return venue.Coinbase }

// Run connects and listens until ctx is cancelled, Stop is called, or the
// reconnect budget is exhausted.
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
			return fmt.Errorf("coinbase: %w", domain.ErrMaxReconnects)
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

// Stop closes the adapter. It is idempotent.
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

// runConnection performs one connect+subscribe+listen cycle. The book state
// is reset before subscribing; the first snapshot after the ack seeds it.
func (a *Adapter) runConnection(ctx context.Context) error {
	a.SetState(domain.StateConnecting)
	a.logger.Info("connecting", slog.String("url", a.cfg.URL))

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, a.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("coinbase: connect: %w", err)
	}
	a.setConn(conn)
	defer a.closeConn()

	a.book.reset()

	if err := a.subscribe(conn); err != nil {
		return err
	}
	a.ResetAttempts()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go a.pingLoop(conn, pingDone)

	a.SetState(domain.StateListening)
	a.logger.Info("listening", slog.String("product_id", a.cfg.ProductID))

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
			return fmt.Errorf("coinbase: read: %w: %w", domain.ErrWSDisconnect, err)
		}
		a.handleMessage(raw)
	}
}

// subscribe opens the level2 channel and waits for the subscriptions ack.
func (a *Adapter) subscribe(conn *websocket.Conn) error {
	a.SetState(domain.StateSubscribing)

	req := subscribeRequest{
		Type:       "subscribe",
		ProductIDs: []string{a.cfg.ProductID},
		Channels:   []string{"level2"},
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("coinbase: subscribe: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("coinbase: subscribe ack: %w", err)
	}

	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("coinbase: subscribe ack: %w", err)
	}
	switch msg.Type {
	case "subscriptions":
		return nil
	case "error":
		return fmt.Errorf("coinbase: subscribe rejected: %s: %s", msg.Message, msg.Reason)
	default:
		return fmt.Errorf("coinbase: subscribe: unexpected type %q", msg.Type)
	}
}

// handleMessage dispatches one frame. Malformed payloads are logged and
// dropped; they never terminate the connection.
func (a *Adapter) handleMessage(raw []byte) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		a.logger.Warn("dropping malformed message",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(raw)),
		)
		return
	}

	switch msg.Type {
	case "snapshot":
		a.book.applySnapshot(msg.Bids, msg.Asks)
	case "l2update":
		a.book.applyChanges(msg.Changes)
	default:
		a.logger.Debug("ignoring message", slog.String("type", msg.Type))
		return
	}

	if !a.book.ready() {
		a.logger.Debug("book warming up",
			slog.Int("bids", len(a.book.bids)),
			slog.Int("asks", len(a.book.asks)),
		)
		return
	}

	book, err := a.book.materialize(a.cfg.Symbol, time.Now())
	if err != nil {
		a.logger.Warn("dropping unnormalizable book", slog.String("error", err.Error()))
		return
	}

	a.SetLatest(book)
	venue.Emit(a.out, venue.Coinbase, book, a.logger)
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
