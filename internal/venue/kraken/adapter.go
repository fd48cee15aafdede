// Package kraken implements the Kraken order book adapter. Kraken speaks an
// incremental-delta protocol: a subscribe handshake, then one snapshot frame
// followed by delta frames, which the adapter folds into a local accumulator
// before publishing complete books.
package kraken

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
	readWait         = 90 * time.Second
	heartbeatPeriod  = 30 * time.Second
	subscribeDepth   = 25
)

// Config configures the Kraken adapter.
type Config struct {
	// URL is the public websocket endpoint, e.g. "wss://ws.kraken.com".
	URL string
	// Pair is the wire pair name, e.g. "XBT/USD".
	Pair string
	// Symbol is the normalized symbol published on books, e.g. "BTC-USD".
	Symbol string
	Policy venue.ReconnectPolicy
}

// Adapter maintains one connection to the Kraken book channel and publishes
// normalized books on the fan-in channel.
type Adapter struct {
	venue.Tracker

	cfg    Config
	out    chan<- domain.BookUpdate
	logger *slog.Logger

	// book is only touched by the listen loop of the current connection
	// and is reset on every connect.
	book *accumulator

	mu   sync.Mutex
	conn *websocket.Conn

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Kraken adapter publishing to out.
func New(cfg Config, out chan<- domain.BookUpdate, logger *slog.Logger) *Adapter {
	return &Adapter{
		cfg:    cfg,
		out:    out,
		logger: logger.With(slog.String("component", "kraken_adapter")),
		book:   newAccumulator(),
		done:   make(chan struct{}),
	}
}

// Venue returns the venue name.
func (a *Adapter) Venue() string { return venue.Kraken }

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
			return fmt.Errorf("kraken: %w", domain.ErrMaxReconnects)
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

// runConnection performs one connect+subscribe+listen cycle. The accumulator
// is reset before subscribing so stale deltas from a previous connection can
// never leak into the next snapshot.
func (a *Adapter) runConnection(ctx context.Context) error {
	a.SetState(domain.StateConnecting)
	a.logger.Info("connecting", slog.String("url", a.cfg.URL))

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, a.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("kraken: connect: %w", err)
	}
	a.setConn(conn)
	defer a.closeConn()

	a.book.reset()

	if err := a.subscribe(conn); err != nil {
		return err
	}
	a.ResetAttempts()

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go a.heartbeatLoop(conn, heartbeatDone)

	a.SetState(domain.StateListening)
	a.logger.Info("listening", slog.String("pair", a.cfg.Pair))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.done:
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readWait))
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
			return fmt.Errorf("kraken: read: %w: %w", domain.ErrWSDisconnect, err)
		}
		a.handleMessage(raw)
	}
}

// subscribe sends the book subscription and waits for the acknowledgment.
// Kraken sends one systemStatus frame on connect before the
// subscriptionStatus ack; exactly one such frame is skipped.
func (a *Adapter) subscribe(conn *websocket.Conn) error {
	a.SetState(domain.StateSubscribing)

	req := subscribeRequest{
		Event: "subscribe",
		Pair:  []string{a.cfg.Pair},
		Subscription: subscription{
			Name:  "book",
			Depth: subscribeDepth,
		},
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("kraken: subscribe: %w", err)
	}

	skippedStatus := false
	for {
		conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("kraken: subscribe ack: %w", err)
		}

		var msg eventMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("kraken: subscribe ack: %w", err)
		}

		switch msg.Event {
		case "systemStatus":
			if skippedStatus {
				return fmt.Errorf("kraken: subscribe: repeated systemStatus before ack")
			}
			skippedStatus = true
			a.logger.Debug("system status", slog.String("status", msg.Status))
		case "subscriptionStatus":
			if msg.Status != "subscribed" {
				return fmt.Errorf("kraken: subscribe rejected: %s", msg.ErrorMessage)
			}
			return nil
		default:
			return fmt.Errorf("kraken: subscribe: unexpected event %q", msg.Event)
		}
	}
}

// handleMessage dispatches one frame. Dict frames are control messages;
// array frames carry book data. Malformed payloads are logged and dropped;
// they never terminate the connection.
func (a *Adapter) handleMessage(raw []byte) {
	if len(raw) == 0 {
		return
	}
	if raw[0] != '[' {
		var msg eventMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			a.logger.Warn("dropping malformed message",
				slog.String("error", err.Error()),
				slog.Int("payload_len", len(raw)),
			)
			return
		}
		// heartbeat, pong, and late systemStatus frames are expected noise.
		a.logger.Debug("ignoring event", slog.String("event", msg.Event))
		return
	}

	payload, ok := parseChannelMessage(raw)
	if !ok {
		a.logger.Warn("dropping malformed channel frame", slog.Int("payload_len", len(raw)))
		return
	}

	a.book.apply(payload)
	if !a.book.ready() {
		// One-sided state while the snapshot is still streaming in.
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
	venue.Emit(a.out, venue.Kraken, book, a.logger)
}

// heartbeatLoop sends an application-level ping every heartbeatPeriod. A
// failed write closes the connection so the read loop surfaces the error
// and triggers a reconnect.
func (a *Adapter) heartbeatLoop(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-connDone:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(pingRequest{Event: "ping"}); err != nil {
				a.logger.Warn("heartbeat failed", slog.String("error", err.Error()))
				_ = conn.Close()
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
