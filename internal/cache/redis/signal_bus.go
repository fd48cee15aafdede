package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"liqtrack/internal/domain"
)

const (
	// streamMaxLen bounds the opportunity stream via XADD MAXLEN ~ so an
	// unattended consumer cannot grow it without limit.
	streamMaxLen int64 = 10000

	// subscriberBuffer absorbs tick bursts; a slow ws client sheds load in
	// the hub, not here.
	subscriberBuffer = 128
)

// SignalBus fans metrics frames and arbitrage opportunities out of the
// tracker process. Pub/Sub carries the live feed for the ws hub and any
// external listener; a capped stream keeps a short replayable tail of
// opportunities for consumers that poll.
type SignalBus struct {
	rdb *redis.Client
}

func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish sends a JSON payload on a Pub/Sub channel. Delivery is at most
// once; subscribers that are not connected miss the message.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of raw payloads for the given channel name.
// Names containing glob metacharacters use pattern subscribe. The returned
// channel closes when ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		pubsub = sb.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channel)
	}

	// Wait for the subscription ack so callers never publish into a gap.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// StreamAppend appends a payload to the named stream, trimming to roughly
// streamMaxLen entries.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID ("0" for the start,
// "$" for new entries only). No pending entries is not an error; it returns
// an empty result.
func (sb *SignalBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	results, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var messages []domain.StreamMessage
	for _, res := range results {
		for _, msg := range res.Messages {
			data, ok := rawPayload(msg.Values["payload"])
			if !ok {
				continue
			}
			messages = append(messages, domain.StreamMessage{ID: msg.ID, Payload: data})
		}
	}
	return messages, nil
}

func rawPayload(v interface{}) ([]byte, bool) {
	switch p := v.(type) {
	case string:
		return []byte(p), true
	case []byte:
		return p, true
	default:
		return nil, false
	}
}

var _ domain.SignalBus = (*SignalBus)(nil)
