package kraken

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorSnapshotThenDelta(t *testing.T) {
	ac := newAccumulator()

	ac.apply(&bookPayload{
		SnapshotBids: [][]string{{"30000", "1.5", "1700000000.0"}, {"29990", "2", "1700000000.0"}},
		SnapshotAsks: [][]string{{"30010", "1", "1700000000.0"}},
	})
	require.True(t, ac.ready())

	// Upsert one bid, remove another.
	ac.apply(&bookPayload{
		Bids: [][]string{{"30000", "0.5", "1700000001.0"}, {"29990", "0", "1700000001.0"}},
	})

	require.Len(t, ac.bids, 1)
	assert.True(t, ac.bids["30000"].Equal(decimal.RequireFromString("0.5")))

	book, err := ac.materialize("BTC-USD", time.Now())
	require.NoError(t, err)
	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(decimal.NewFromInt(30000)))
}

func TestAccumulatorWithholdsOneSidedBook(t *testing.T) {
	ac := newAccumulator()

	ac.apply(&bookPayload{SnapshotBids: [][]string{{"30000", "1", "1700000000.0"}}})
	assert.False(t, ac.ready())

	// Removing the last ask makes the book one-sided again.
	ac.apply(&bookPayload{SnapshotAsks: [][]string{{"30010", "1", "1700000000.0"}}})
	assert.True(t, ac.ready())
	ac.apply(&bookPayload{Asks: [][]string{{"30010", "0", "1700000002.0"}}})
	assert.False(t, ac.ready())
}

func TestAccumulatorDropsMalformedEntries(t *testing.T) {
	ac := newAccumulator()

	ac.apply(&bookPayload{
		SnapshotBids: [][]string{
			{"30000", "not-a-number", "x"},
			{"bogus", "1", "x"},
			{"29990"},
			{"29980", "-1", "x"},
			{"29970", "3", "x"},
		},
	})

	require.Len(t, ac.bids, 1)
	assert.True(t, ac.bids["29970"].Equal(decimal.NewFromInt(3)))
}

func TestAccumulatorResetRequiresFreshSnapshot(t *testing.T) {
	ac := newAccumulator()
	ac.apply(&bookPayload{
		SnapshotBids: [][]string{{"30000", "1", "x"}},
		SnapshotAsks: [][]string{{"30010", "1", "x"}},
	})
	require.True(t, ac.ready())

	ac.reset()
	assert.False(t, ac.ready())
	assert.Empty(t, ac.bids)
	assert.Empty(t, ac.asks)
}

func TestParseChannelMessage(t *testing.T) {
	raw := []byte(`[42,{"bs":[["30000.0","1.2","1700000000.1"]],"as":[["30010.0","0.8","1700000000.1"]]},"book-25","XBT/USD"]`)
	payload, ok := parseChannelMessage(raw)
	require.True(t, ok)
	assert.Len(t, payload.SnapshotBids, 1)
	assert.Len(t, payload.SnapshotAsks, 1)
}

func TestParseChannelMessageSplitFrame(t *testing.T) {
	// Bids and asks split across two data elements in one frame.
	raw := []byte(`[42,{"b":[["30000.0","1.2","1700000001.0"]]},{"a":[["30010.0","0.8","1700000001.0"]]},"book-25","XBT/USD"]`)
	payload, ok := parseChannelMessage(raw)
	require.True(t, ok)
	assert.Len(t, payload.Bids, 1)
	assert.Len(t, payload.Asks, 1)
}

func TestParseChannelMessageRejectsNonBook(t *testing.T) {
	for name, raw := range map[string]string{
		"dict frame":    `{"event":"heartbeat"}`,
		"short frame":   `[42,"book-25"]`,
		"trade channel": `[7,[["30000","0.1","1700000000.0","b","m",""]],"trade","XBT/USD"]`,
		"empty payload": `[42,{},"book-25","XBT/USD"]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := parseChannelMessage([]byte(raw))
			assert.False(t, ok)
		})
	}
}
