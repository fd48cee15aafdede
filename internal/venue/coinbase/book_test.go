package coinbase

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotThenUpdates(t *testing.T) {
	bs := newBookState()

	bs.applySnapshot(
		[][]string{{"30000", "1"}, {"29990", "2"}},
		[][]string{{"30010", "1"}},
	)
	require.True(t, bs.ready())

	bs.applyChanges([][]string{
		{"buy", "30000", "0.4"},  // resize
		{"sell", "30010", "0"},   // remove last ask
		{"sell", "30020", "0.9"}, // new ask
	})

	assert.True(t, bs.bids["30000"].Equal(decimal.RequireFromString("0.4")))
	_, gone := bs.asks["30010"]
	assert.False(t, gone)
	assert.True(t, bs.asks["30020"].Equal(decimal.RequireFromString("0.9")))

	book, err := bs.materialize("BTC-USD", time.Now())
	require.NoError(t, err)
	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Equal(decimal.NewFromInt(30020)))
}

func TestSnapshotReplacesPreviousBook(t *testing.T) {
	bs := newBookState()
	bs.applySnapshot([][]string{{"30000", "1"}}, [][]string{{"30010", "1"}})
	bs.applySnapshot([][]string{{"31000", "1"}}, [][]string{{"31010", "1"}})

	require.Len(t, bs.bids, 1)
	_, stale := bs.bids["30000"]
	assert.False(t, stale)
	assert.True(t, bs.bids["31000"].Equal(decimal.NewFromInt(1)))
}

func TestApplyChangesSkipsMalformed(t *testing.T) {
	bs := newBookState()
	bs.applySnapshot([][]string{{"30000", "1"}}, [][]string{{"30010", "1"}})

	bs.applyChanges([][]string{
		{"hold", "30005", "1"},  // unknown side
		{"buy", "bogus", "1"},   // bad price
		{"buy", "29995", "-2"},  // negative size
		{"buy", "29990"},        // short tuple
	})

	require.Len(t, bs.bids, 1)
	assert.True(t, bs.ready())
}

func TestNotReadyUntilBothSides(t *testing.T) {
	bs := newBookState()
	bs.applyChanges([][]string{{"buy", "30000", "1"}})
	assert.False(t, bs.ready())
	bs.applyChanges([][]string{{"sell", "30010", "1"}})
	assert.True(t, bs.ready())
}
