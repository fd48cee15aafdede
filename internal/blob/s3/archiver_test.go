package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liqtrack/internal/domain"
)

type captureWriter struct {
	path        string
	contentType string
	body        []byte
}

func (w *captureWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	w.path = path
	w.contentType = contentType
	body, err := io.ReadAll(data)
	w.body = body
	return err
}

func TestArchiveOpportunitiesJSONL(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)
	opps := []domain.ArbitrageOpportunity{
		{ID: "a", Symbol: "BTC-USD", BuyVenue: "binance", SellVenue: "kraken",
			SpreadBps: decimal.NewFromInt(30), DetectedAt: asOf},
		{ID: "b", Symbol: "ETH-USD", BuyVenue: "kraken", SellVenue: "binance",
			SpreadBps: decimal.NewFromInt(45), DetectedAt: asOf},
	}

	w := &captureWriter{}
	key, err := NewArchiver(w, "archive/opportunities").ArchiveOpportunities(context.Background(), opps, asOf)
	require.NoError(t, err)

	assert.Equal(t, "archive/opportunities/2026/08/30/opportunities-20260830T123000Z.jsonl", key)
	assert.Equal(t, "application/x-ndjson", w.contentType)
	assert.Equal(t, key, w.path)

	// One JSON object per line.
	scanner := bufio.NewScanner(bytes.NewReader(w.body))
	var lines int
	for scanner.Scan() {
		var opp domain.ArbitrageOpportunity
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &opp))
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestArchiveSkipsEmptyBatch(t *testing.T) {
	w := &captureWriter{}
	key, err := NewArchiver(w, "").ArchiveOpportunities(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, w.path)
}
