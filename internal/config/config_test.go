package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
log_level = "debug"

[tracker]
symbols = ["BTC-USD", "ETH-USD"]
tick_interval = "2s"

[venues.binance.symbols]
"BTC-USD" = "btcusdt"
"ETH-USD" = "ethusdt"

[venues.kraken.symbols]
"BTC-USD" = "XBT/USD"
"ETH-USD" = "ETH/USD"

[arbitrage.thresholds."ETH-USD"]
min_spread_bps = 15.0
max_impact_bps = 30.0
min_depth_usd = 25000.0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.Tracker.Symbols)
	assert.Equal(t, 2*time.Second, cfg.Tracker.TickInterval.Duration)
	// Untouched sections keep defaults.
	assert.Equal(t, 50.0, cfg.Tracker.WindowBps)
	assert.Equal(t, "wss://ws.kraken.com", cfg.Venues.Kraken.WSURL)
	assert.Equal(t, 15.0, cfg.Arbitrage.Thresholds["ETH-USD"].MinSpreadBps)

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIQTRACK_LOG_LEVEL", "warn")
	t.Setenv("LIQTRACK_REDIS_ENABLED", "true")
	t.Setenv("LIQTRACK_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("LIQTRACK_TRACKER_TICK_INTERVAL", "250ms")
	t.Setenv("LIQTRACK_TRACKER_SYMBOLS", "BTC-USD, ETH-USD")
	t.Setenv("LIQTRACK_SERVER_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Tracker.TickInterval.Duration)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.Tracker.Symbols)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestEnvOverrideIgnoresBadValues(t *testing.T) {
	t.Setenv("LIQTRACK_SERVER_PORT", "not-a-number")
	t.Setenv("LIQTRACK_TRACKER_TICK_INTERVAL", "soon")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Tracker.TickInterval.Duration)
}

func TestValidateCatchesProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Venues.Kraken.Enabled = false
	cfg.Tracker.TickInterval = duration{}
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least two venues")
	assert.Contains(t, err.Error(), "tick_interval")
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidateRequiresWireNames(t *testing.T) {
	cfg := Defaults()
	cfg.Tracker.Symbols = append(cfg.Tracker.Symbols, "SOL-USD")

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no wire name for symbol "SOL-USD"`)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "hunter2"
	cfg.Postgres.DSN = "postgres://u:p@host/db"
	cfg.S3.SecretKey = "secret"
	cfg.Server.APIKey = "key"

	red := cfg.RedactedConfig()
	assert.Equal(t, redacted, red.Redis.Password)
	assert.Equal(t, redacted, red.Postgres.DSN)
	assert.Equal(t, redacted, red.S3.SecretKey)
	assert.Equal(t, redacted, red.Server.APIKey)
	// Original untouched, empty fields stay empty.
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Empty(t, red.Postgres.Password)
}
