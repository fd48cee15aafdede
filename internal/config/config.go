// Package config defines the top-level configuration for the liquidity
// tracker and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by LIQTRACK_* environment
// variables.
type Config struct {
	Venues    VenuesConfig    `toml:"venues"`
	Tracker   TrackerConfig   `toml:"tracker"`
	SOR       SORConfig       `toml:"sor"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	LogLevel  string          `toml:"log_level"`
}

// VenuesConfig holds the per-venue feed settings.
type VenuesConfig struct {
	Binance  VenueConfig `toml:"binance"`
	Kraken   VenueConfig `toml:"kraken"`
	Coinbase VenueConfig `toml:"coinbase"`
}

// VenueConfig configures one exchange feed. Symbols maps the normalized
// symbol (e.g. "BTC-USD") to the venue's wire name for it (e.g. "btcusdt",
// "XBT/USD").
type VenueConfig struct {
	Enabled bool              `toml:"enabled"`
	WSURL   string            `toml:"ws_url"`
	Symbols map[string]string `toml:"symbols"`
}

// TrackerConfig holds the shared tracking parameters.
type TrackerConfig struct {
	Symbols        []string        `toml:"symbols"`
	TickInterval   duration        `toml:"tick_interval"`
	WindowBps      float64         `toml:"window_bps"`
	StaleThreshold duration        `toml:"stale_threshold"`
	HistorySize    int             `toml:"history_size"`
	Reconnect      ReconnectConfig `toml:"reconnect"`
}

// ReconnectConfig holds the exponential backoff settings shared by every
// venue adapter.
type ReconnectConfig struct {
	BaseDelay   duration `toml:"base_delay"`
	MaxDelay    duration `toml:"max_delay"`
	MaxAttempts int      `toml:"max_attempts"`
}

// SORConfig holds the smart order router's fee schedule, in bps per venue.
type SORConfig struct {
	FeeBps map[string]float64 `toml:"fee_bps"`
}

// ThresholdsConfig holds per-symbol arbitrage qualification rules.
type ThresholdsConfig struct {
	MinSpreadBps float64 `toml:"min_spread_bps"`
	MaxImpactBps float64 `toml:"max_impact_bps"`
	MinDepthUSD  float64 `toml:"min_depth_usd"`
}

// ArbitrageConfig holds arbitrage detection parameters.
type ArbitrageConfig struct {
	MinProfitBps      float64                     `toml:"min_profit_bps"`
	RoundTripFeeBps   float64                     `toml:"round_trip_fee_bps"`
	Expiry            duration                    `toml:"expiry"`
	DefaultThresholds ThresholdsConfig            `toml:"default_thresholds"`
	Thresholds        map[string]ThresholdsConfig `toml:"thresholds"`
}

// RedisConfig holds Redis connection parameters. Disabled leaves the signal
// bus and frame cache off.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters. Disabled leaves
// opportunity persistence off.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the archive
// sink. Disabled leaves archiving off.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	KeyPrefix      string   `toml:"key_prefix"`
	ArchiveEvery   duration `toml:"archive_every"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled        bool     `toml:"enabled"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	APIKey         string   `toml:"api_key"`
	RateLimitPerIP int      `toml:"rate_limit_per_ip"`
}

// duration wraps time.Duration for TOML text (de)serialization.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Venues: VenuesConfig{
			Binance: VenueConfig{
				Enabled: true,
				WSURL:   "wss://stream.binance.com:9443/ws",
				Symbols: map[string]string{"BTC-USD": "btcusdt"},
			},
			Kraken: VenueConfig{
				Enabled: true,
				WSURL:   "wss://ws.kraken.com",
				Symbols: map[string]string{"BTC-USD": "XBT/USD"},
			},
			Coinbase: VenueConfig{
				Enabled: false,
				WSURL:   "wss://ws-feed.exchange.coinbase.com",
				Symbols: map[string]string{"BTC-USD": "BTC-USD"},
			},
		},
		Tracker: TrackerConfig{
			Symbols:        []string{"BTC-USD"},
			TickInterval:   duration{time.Second},
			WindowBps:      50,
			StaleThreshold: duration{5 * time.Second},
			HistorySize:    512,
			Reconnect: ReconnectConfig{
				BaseDelay:   duration{time.Second},
				MaxDelay:    duration{60 * time.Second},
				MaxAttempts: 10,
			},
		},
		SOR: SORConfig{
			FeeBps: map[string]float64{
				"binance":  10,
				"kraken":   25,
				"coinbase": 50,
			},
		},
		Arbitrage: ArbitrageConfig{
			MinProfitBps:    10,
			RoundTripFeeBps: 20,
			Expiry:          duration{5 * time.Minute},
			DefaultThresholds: ThresholdsConfig{
				MinSpreadBps: 10,
				MaxImpactBps: 25,
				MinDepthUSD:  50000,
			},
			Thresholds: map[string]ThresholdsConfig{},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "liqtrack",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "liqtrack-data",
			UseSSL:         false,
			ForcePathStyle: true,
			KeyPrefix:      "archive/opportunities",
			ArchiveEvery:   duration{time.Hour},
		},
		Server: ServerConfig{
			Enabled:        true,
			Port:           8080,
			CORSOrigins:    []string{"*"},
			RateLimitPerIP: 0,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(c.Tracker.Symbols) == 0 {
		errs = append(errs, "tracker: at least one symbol is required")
	}
	if c.Tracker.TickInterval.Duration <= 0 {
		errs = append(errs, "tracker: tick_interval must be positive")
	}
	if c.Tracker.WindowBps <= 0 {
		errs = append(errs, "tracker: window_bps must be positive")
	}
	if c.Tracker.StaleThreshold.Duration <= 0 {
		errs = append(errs, "tracker: stale_threshold must be positive")
	}
	if c.Tracker.Reconnect.BaseDelay.Duration <= 0 {
		errs = append(errs, "tracker: reconnect.base_delay must be positive")
	}
	if c.Tracker.Reconnect.MaxDelay.Duration < c.Tracker.Reconnect.BaseDelay.Duration {
		errs = append(errs, "tracker: reconnect.max_delay must be at least base_delay")
	}

	enabled := 0
	for name, venue := range map[string]VenueConfig{
		"binance":  c.Venues.Binance,
		"kraken":   c.Venues.Kraken,
		"coinbase": c.Venues.Coinbase,
	} {
		if !venue.Enabled {
			continue
		}
		enabled++
		if venue.WSURL == "" {
			errs = append(errs, fmt.Sprintf("venues.%s: ws_url must not be empty", name))
		}
		for _, symbol := range c.Tracker.Symbols {
			if venue.Symbols[symbol] == "" {
				errs = append(errs, fmt.Sprintf("venues.%s: no wire name for symbol %q", name, symbol))
			}
		}
	}
	if enabled < 2 {
		errs = append(errs, "venues: at least two venues must be enabled for cross-venue tracking")
	}

	if c.Arbitrage.RoundTripFeeBps < 0 {
		errs = append(errs, "arbitrage: round_trip_fee_bps must not be negative")
	}
	if c.Arbitrage.Expiry.Duration <= 0 {
		errs = append(errs, "arbitrage: expiry must be positive")
	}
	if c.Arbitrage.DefaultThresholds.MaxImpactBps <= 0 {
		errs = append(errs, "arbitrage: default_thresholds.max_impact_bps must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		errs = append(errs, "postgres: dsn or host must be set when enabled")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
