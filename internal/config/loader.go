package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LIQTRACK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LIQTRACK_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// Venues
	setBool(&cfg.Venues.Binance.Enabled, "LIQTRACK_VENUES_BINANCE_ENABLED")
	setStr(&cfg.Venues.Binance.WSURL, "LIQTRACK_VENUES_BINANCE_WS_URL")
	setBool(&cfg.Venues.Kraken.Enabled, "LIQTRACK_VENUES_KRAKEN_ENABLED")
	setStr(&cfg.Venues.Kraken.WSURL, "LIQTRACK_VENUES_KRAKEN_WS_URL")
	setBool(&cfg.Venues.Coinbase.Enabled, "LIQTRACK_VENUES_COINBASE_ENABLED")
	setStr(&cfg.Venues.Coinbase.WSURL, "LIQTRACK_VENUES_COINBASE_WS_URL")

	// Tracker
	setStringSlice(&cfg.Tracker.Symbols, "LIQTRACK_TRACKER_SYMBOLS")
	setDuration(&cfg.Tracker.TickInterval, "LIQTRACK_TRACKER_TICK_INTERVAL")
	setFloat64(&cfg.Tracker.WindowBps, "LIQTRACK_TRACKER_WINDOW_BPS")
	setDuration(&cfg.Tracker.StaleThreshold, "LIQTRACK_TRACKER_STALE_THRESHOLD")
	setInt(&cfg.Tracker.HistorySize, "LIQTRACK_TRACKER_HISTORY_SIZE")
	setDuration(&cfg.Tracker.Reconnect.BaseDelay, "LIQTRACK_TRACKER_RECONNECT_BASE_DELAY")
	setDuration(&cfg.Tracker.Reconnect.MaxDelay, "LIQTRACK_TRACKER_RECONNECT_MAX_DELAY")
	setInt(&cfg.Tracker.Reconnect.MaxAttempts, "LIQTRACK_TRACKER_RECONNECT_MAX_ATTEMPTS")

	// Arbitrage
	setFloat64(&cfg.Arbitrage.MinProfitBps, "LIQTRACK_ARBITRAGE_MIN_PROFIT_BPS")
	setFloat64(&cfg.Arbitrage.RoundTripFeeBps, "LIQTRACK_ARBITRAGE_ROUND_TRIP_FEE_BPS")
	setDuration(&cfg.Arbitrage.Expiry, "LIQTRACK_ARBITRAGE_EXPIRY")
	setFloat64(&cfg.Arbitrage.DefaultThresholds.MinSpreadBps, "LIQTRACK_ARBITRAGE_MIN_SPREAD_BPS")
	setFloat64(&cfg.Arbitrage.DefaultThresholds.MaxImpactBps, "LIQTRACK_ARBITRAGE_MAX_IMPACT_BPS")
	setFloat64(&cfg.Arbitrage.DefaultThresholds.MinDepthUSD, "LIQTRACK_ARBITRAGE_MIN_DEPTH_USD")

	// Redis
	setBool(&cfg.Redis.Enabled, "LIQTRACK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "LIQTRACK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LIQTRACK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LIQTRACK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LIQTRACK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LIQTRACK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LIQTRACK_REDIS_TLS_ENABLED")

	// Postgres
	setBool(&cfg.Postgres.Enabled, "LIQTRACK_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "LIQTRACK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "LIQTRACK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LIQTRACK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LIQTRACK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LIQTRACK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LIQTRACK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LIQTRACK_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LIQTRACK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LIQTRACK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LIQTRACK_POSTGRES_RUN_MIGRATIONS")

	// S3
	setBool(&cfg.S3.Enabled, "LIQTRACK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "LIQTRACK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LIQTRACK_S3_REGION")
	setStr(&cfg.S3.Bucket, "LIQTRACK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LIQTRACK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LIQTRACK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LIQTRACK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LIQTRACK_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.KeyPrefix, "LIQTRACK_S3_KEY_PREFIX")
	setDuration(&cfg.S3.ArchiveEvery, "LIQTRACK_S3_ARCHIVE_EVERY")

	// Server
	setBool(&cfg.Server.Enabled, "LIQTRACK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "LIQTRACK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LIQTRACK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LIQTRACK_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerIP, "LIQTRACK_SERVER_RATE_LIMIT_PER_IP")

	// Top-level
	setStr(&cfg.LogLevel, "LIQTRACK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
