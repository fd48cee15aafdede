package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "liqtrack/internal/blob/s3"
	"liqtrack/internal/cache/redis"
	"liqtrack/internal/config"
	"liqtrack/internal/domain"
	"liqtrack/internal/store/postgres"
)

// Dependencies bundles the optional sinks the tracker publishes to. Every
// field may be nil; the run loop checks before use, so disabling Redis,
// Postgres, or S3 in the config degrades features rather than failing.
type Dependencies struct {
	SignalBus   domain.SignalBus
	FrameCache  domain.FrameCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	OpportunityStore domain.OpportunityStore

	Archiver domain.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis: signal bus, frame cache, lock manager, rate limiter ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.FrameCache = redis.NewFrameCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	}

	// --- PostgreSQL: opportunity persistence ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.OpportunityStore = postgres.NewOpportunityStore(pgClient.Pool())
	}

	// --- S3: opportunity archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), cfg.S3.KeyPrefix)
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("postgres", cfg.Postgres.Enabled),
		slog.Bool("s3", cfg.S3.Enabled),
	)

	return deps, cleanup, nil
}
