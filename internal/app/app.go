// Package app assembles the shared dependencies of the POS binaries.
package app

import (
	"context"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/cache"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/config"
	"github.com/noah-isme/backend-pos/internal/db"
	"github.com/noah-isme/backend-pos/internal/directory"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/feeschedule"
	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/repo"
	"github.com/noah-isme/backend-pos/internal/reservation"
	"github.com/noah-isme/backend-pos/internal/resilience"
	"github.com/noah-isme/backend-pos/internal/sale"
)

// Dependencies enumerates the connections and stores shared by the API handlers.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Tasks     *asynq.Client
	Validator *validator.Validate

	Catalog   *catalog.Store
	Directory *directory.Store
	Fees      *feeschedule.Provider
	Events    *events.Bus
}

// Options toggles instrumentation on the connections.
type Options struct {
	RedisMetrics bool
	Breakers     *obs.BreakerMetrics
}

// Open connects Postgres, Redis and the task queue, then builds the stores on top.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL, obs.PGXTracer{})
	if err != nil {
		return nil, err
	}
	rdb, err := NewRedis(ctx, cfg.RedisURL, opts.RedisMetrics, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("parse queue redis url: %w", err)
	}
	tasks := asynq.NewClient(redisOpt)

	feeLogger := logger.With().Str("component", "feeschedule").Logger()
	breaker := resilience.NewBreaker("fees_db", 3, 0.5, 30*time.Second)
	breaker.Metrics = opts.Breakers
	breaker.Logger = feeLogger
	fees := feeschedule.NewProvider(
		feeschedule.GuardedSource{Source: feeschedule.NewStore(pool), Breaker: breaker},
		cache.New(rdb, cfg.FeeCacheTTL),
		cfg.Fees,
		feeLogger,
	)

	return &Dependencies{
		Config:    cfg,
		Logger:    logger,
		DB:        pool,
		Redis:     rdb,
		Tasks:     tasks,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		Catalog:   catalog.NewStore(pool),
		Directory: directory.NewStore(pool),
		Fees:      fees,
		Events:    &events.Bus{Store: events.NewPGStore(pool), Tasks: tasks},
	}, nil
}

// NewRedis parses url, instruments the client and verifies it with a ping.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// SaleService wires the sale session service over the shared dependencies.
func (d *Dependencies) SaleService(metrics *obs.SaleMetrics) *sale.Service {
	cfg := d.Config
	leases := lock.Leases{R: d.Redis}
	return sale.NewService(sale.Config{
		Store:                      sale.RedisStore{R: d.Redis, TTL: cfg.SaleSessionTTL},
		Catalog:                    d.Catalog,
		Directory:                  d.Directory,
		Reservations:               reservation.New(leases, cfg.ReservationTTL),
		Repository:                 repo.NewSales(d.DB),
		Events:                     d.Events,
		Fees:                       d.Fees,
		Notifier:                   sale.LogNotifier{Logger: d.Logger.With().Str("component", "notifier").Logger()},
		Metrics:                    metrics,
		Locker:                     lock.Locker{R: d.Redis, RetryBackoff: cfg.LockRetryBackoff},
		LockTTL:                    cfg.LockTTL,
		StoreCreditMaxInstallments: cfg.StoreCreditMaxInstallments,
		WalkInCustomerID:           cfg.WalkInCustomerID,
		Logger:                     d.Logger.With().Str("component", "sale").Logger(),
	})
}

// Close releases every connection, logging failures.
func (d *Dependencies) Close() {
	if d.Tasks != nil {
		if err := d.Tasks.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close task client")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
