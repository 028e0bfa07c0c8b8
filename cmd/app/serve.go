package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"subscription-service/internal/config"
	"subscription-service/internal/domain/ports/adapter"
	"subscription-service/internal/domain/ports/repository"
	"subscription-service/internal/infra/adapters/payment"
	"subscription-service/internal/infra/api"
	"subscription-service/internal/infra/api/apiv1"
	"subscription-service/internal/infra/catalog"
	"subscription-service/internal/infra/db/memory"
	pg "subscription-service/internal/infra/db/postgres"
	"subscription-service/internal/infra/metrics"
	red "subscription-service/internal/infra/redis"
	"subscription-service/internal/infra/sched"
	"subscription-service/internal/infra/worker"
	"subscription-service/internal/usecase"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	checks := map[string]api.Pinger{}
	var jobs []func(ctx context.Context) error

	// ---- Postgres (optional) ----
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		checks["postgres"] = pool.Ping
	}

	// ---- Redis (optional) ----
	var rc red.RedisClient
	if cfg.Redis.URL != "" {
		c, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer c.Close()
		rc = c
		checks["redis"] = c.Ping
	}

	// ---- Plan catalog ----
	planCatalog, reloader, err := buildCatalog(cfg, pool, rc, logger)
	if err != nil {
		return err
	}
	if reloader != nil && cfg.Catalog.ReloadInterval > 0 {
		jobs = append(jobs, sched.NewCatalogReloader(cfg.Catalog.ReloadInterval, reloader, logger).Run)
	}

	// ---- Subscription storage ----
	var (
		subs repository.SubscriptionRepository
		tx   repository.TransactionManager
	)
	if pool != nil {
		subs, tx = pg.NewSubscriptionRepo(pool), pg.NewTxManager(pool)
	} else {
		logger.Warn().Msg("database.url not set; subscriptions are kept in memory")
		subs, tx = memory.NewSubscriptionRepo(), memory.TxManager{}
	}
	var poolStats sched.PoolStatsFunc
	if pool != nil {
		poolStats = func() (int32, int32, int32) {
			st := pool.Stat()
			return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
		}
	}
	jobs = append(jobs, sched.NewStatsReporter(cfg.Scheduler.StatsInterval, subs, poolStats, logger).Run)

	// ---- Payment ----
	provider, err := buildGateway(cfg.Payment)
	if err != nil {
		return err
	}
	gateway := payment.NewGuardedGateway(provider, cfg.Payment.Breaker, logger)
	checks["payment"] = func(context.Context) error {
		if gateway.State() == gobreaker.StateOpen {
			return errors.New("circuit open")
		}
		return nil
	}

	// ---- Use case ----
	subscriptions := usecase.NewSubscriptionUseCase(planCatalog, subs, gateway, tx, logger,
		usecase.WithChargeTimeout(cfg.Payment.ChargeTimeout),
		usecase.WithPersistTimeout(cfg.Payment.PersistTimeout),
		usecase.WithDevMode(cfg.Runtime.Dev),
	)

	// ---- Workers ----
	workers := worker.NewPool(cfg.Workers.Concurrency, cfg.Workers.Queue, logger)
	// in-flight requests drain through the pool during HTTP shutdown
	workers.Start(context.WithoutCancel(ctx))
	defer workers.Stop()

	// ---- HTTP ----
	v1opts := []apiv1.Option{apiv1.WithRunner(workers)}
	if rc != nil {
		v1opts = append(v1opts,
			apiv1.WithIdempotency(red.NewIdempotencyStore(rc, cfg.Redis.IdempotencyTTL, cfg.IdempotencyLockTTL())),
			apiv1.WithRateLimit(red.NewRateLimiter(rc), cfg.Server.RateLimitPerMinute),
		)
	}
	v1 := apiv1.NewServer(subscriptions, subscriptions, logger, v1opts...)
	srv := api.NewServer(cfg.Server, api.NewRouter(v1, checks, cfg.Server.RequestTimeout, logger), logger)

	logger.Info().
		Int("port", cfg.Server.Port).
		Str("catalog", cfg.Catalog.Source).
		Str("provider", provider.Name()).
		Bool("postgres", pool != nil).
		Bool("redis", rc != nil).
		Str("version", version).
		Msg("starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	for _, job := range jobs {
		g.Go(func() error { return job(gctx) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// buildCatalog returns the plan lookup and, for file catalogs, the reloader.
func buildCatalog(cfg *config.Config, pool *pgxpool.Pool, rc red.RedisClient, logger *zerolog.Logger) (repository.PlanCatalog, sched.Reloader, error) {
	switch cfg.Catalog.Source {
	case "postgres":
		if pool == nil {
			return nil, nil, errors.New("catalog.source=postgres needs database.url")
		}
		var plans repository.PlanRepository = pg.NewPostgresPlanRepo(pool)
		if rc != nil {
			plans = pg.NewPlanRepoCacheDecorator(plans, rc, cfg.Redis.TTL, logger)
		}
		return plans, nil, nil
	default:
		fc, err := catalog.NewFileCatalog(cfg.Catalog.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog: %w", err)
		}
		return fc, fc, nil
	}
}

func buildGateway(cfg config.PaymentConfig) (adapter.PaymentGateway, error) {
	switch cfg.Provider {
	case "card":
		return payment.NewCardGateway(cfg.Card.BaseURL, cfg.Card.APIKey, cfg.Card.MerchantID)
	default:
		return payment.NewSandboxGateway(), nil
	}
}
