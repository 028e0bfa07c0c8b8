package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"subscription-service/internal/domain/ports/repository"
	"subscription-service/internal/infra/catalog"
	pg "subscription-service/internal/infra/db/postgres"
	red "subscription-service/internal/infra/redis"
)

const migrateLockKey = "lock:migrate"

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and seed plans from the catalog file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runMigrate(ctx, opts, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", true, "upsert plans from catalog.path into the plans table")
	return cmd
}

func runMigrate(ctx context.Context, opts *rootOptions, seed bool) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required for migrate")
	}

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	// Several replicas may start at once; only one applies the schema.
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		locker := red.NewLocker(rc, 100)
		token, err := locker.TryLock(ctx, migrateLockKey, time.Minute)
		if err != nil {
			return fmt.Errorf("migrate lock: %w", err)
		}
		defer func() { _ = locker.Unlock(context.WithoutCancel(ctx), migrateLockKey, token) }()
	}

	if err := pg.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info().Msg("schema applied")
	if !seed {
		return nil
	}

	path := cfg.Catalog.Path
	if _, err := os.Stat(path); err != nil {
		logger.Warn().Str("path", path).Msg("catalog file not found; seeding built-in plans")
		path = ""
	}
	file, err := catalog.NewFileCatalog(path, logger)
	if err != nil {
		return fmt.Errorf("load seed catalog: %w", err)
	}
	plans := pg.NewPostgresPlanRepo(pool)
	tx := pg.NewTxManager(pool)
	err = tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, p := range file.ListAll(ctx) {
			if err := plans.Save(ctx, tx, p); err != nil {
				return fmt.Errorf("seed plan %s: %w", p.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info().Int("plans", len(file.ListAll(ctx))).Msg("plans seeded")
	return nil
}
