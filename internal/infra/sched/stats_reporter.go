package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/repository"
	"subscription-service/internal/infra/metrics"
)

// PoolStatsFunc reports connection pool usage (total, idle, in use).
type PoolStatsFunc func() (total, idle, inUse int32)

// StatsReporter publishes gauges that are cheaper to sample than to track:
// subscriptions by status and database pool usage.
type StatsReporter struct {
	interval  time.Duration
	subs      repository.SubscriptionRepository
	poolStats PoolStatsFunc
	log       *zerolog.Logger
}

func NewStatsReporter(interval time.Duration, subs repository.SubscriptionRepository, poolStats PoolStatsFunc, logger *zerolog.Logger) *StatsReporter {
	l := logger.With().Str("component", "StatsReporter").Logger()
	return &StatsReporter{interval: interval, subs: subs, poolStats: poolStats, log: &l}
}

func (w *StatsReporter) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting stats reporter")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.report(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stats reporter")
			return ctx.Err()
		case <-ticker.C:
			w.report(ctx)
		}
	}
}

func (w *StatsReporter) report(ctx context.Context) {
	counts, err := w.subs.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		w.log.Error().Err(err).Msg("count subscriptions failed")
	} else {
		if _, ok := counts[model.SubscriptionStatusActive]; !ok {
			counts[model.SubscriptionStatusActive] = 0
		}
		metrics.SetSubscriptionsTotal(counts)
	}
	if w.poolStats != nil {
		metrics.SetDBPoolStats(w.poolStats())
	}
}
