package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/repository"
	"subscription-service/internal/infra/metrics"
	red "subscription-service/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

const planListKey = "plans:all"

type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

// NewPlanRepoCacheDecorator caches Resolve and ListAll in Redis. A cache
// outage degrades to the inner repository.
func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PlanRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "planRepoCache").Logger()
	return &planRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func planKey(key string) string { return fmt.Sprintf("plan:%s", key) }

func (d *planRepoCacheDecorator) Resolve(ctx context.Context, key string) (*model.Plan, error) {
	ck := planKey(key)
	val, err := d.cache.Get(ctx, ck)
	if err == nil {
		var plan model.Plan
		if json.Unmarshal([]byte(val), &plan) == nil {
			metrics.IncCacheRequest("plan", "hit")
			return &plan, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Str("key", ck).Msg("plan cache read failed")
	}

	metrics.IncCacheRequest("plan", "miss")
	plan, err := d.inner.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(plan); err == nil {
		if err := d.cache.Set(ctx, ck, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", ck).Msg("plan cache write failed")
		}
	}
	return plan, nil
}

// Save invalidates the plan and the list before writing.
func (d *planRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	if err := d.cache.Del(ctx, planKey(plan.Key), planListKey); err != nil {
		d.log.Warn().Err(err).Str("plan", plan.Key).Msg("plan cache invalidation failed")
	}
	return d.inner.Save(ctx, tx, plan)
}

func (d *planRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	val, err := d.cache.Get(ctx, planListKey)
	if err == nil {
		var plans []*model.Plan
		if json.Unmarshal([]byte(val), &plans) == nil {
			metrics.IncCacheRequest("plan_list", "hit")
			return plans, nil
		}
	}

	metrics.IncCacheRequest("plan_list", "miss")
	plans, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		if b, err := json.Marshal(plans); err == nil {
			_ = d.cache.Set(ctx, planListKey, b, d.ttl)
		}
	}
	return plans, nil
}
