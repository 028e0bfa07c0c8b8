//go:build !integration

package postgres

import (
	"context"
	"time"

	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/repository"
	red "subscription-service/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPlanRepo mocks the database repository that the Plan decorator wraps.
type mockInnerPlanRepo struct {
	SaveFunc    func(ctx context.Context, tx repository.Tx, plan *model.Plan) error
	ResolveFunc func(ctx context.Context, key string) (*model.Plan, error)
	ListAllFunc func(ctx context.Context, tx repository.Tx) ([]*model.Plan, error)
}

func (m *mockInnerPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	return m.SaveFunc(ctx, tx, plan)
}
func (m *mockInnerPlanRepo) Resolve(ctx context.Context, key string) (*model.Plan, error) {
	return m.ResolveFunc(ctx, key)
}
func (m *mockInnerPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return m.ListAllFunc(ctx, tx)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc   func(ctx context.Context, key string) (string, error)
	SetFunc   func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNXFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	DelFunc   func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return m.SetNXFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, nil
}
func (m *mockRedisClient) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	return false, nil
}
func (m *mockRedisClient) Close() error { return nil }
