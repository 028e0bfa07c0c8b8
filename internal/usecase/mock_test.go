//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// --- Plan catalog ---

type MockCatalog struct {
	mu    sync.Mutex
	plans map[string]*model.Plan
	calls int
}

func NewMockCatalog(plans ...*model.Plan) *MockCatalog {
	c := &MockCatalog{plans: map[string]*model.Plan{}}
	for _, p := range plans {
		c.plans[p.Key] = p
	}
	return c
}

// Resolve returns the live plan (no copy) so tests can prove the pipeline
// never shares the plan's feature map with the subscription.
func (m *MockCatalog) Resolve(ctx context.Context, key string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	p, ok := m.plans[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// --- Payment gateway ---

type MockGateway struct {
	mu       sync.Mutex
	ChargeFn func(ctx context.Context, amount model.Money, token string) (string, error)
	charges  []model.Money
}

func NewMockGateway() *MockGateway {
	return &MockGateway{ChargeFn: func(context.Context, model.Money, string) (string, error) {
		return "tx-ok", nil
	}}
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) Charge(ctx context.Context, amount model.Money, token string) (string, error) {
	m.mu.Lock()
	m.charges = append(m.charges, amount)
	fn := m.ChargeFn
	m.mu.Unlock()
	return fn(ctx, amount, token)
}

func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.charges)
}

// --- Subscription repository ---

type MockSubscriptionRepo struct {
	mu       sync.Mutex
	CreateFn func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	rows     map[string]*model.Subscription
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{rows: map[string]*model.Subscription{}}
}

func (m *MockSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.CreateFn != nil {
		if err := m.CreateFn(ctx, tx, s); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.ID] = s
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *MockSubscriptionRepo) FindByFeature(ctx context.Context, tx repository.Tx, key string, value any) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.rows {
		if s.Features.Contains(key, value) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.SubscriptionStatus]int{}
	for _, s := range m.rows {
		out[s.Status]++
	}
	return out, nil
}

func (m *MockSubscriptionRepo) Rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// --- Transactions ---

type MockTxManager struct {
	mu    sync.Mutex
	calls int
	// ctxErr records the context error seen when the transaction started.
	ctxErr error
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.calls++
	m.ctxErr = ctx.Err()
	m.mu.Unlock()
	return fn(ctx, nil)
}

// fixed clock
var testNow = time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }
