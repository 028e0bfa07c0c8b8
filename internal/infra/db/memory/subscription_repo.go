package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/repository"
)

var (
	_ repository.SubscriptionRepository = (*SubscriptionRepo)(nil)
	_ repository.TransactionManager     = (*TxManager)(nil)
)

// SubscriptionRepo keeps subscriptions in process memory. Stored values are
// copies, so callers cannot mutate what the repository holds.
type SubscriptionRepo struct {
	mu   sync.RWMutex
	subs map[string]*model.Subscription
	// (provider, transaction id) -> subscription id, one charge per record
	charges map[chargeRef]string
}

type chargeRef struct{ provider, txID string }

func NewSubscriptionRepo() *SubscriptionRepo {
	return &SubscriptionRepo{
		subs:    make(map[string]*model.Subscription),
		charges: make(map[chargeRef]string),
	}
}

func (r *SubscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if s == nil || s.ID == "" {
		return domain.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[s.ID]; ok {
		return fmt.Errorf("%w: subscription %s", domain.ErrAlreadyExists, s.ID)
	}
	ref := chargeRef{s.Provider, s.TransactionID}
	if s.TransactionID != "" {
		if other, ok := r.charges[ref]; ok {
			return fmt.Errorf("%w: transaction %s/%s already recorded by %s", domain.ErrAlreadyExists, s.Provider, s.TransactionID, other)
		}
		r.charges[ref] = s.ID
	}
	r.subs[s.ID] = clone(s)
	return nil
}

func (r *SubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(s), nil
}

func (r *SubscriptionRepo) FindByFeature(ctx context.Context, tx repository.Tx, key string, value any) ([]*model.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range r.subs {
		if s.Features.Contains(key, value) {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *SubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[model.SubscriptionStatus]int)
	for _, s := range r.subs {
		out[s.Status]++
	}
	return out, nil
}

// Len is the number of stored subscriptions.
func (r *SubscriptionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func clone(s *model.Subscription) *model.Subscription {
	cp := *s
	cp.Features = s.Features.Clone()
	if s.Metadata != nil {
		cp.Metadata = map[string]any(model.Features(s.Metadata).Clone())
	}
	if s.EndsAt != nil {
		t := *s.EndsAt
		cp.EndsAt = &t
	}
	return &cp
}

// TxManager runs fn directly; the in-memory store has no transactions.
type TxManager struct{}

func (TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}
