//go:build !integration

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/repository"
)

func sub(id string, created time.Time, f model.Features) *model.Subscription {
	return &model.Subscription{
		ID:        id,
		UserID:    1,
		PlanKey:   "p",
		Status:    model.SubscriptionStatusActive,
		Features:  f,
		Price:     model.MustMoney(100, "USD"),
		CreatedAt: created,
	}
}

func TestSubscriptionRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepo()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := sub("a", t0.Add(time.Minute), model.Features{"tier": "pro", "seats": 5})
	b := sub("b", t0, model.Features{"tier": "pro", "seats": 1})
	c := sub("c", t0, model.Features{"tier": "basic"})
	for _, s := range []*model.Subscription{a, b, c} {
		require.NoError(t, repo.Create(ctx, nil, s))
	}

	t.Run("duplicate id", func(t *testing.T) {
		err := repo.Create(ctx, nil, sub("a", t0, nil))
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
		assert.Equal(t, 3, repo.Len())
	})

	t.Run("duplicate provider transaction", func(t *testing.T) {
		r := NewSubscriptionRepo()
		first := sub("x1", t0, nil)
		first.Provider, first.TransactionID = "card", "ch_1"
		require.NoError(t, r.Create(ctx, nil, first))

		second := sub("x2", t0, nil)
		second.Provider, second.TransactionID = "card", "ch_1"
		assert.ErrorIs(t, r.Create(ctx, nil, second), domain.ErrAlreadyExists)
		assert.Equal(t, 1, r.Len())

		other := sub("x3", t0, nil)
		other.Provider, other.TransactionID = "sandbox", "ch_1"
		assert.NoError(t, r.Create(ctx, nil, other), "same id at another provider is a different charge")
	})

	t.Run("stored copy is isolated", func(t *testing.T) {
		a.Features["tier"] = "hacked"
		got, err := repo.FindByID(ctx, nil, "a")
		require.NoError(t, err)
		assert.Equal(t, "pro", got.Features["tier"])

		got.Features["tier"] = "hacked"
		again, _ := repo.FindByID(ctx, nil, "a")
		assert.Equal(t, "pro", again.Features["tier"])
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, nil, "zzz")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("find by feature is ordered", func(t *testing.T) {
		got, err := repo.FindByFeature(ctx, nil, "tier", "pro")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "b", got[0].ID)
		assert.Equal(t, "a", got[1].ID)

		got, _ = repo.FindByFeature(ctx, nil, "seats", 5.0)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].ID)
	})

	t.Run("find by nested feature subset", func(t *testing.T) {
		r := NewSubscriptionRepo()
		require.NoError(t, r.Create(ctx, nil, sub("n", t0, model.Features{"limits": map[string]any{"a": 1, "b": 2}})))

		got, err := r.FindByFeature(ctx, nil, "limits", map[string]any{"a": 1})
		require.NoError(t, err)
		assert.Len(t, got, 1, "matches like jsonb @>")

		got, _ = r.FindByFeature(ctx, nil, "limits", map[string]any{"a": 2})
		assert.Empty(t, got)
	})

	t.Run("count by status", func(t *testing.T) {
		counts, err := repo.CountByStatus(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, counts[model.SubscriptionStatusActive])
	})
}

func TestTxManager(t *testing.T) {
	called := false
	err := TxManager{}.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		called = true
		assert.Nil(t, tx)
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}
