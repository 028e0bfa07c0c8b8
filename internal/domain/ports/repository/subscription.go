package repository

import (
	"context"

	"subscription-service/internal/domain/model"
)

// SubscriptionRepository is the port for user subscriptions. It is the only
// component allowed to mutate durable subscription state.
type SubscriptionRepository interface {
	// Create inserts a new subscription; an existing id yields domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	// FindByFeature returns subscriptions whose feature snapshot contains key=value.
	FindByFeature(ctx context.Context, tx Tx, key string, value any) ([]*model.Subscription, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
