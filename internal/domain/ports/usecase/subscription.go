package usecase

import (
	"context"

	"subscription-service/internal/domain/model"
)

// SubscriptionCreator is what the request boundary needs from the creation pipeline.
type SubscriptionCreator interface {
	Create(ctx context.Context, req model.SubscriptionRequest) (*model.Subscription, error)
}

// SubscriptionReader serves stored subscriptions.
type SubscriptionReader interface {
	Get(ctx context.Context, id string) (*model.Subscription, error)
	FindByFeature(ctx context.Context, key string, value any) ([]*model.Subscription, error)
}
