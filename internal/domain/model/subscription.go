package model

import (
	"time"

	"subscription-service/internal/domain"
)

type SubscriptionStatus string

const (
	// SubscriptionStatusPending is held only while the creation pipeline is in flight.
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusActive  SubscriptionStatus = "active"
)

// Subscription is a user's paid entitlement to a plan as it was sold.
type Subscription struct {
	ID            string // UUID
	UserID        int64
	PlanKey       string
	Status        SubscriptionStatus
	StartsAt      time.Time
	EndsAt        *time.Time // nil for non-expiring plans
	Features      Features   // snapshot of the plan's features at purchase time
	Price         Money
	Provider      string
	TransactionID string
	Metadata      map[string]any // request options, stored untouched
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPendingSubscription starts a subscription for plan. The feature set is
// deep-copied so later plan edits never reach the subscription.
func NewPendingSubscription(id string, userID int64, plan *Plan, q Quote, createdAt time.Time) (*Subscription, error) {
	if id == "" || userID <= 0 || plan == nil {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:        id,
		UserID:    userID,
		PlanKey:   plan.Key,
		Status:    SubscriptionStatusPending,
		StartsAt:  q.StartsAt,
		EndsAt:    q.EndsAt,
		Features:  plan.Features.Clone(),
		Price:     q.Amount,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// Activate records the captured charge and moves the subscription to active.
func (s *Subscription) Activate(provider, transactionID string) {
	s.Provider = provider
	s.TransactionID = transactionID
	s.Status = SubscriptionStatusActive
}

// Quote is the price and period computed for a new subscription.
type Quote struct {
	Amount   Money
	StartsAt time.Time
	EndsAt   *time.Time
}

// SubscriptionRequest is the validated input of the creation pipeline.
type SubscriptionRequest struct {
	UserID       int64
	PlanKey      string
	PaymentToken string
	Options      map[string]any // coupon, tax id, ...; passed through untouched
}
