package apiv1

import (
	"fmt"
	"strings"
	"time"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
)

// CreateSubscriptionRequest is the body of POST /api/v1/subscriptions.
type CreateSubscriptionRequest struct {
	UserID          *int64         `json:"userId"`
	PlanKey         string         `json:"planKey"`
	PaymentMethodID string         `json:"paymentMethodId"`
	Options         map[string]any `json:"options,omitempty"`
}

// Validate checks presence and shape only. Plan existence is the pipeline's job.
func (r CreateSubscriptionRequest) Validate() error {
	var problems []string
	if r.UserID == nil {
		problems = append(problems, "userId is required")
	} else if *r.UserID <= 0 {
		problems = append(problems, "userId must be a positive integer")
	}
	if strings.TrimSpace(r.PlanKey) == "" {
		problems = append(problems, "planKey is required")
	}
	if strings.TrimSpace(r.PaymentMethodID) == "" {
		problems = append(problems, "paymentMethodId is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (r CreateSubscriptionRequest) toModel() model.SubscriptionRequest {
	return model.SubscriptionRequest{
		UserID:       *r.UserID,
		PlanKey:      strings.TrimSpace(r.PlanKey),
		PaymentToken: r.PaymentMethodID,
		Options:      r.Options,
	}
}

type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Subscription struct {
	ID            string         `json:"id"`
	UserID        int64          `json:"userId"`
	PlanKey       string         `json:"planKey"`
	Status        string         `json:"status"`
	StartsAt      time.Time      `json:"startsAt"`
	EndsAt        *time.Time     `json:"endsAt"`
	Price         Price          `json:"price"`
	Features      map[string]any `json:"features"`
	Provider      string         `json:"provider,omitempty"`
	TransactionID string         `json:"transactionId,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func toSubscription(s *model.Subscription) Subscription {
	return Subscription{
		ID:            s.ID,
		UserID:        s.UserID,
		PlanKey:       s.PlanKey,
		Status:        string(s.Status),
		StartsAt:      s.StartsAt.UTC(),
		EndsAt:        utcPtr(s.EndsAt),
		Price:         Price{Amount: s.Price.Amount(), Currency: s.Price.Currency()},
		Features:      s.Features,
		Provider:      s.Provider,
		TransactionID: s.TransactionID,
		CreatedAt:     s.CreatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type ListResponse struct {
	Items []Subscription `json:"items"`
}

type Error struct {
	Kind          string `json:"kind"`
	Step          string `json:"step,omitempty"`
	Message       string `json:"message"`
	TransactionID string `json:"transactionId,omitempty"`
}

type ErrorResponse struct {
	Error Error `json:"error"`
}
