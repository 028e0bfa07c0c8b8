package usecase

import (
	"fmt"
	"time"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
)

// PricingCalculator derives the first-cycle charge and the subscription
// period from a plan. It has no state and no side effects.
type PricingCalculator struct{}

// Quote returns price = plan.Price, startsAt = now and endsAt = now + period
// (nil for non-expiring plans). No proration is applied.
func (PricingCalculator) Quote(plan *model.Plan, now time.Time) (model.Quote, error) {
	if plan == nil {
		return model.Quote{}, domain.ErrInvalidArgument
	}
	if plan.Price.IsZero() {
		return model.Quote{}, fmt.Errorf("%w: plan %s has no price", domain.ErrInvalidArgument, plan.Key)
	}
	q := model.Quote{Amount: plan.Price, StartsAt: now}
	if !plan.Period.IsZero() {
		ends := plan.Period.AddTo(now)
		q.EndsAt = &ends
	}
	return q, nil
}
