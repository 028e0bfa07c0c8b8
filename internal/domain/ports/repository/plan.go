package repository

import (
	"context"

	"subscription-service/internal/domain/model"
)

// PlanCatalog is the read-only lookup the creation pipeline needs.
// Resolve fails with domain.ErrNotFound for unknown keys. Disabled plans are
// returned as is; the caller checks Plan.Available.
type PlanCatalog interface {
	Resolve(ctx context.Context, planKey string) (*model.Plan, error)
}

// PlanRepository is the storage-backed catalog (Postgres).
type PlanRepository interface {
	PlanCatalog
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	ListAll(ctx context.Context, tx Tx) ([]*model.Plan, error)
}
