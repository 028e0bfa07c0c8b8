package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

const planColumns = `key, name, price_amount, price_currency, period, features, disabled, created_at`

// Save upserts a plan by key.
func (r *PostgresPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	features, err := marshalJSONB(plan.Features)
	if err != nil {
		return fmt.Errorf("%w: features: %v", domain.ErrInvalidArgument, err)
	}
	const sql = `
INSERT INTO plans (key, name, price_amount, price_currency, period, features, disabled, created_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
ON CONFLICT (key) DO UPDATE
  SET name           = EXCLUDED.name,
      price_amount   = EXCLUDED.price_amount,
      price_currency = EXCLUDED.price_currency,
      period         = EXCLUDED.period,
      features       = EXCLUDED.features,
      disabled       = EXCLUDED.disabled;
`
	_, err = ex.Exec(ctx, sql,
		plan.Key, plan.Name, plan.Price.Amount(), plan.Price.Currency(),
		plan.Period.String(), features, plan.Disabled, plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Save plan: %w", err)
	}
	return nil
}

func (r *PostgresPlanRepo) Resolve(ctx context.Context, planKey string) (*model.Plan, error) {
	const sql = `SELECT ` + planColumns + ` FROM plans WHERE key = $1;`
	p, err := scanPlan(r.pool.QueryRow(ctx, sql, planKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("Resolve plan: %w", err)
	}
	return p, nil
}

func (r *PostgresPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT `+planColumns+` FROM plans ORDER BY key;`)
	if err != nil {
		return nil, fmt.Errorf("ListAll plans: %w", err)
	}
	defer rows.Close()
	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	var (
		p        model.Plan
		amount   int64
		currency string
		period   string
		features []byte
	)
	if err := row.Scan(&p.Key, &p.Name, &amount, &currency, &period, &features, &p.Disabled, &p.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = model.NewMoney(amount, currency); err != nil {
		return nil, fmt.Errorf("%w: plan %s price: %v", domain.ErrReadDatabaseRow, p.Key, err)
	}
	if p.Period, err = model.ParseBillingPeriod(period); err != nil {
		return nil, fmt.Errorf("%w: plan %s: %v", domain.ErrReadDatabaseRow, p.Key, err)
	}
	if err := unmarshalJSONB(features, &p.Features); err != nil {
		return nil, err
	}
	return &p, nil
}
