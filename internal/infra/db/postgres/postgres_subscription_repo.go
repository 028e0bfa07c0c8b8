package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, plan_key, status, starts_at, ends_at, features,
  price_amount, price_currency, provider, transaction_id, metadata, created_at, updated_at`

func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	features, err := marshalJSONB(s.Features)
	if err != nil {
		return fmt.Errorf("%w: features: %v", domain.ErrInvalidArgument, err)
	}
	meta, err := marshalJSONB(s.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", domain.ErrInvalidArgument, err)
	}

	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8,$9,$10,$11,$12::jsonb,$13,$14);`

	_, err = ex.Exec(ctx, q,
		s.ID, s.UserID, s.PlanKey, string(s.Status), s.StartsAt, s.EndsAt, features,
		s.Price.Amount(), s.Price.Currency(), s.Provider, s.TransactionID, meta,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: subscription %s", domain.ErrAlreadyExists, s.ID)
		}
		return fmt.Errorf("%w: insert subscription: %v", domain.ErrOperationFailed, err)
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1;`
	s, err := scanSubscription(ex.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// FindByFeature uses JSONB containment so the GIN index on features applies.
func (r *subscriptionRepo) FindByFeature(ctx context.Context, tx repository.Tx, key string, value any) ([]*model.Subscription, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	probe, err := json.Marshal(map[string]any{key: value})
	if err != nil {
		return nil, fmt.Errorf("%w: feature value: %v", domain.ErrInvalidArgument, err)
	}
	q := `SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE features @> $1::jsonb
 ORDER BY created_at, id;`
	rows, err := ex.Query(ctx, q, probe)
	if err != nil {
		return nil, fmt.Errorf("%w: find by feature: %v", domain.ErrOperationFailed, err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return out, nil
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`)
	if err != nil {
		return nil, fmt.Errorf("%w: count subscriptions: %v", domain.ErrOperationFailed, err)
	}
	defer rows.Close()

	out := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out[model.SubscriptionStatus(status)] = n
	}
	return out, rows.Err()
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var (
		s        model.Subscription
		status   string
		endsAt   *time.Time
		features []byte
		meta     []byte
		amount   int64
		currency string
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.PlanKey, &status, &s.StartsAt, &endsAt, &features,
		&amount, &currency, &s.Provider, &s.TransactionID, &meta,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	s.Status = model.SubscriptionStatus(status)
	s.EndsAt = endsAt
	if s.Price, err = model.NewMoney(amount, currency); err != nil {
		return nil, fmt.Errorf("%w: price: %v", domain.ErrReadDatabaseRow, err)
	}
	if err := unmarshalJSONB(features, &s.Features); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(meta, &s.Metadata); err != nil {
		return nil, err
	}
	return &s, nil
}

func marshalJSONB(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte("{}"), nil
	}
	return b, nil
}

func unmarshalJSONB[T any](b []byte, dst *T) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: jsonb: %v", domain.ErrReadDatabaseRow, err)
	}
	return nil
}
