// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/adapter"
	"subscription-service/internal/domain/ports/repository"
	ucport "subscription-service/internal/domain/ports/usecase"
	"subscription-service/internal/infra/logging"
	"subscription-service/internal/infra/metrics"
)

var (
	_ ucport.SubscriptionCreator = (*SubscriptionUseCase)(nil)
	_ ucport.SubscriptionReader  = (*SubscriptionUseCase)(nil)
)

const (
	defaultChargeTimeout  = 30 * time.Second
	defaultPersistTimeout = 10 * time.Second
)

// SubscriptionUseCase runs the subscription creation pipeline:
// resolve plan -> quote -> charge -> persist. It stops at the first failing
// step; the charge is only attempted for an available plan and the record is
// only written after the charge succeeded.
type SubscriptionUseCase struct {
	catalog repository.PlanCatalog
	subs    repository.SubscriptionRepository
	gateway adapter.PaymentGateway
	tx      repository.TransactionManager
	pricing PricingCalculator
	log     *zerolog.Logger
	dev     bool

	chargeTimeout  time.Duration
	persistTimeout time.Duration
	now            func() time.Time
	newID          func() string
}

// Option tweaks a SubscriptionUseCase.
type Option func(*SubscriptionUseCase)

// WithChargeTimeout bounds the payment call. A charge that has not answered
// within d is reported as domain.ErrPaymentProviderUnavailable.
func WithChargeTimeout(d time.Duration) Option {
	return func(uc *SubscriptionUseCase) {
		if d > 0 {
			uc.chargeTimeout = d
		}
	}
}

// WithPersistTimeout bounds the post-charge write.
func WithPersistTimeout(d time.Duration) Option {
	return func(uc *SubscriptionUseCase) {
		if d > 0 {
			uc.persistTimeout = d
		}
	}
}

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(uc *SubscriptionUseCase) { uc.now = now }
}

// WithIDGenerator replaces the UUID generator (tests).
func WithIDGenerator(fn func() string) Option {
	return func(uc *SubscriptionUseCase) { uc.newID = fn }
}

// WithDevMode disables redaction of payment tokens in logs.
func WithDevMode(dev bool) Option {
	return func(uc *SubscriptionUseCase) { uc.dev = dev }
}

// NewSubscriptionUseCase constructs the pipeline. logger may be nil.
func NewSubscriptionUseCase(
	catalog repository.PlanCatalog,
	subs repository.SubscriptionRepository,
	gateway adapter.PaymentGateway,
	tx repository.TransactionManager,
	logger *zerolog.Logger,
	opts ...Option,
) *SubscriptionUseCase {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "SubscriptionUseCase").Logger()
	uc := &SubscriptionUseCase{
		catalog:        catalog,
		subs:           subs,
		gateway:        gateway,
		tx:             tx,
		log:            &l,
		chargeTimeout:  defaultChargeTimeout,
		persistTimeout: defaultPersistTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, o := range opts {
		o(uc)
	}
	return uc
}

// Create runs the pipeline for one request. Failures are *domain.StepError
// values wrapping one of domain.ErrPlanNotFound, domain.ErrPlanUnavailable,
// domain.ErrPaymentDeclined, domain.ErrPaymentProviderUnavailable or, after a
// captured charge, a *domain.PersistenceError carrying the transaction id.
func (uc *SubscriptionUseCase) Create(ctx context.Context, req model.SubscriptionRequest) (*model.Subscription, error) {
	ctx = logging.WithUserID(ctx, fmt.Sprintf("%d", req.UserID))
	l := logging.With(ctx, uc.log)
	defer logging.TraceDuration(l, "SubscriptionUseCase.Create")()
	start := time.Now()

	fail := func(step domain.Step, err error) (*model.Subscription, error) {
		kind := domain.Kind(err)
		metrics.IncSubscriptionFailure(string(step), kind)
		metrics.ObserveCreateDuration("failure", time.Since(start))
		l.Warn().Err(err).Str("step", string(step)).Str("kind", kind).Str("plan", req.PlanKey).Msg("subscription creation failed")
		return nil, &domain.StepError{Step: step, Err: err}
	}

	// 1. plan
	plan, err := uc.catalog.Resolve(ctx, req.PlanKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("%w: %s", domain.ErrPlanNotFound, req.PlanKey)
		}
		return fail(domain.StepResolvePlan, err)
	}
	if err := plan.Available(); err != nil {
		return fail(domain.StepResolvePlan, err)
	}

	// 2. price and period
	now := uc.now()
	quote, err := uc.pricing.Quote(plan, now)
	if err != nil {
		return fail(domain.StepQuote, err)
	}
	sub, err := model.NewPendingSubscription(uc.newID(), req.UserID, plan, quote, now)
	if err != nil {
		return fail(domain.StepQuote, err)
	}
	if len(req.Options) > 0 {
		sub.Metadata = map[string]any(model.Features(req.Options).Clone())
	}

	// 3. charge: the single blocking external call, bounded by chargeTimeout
	l.Debug().
		Str("plan", plan.Key).
		Str("amount", quote.Amount.String()).
		Str("token", logging.Redact(req.PaymentToken, uc.dev)).
		Msg("charging")
	// the subscription id is unique per attempt, so providers can dedupe retries of it
	txID, err := uc.charge(adapter.WithChargeKey(ctx, sub.ID), quote.Amount, req.PaymentToken)
	if err != nil {
		return fail(domain.StepCharge, err)
	}
	sub.Activate(uc.gateway.Name(), txID)

	// 4. persist. The customer has paid: finish the write even if the caller
	// has gone away.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.persistTimeout)
	defer cancel()
	err = uc.tx.WithTx(pctx, func(ctx context.Context, tx repository.Tx) error {
		return uc.subs.Create(ctx, tx, sub)
	})
	if err != nil {
		perr := &domain.PersistenceError{TransactionID: txID, Provider: sub.Provider, Err: err}
		metrics.IncReconciliationRequired(sub.Provider)
		l.Error().Err(err).
			Str("transaction_id", txID).
			Str("provider", sub.Provider).
			Str("plan", plan.Key).
			Str("subscription_id", sub.ID).
			Str("amount", quote.Amount.String()).
			Msg("charged without subscription record; reconciliation required")
		return fail(domain.StepPersist, perr)
	}

	metrics.IncSubscriptionCreated(plan.Key)
	metrics.ObserveCreateDuration("success", time.Since(start))
	l.Info().
		Str("subscription_id", sub.ID).
		Str("plan", plan.Key).
		Str("transaction_id", txID).
		Msg("subscription created")
	return sub, nil
}

// charge performs exactly one charge attempt. Anything that is not a clear
// success or decline (timeouts, cancellations, unknown errors, empty ids) is
// classified as provider unavailable.
func (uc *SubscriptionUseCase) charge(ctx context.Context, amount model.Money, token string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, uc.chargeTimeout)
	defer cancel()

	txID, err := uc.gateway.Charge(cctx, amount, token)
	if err != nil {
		var ce *domain.ChargeError
		if errors.As(err, &ce) {
			return "", err
		}
		return "", domain.Unavailable(uc.gateway.Name(), err)
	}
	if txID == "" {
		return "", domain.Unavailable(uc.gateway.Name(), errors.New("provider returned no transaction id"))
	}
	return txID, nil
}

// Get returns a stored subscription.
func (uc *SubscriptionUseCase) Get(ctx context.Context, id string) (*model.Subscription, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: subscription id %q", domain.ErrValidation, id)
	}
	return uc.subs.FindByID(ctx, repository.NoTX, id)
}

// FindByFeature lists subscriptions whose feature snapshot contains key=value.
func (uc *SubscriptionUseCase) FindByFeature(ctx context.Context, key string, value any) ([]*model.Subscription, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: feature key is required", domain.ErrValidation)
	}
	return uc.subs.FindByFeature(ctx, repository.NoTX, key, value)
}
