package payment

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"subscription-service/internal/config"
	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/adapter"
	"subscription-service/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*GuardedGateway)(nil)

// GuardedGateway wraps a PaymentGateway with a circuit breaker and charge
// metrics. Declines are business outcomes and never trip the breaker.
type GuardedGateway struct {
	next    adapter.PaymentGateway
	breaker *gobreaker.CircuitBreaker[string]
	log     *zerolog.Logger
}

func NewGuardedGateway(next adapter.PaymentGateway, cfg config.BreakerConfig, logger *zerolog.Logger) *GuardedGateway {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "GuardedGateway").Str("provider", next.Name()).Logger()
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, int(to))
			l.Warn().Str("from", from.String()).Str("to", to.String()).Msg("payment breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrPaymentDeclined)
		},
	}
	metrics.SetBreakerState(next.Name(), int(gobreaker.StateClosed))
	return &GuardedGateway{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[string](settings),
		log:     &l,
	}
}

func (g *GuardedGateway) Name() string { return g.next.Name() }

func (g *GuardedGateway) Charge(ctx context.Context, amount model.Money, paymentToken string) (string, error) {
	start := time.Now()
	txID, err := g.breaker.Execute(func() (string, error) {
		return g.next.Charge(ctx, amount, paymentToken)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = domain.Unavailable(g.Name(), err)
	}

	result := "succeeded"
	switch {
	case errors.Is(err, domain.ErrPaymentDeclined):
		result = "declined"
	case err != nil:
		result = "unavailable"
	default:
		metrics.AddPaymentRevenue(amount.Currency(), amount.Amount())
	}
	metrics.ObserveCharge(g.Name(), result, time.Since(start))
	return txID, err
}

// State reports the breaker state (closed, half-open, open).
func (g *GuardedGateway) State() gobreaker.State { return g.breaker.State() }
