package adapter

import (
	"context"

	"subscription-service/internal/domain/model"
)

// PaymentGateway is the hex port for payment providers.
//
// Charge captures amount against the opaque payment token and returns the
// provider's transaction id. Failures are *domain.ChargeError values so the
// caller can branch on domain.ErrPaymentDeclined (never retry) versus
// domain.ErrPaymentProviderUnavailable (caller may retry with backoff).
// Implementations must honour ctx cancellation and deadlines.
type PaymentGateway interface {
	Name() string
	Charge(ctx context.Context, amount model.Money, paymentToken string) (transactionID string, err error)
}

type chargeKeyCtx struct{}

// WithChargeKey attaches the provider idempotency key for one charge attempt.
// The key must be minted by the server; client-supplied ids never qualify.
func WithChargeKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, chargeKeyCtx{}, key)
}

// ChargeKey returns the key set by WithChargeKey, or "".
func ChargeKey(ctx context.Context) string {
	k, _ := ctx.Value(chargeKeyCtx{}).(string)
	return k
}
