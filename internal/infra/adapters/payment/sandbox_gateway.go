package payment

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*SandboxGateway)(nil)

// Magic tokens understood by SandboxGateway.
const (
	SandboxTokenDecline     = "tok_decline"
	SandboxTokenUnavailable = "tok_unavailable"
)

// SandboxGateway is an in-memory gateway for local runs and tests. Every
// token captures except the two magic ones above.
type SandboxGateway struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	charges int
	totals  map[string]model.Money // currency -> captured total
	delay   time.Duration
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		entropy: ulid.Monotonic(rand.Reader, 0),
		totals:  make(map[string]model.Money),
	}
}

// WithLatency makes every charge wait d (or until ctx is done).
func (g *SandboxGateway) WithLatency(d time.Duration) *SandboxGateway {
	g.delay = d
	return g
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) Charge(ctx context.Context, amount model.Money, paymentToken string) (string, error) {
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", domain.Unavailable(g.Name(), ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return "", domain.Unavailable(g.Name(), err)
	}

	switch strings.TrimSpace(paymentToken) {
	case "":
		return "", domain.Declined(g.Name(), "missing_token", nil)
	case SandboxTokenDecline:
		return "", domain.Declined(g.Name(), "card_declined", nil)
	case SandboxTokenUnavailable:
		return "", domain.Unavailable(g.Name(), nil)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	cur, ok := g.totals[amount.Currency()]
	if !ok {
		cur = model.MustMoney(0, amount.Currency())
	}
	sum, err := cur.Add(amount)
	if err != nil {
		return "", domain.Unavailable(g.Name(), err)
	}
	g.totals[amount.Currency()] = sum
	g.charges++
	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return "sbx_" + strings.ToLower(id.String()), nil
}

// Charges is the number of captured charges.
func (g *SandboxGateway) Charges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges
}

// Captured returns the captured total for currency.
func (g *SandboxGateway) Captured(currency string) model.Money {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.totals[currency]; ok {
		return m
	}
	return model.MustMoney(0, currency)
}
