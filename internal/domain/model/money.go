package model

import (
	"encoding/json"
	"fmt"
	"math"

	"subscription-service/internal/domain"
)

// Money is an amount in minor currency units (cents for USD) tagged with an
// ISO-4217 style currency code. Values are immutable; arithmetic returns new values.
type Money struct {
	amount   int64
	currency string
}

// NewMoney validates and constructs a Money value.
func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, fmt.Errorf("%w: %d", domain.ErrNegativeAmount, amount)
	}
	if !validCurrency(currency) {
		return Money{}, fmt.Errorf("%w: currency %q", domain.ErrInvalidArgument, currency)
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustMoney is NewMoney for literals in tests and fixtures.
func MustMoney(amount int64, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func validCurrency(c string) bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

func (m Money) Amount() int64    { return m.amount }
func (m Money) Currency() string { return m.currency }

// IsZero reports whether m is the zero value (no currency set).
func (m Money) IsZero() bool { return m.currency == "" }

// Add returns m+o. Both values must share a currency.
func (m Money) Add(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, fmt.Errorf("%w: %s + %s", domain.ErrCurrencyMismatch, m.currency, o.currency)
	}
	if o.amount > math.MaxInt64-m.amount {
		return Money{}, fmt.Errorf("%w: amount overflow", domain.ErrInvalidArgument)
	}
	return Money{amount: m.amount + o.amount, currency: m.currency}, nil
}

// Subtract returns m-o. The result may not be negative.
func (m Money) Subtract(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, fmt.Errorf("%w: %s - %s", domain.ErrCurrencyMismatch, m.currency, o.currency)
	}
	if o.amount > m.amount {
		return Money{}, fmt.Errorf("%w: %d - %d", domain.ErrNegativeAmount, m.amount, o.amount)
	}
	return Money{amount: m.amount - o.amount, currency: m.currency}, nil
}

func (m Money) Equals(o Money) bool {
	return m.amount == o.amount && m.currency == o.currency
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.amount, m.currency)
}

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := NewMoney(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
