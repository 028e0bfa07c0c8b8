package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"subscription-service/internal/domain"
)

// BillingPeriod is a calendar duration. The zero period means the plan never expires.
type BillingPeriod struct {
	Years  int
	Months int
	Days   int
}

// IsZero reports a non-expiring (lifetime) period.
func (p BillingPeriod) IsZero() bool { return p.Years == 0 && p.Months == 0 && p.Days == 0 }

// AddTo returns t advanced by the period using calendar arithmetic.
func (p BillingPeriod) AddTo(t time.Time) time.Time { return t.AddDate(p.Years, p.Months, p.Days) }

// String renders the period in ISO-8601 form (P1M, P1Y, P14D); lifetime renders as "lifetime".
func (p BillingPeriod) String() string {
	if p.IsZero() {
		return "lifetime"
	}
	var b strings.Builder
	b.WriteByte('P')
	if p.Years != 0 {
		b.WriteString(strconv.Itoa(p.Years) + "Y")
	}
	if p.Months != 0 {
		b.WriteString(strconv.Itoa(p.Months) + "M")
	}
	if p.Days != 0 {
		b.WriteString(strconv.Itoa(p.Days) + "D")
	}
	return b.String()
}

// ParseBillingPeriod accepts the aliases daily|weekly|monthly|quarterly|yearly|lifetime
// or an ISO-8601 date duration such as P1M, P1Y6M or P2W. A non-expiring plan
// must say so with "lifetime"; an empty or all-zero period is rejected.
func ParseBillingPeriod(s string) (BillingPeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lifetime", "never":
		return BillingPeriod{}, nil
	case "daily", "day":
		return BillingPeriod{Days: 1}, nil
	case "weekly", "week":
		return BillingPeriod{Days: 7}, nil
	case "monthly", "month":
		return BillingPeriod{Months: 1}, nil
	case "quarterly", "quarter":
		return BillingPeriod{Months: 3}, nil
	case "yearly", "annual", "year":
		return BillingPeriod{Years: 1}, nil
	}

	invalid := fmt.Errorf("%w: billing period %q", domain.ErrInvalidArgument, s)
	v := strings.ToUpper(strings.TrimSpace(s))
	if len(v) < 3 || v[0] != 'P' {
		return BillingPeriod{}, invalid
	}
	var p BillingPeriod
	num := ""
	for _, r := range v[1:] {
		if r >= '0' && r <= '9' {
			num += string(r)
			continue
		}
		if num == "" {
			return BillingPeriod{}, invalid
		}
		n, err := strconv.Atoi(num)
		if err != nil || n > maxPeriodUnits {
			return BillingPeriod{}, fmt.Errorf("%w: billing period %q out of range", domain.ErrInvalidArgument, s)
		}
		switch r {
		case 'Y':
			p.Years += n
		case 'M':
			p.Months += n
		case 'W':
			p.Days += 7 * n
		case 'D':
			p.Days += n
		default:
			return BillingPeriod{}, invalid
		}
		num = ""
	}
	if num != "" || p.IsZero() {
		return BillingPeriod{}, invalid
	}
	return p, nil
}

// maxPeriodUnits caps each component so AddTo stays well inside time.Time.
const maxPeriodUnits = 10000

// Plan is a priced subscription offering. Plans are owned by the catalog and
// never mutated by the creation pipeline.
type Plan struct {
	Key       string
	Name      string
	Price     Money
	Period    BillingPeriod
	Features  Features
	Disabled  bool
	CreatedAt time.Time
}

// NewPlan validates and constructs a plan.
func NewPlan(key, name string, price Money, period BillingPeriod, features Features) (*Plan, error) {
	if strings.TrimSpace(key) == "" || price.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if period.Years < 0 || period.Months < 0 || period.Days < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if name == "" {
		name = key
	}
	return &Plan{
		Key:       key,
		Name:      name,
		Price:     price,
		Period:    period,
		Features:  features.Clone(),
		CreatedAt: time.Now(),
	}, nil
}

// Available returns ErrPlanUnavailable for administratively disabled plans.
func (p *Plan) Available() error {
	if p.Disabled {
		return fmt.Errorf("%w: %s", domain.ErrPlanUnavailable, p.Key)
	}
	return nil
}

// Clone returns a copy whose feature set shares nothing with p.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Features = p.Features.Clone()
	return &cp
}
