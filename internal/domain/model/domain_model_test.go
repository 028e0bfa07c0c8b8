//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"subscription-service/internal/domain"
)

// --- Plan Model Tests ---

func TestNewPlan(t *testing.T) {
	t.Run("should create a new plan successfully", func(t *testing.T) {
		plan, err := NewPlan("basic_monthly", "Basic", MustMoney(1000, "USD"), BillingPeriod{Months: 1}, Features{"seats": 1})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if plan.Name != "Basic" {
			t.Errorf("expected plan name to be 'Basic', but got %s", plan.Name)
		}
		if !plan.Price.Equals(MustMoney(1000, "USD")) {
			t.Errorf("expected price 1000 USD, got %s", plan.Price)
		}
		if err := plan.Available(); err != nil {
			t.Errorf("expected new plan to be available, got %v", err)
		}
	})

	t.Run("should default the name to the key", func(t *testing.T) {
		plan, err := NewPlan("pro", "", MustMoney(1, "USD"), BillingPeriod{}, nil)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if plan.Name != "pro" {
			t.Errorf("expected name 'pro', got %q", plan.Name)
		}
	})

	t.Run("should fail with invalid arguments", func(t *testing.T) {
		testCases := []struct {
			name   string
			key    string
			price  Money
			period BillingPeriod
		}{
			{"empty key", "", MustMoney(1000, "USD"), BillingPeriod{Months: 1}},
			{"zero price", "pro", Money{}, BillingPeriod{Months: 1}},
			{"negative period", "pro", MustMoney(1000, "USD"), BillingPeriod{Days: -1}},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				plan, err := NewPlan(tc.key, "Pro", tc.price, tc.period, nil)
				if plan != nil {
					t.Errorf("expected plan to be nil on error, but it was not")
				}
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Errorf("expected error to be ErrInvalidArgument, but got %v", err)
				}
			})
		}
	})

	t.Run("disabled plans report unavailable", func(t *testing.T) {
		plan, _ := NewPlan("legacy", "", MustMoney(500, "EUR"), BillingPeriod{Years: 1}, nil)
		plan.Disabled = true
		if err := plan.Available(); !errors.Is(err, domain.ErrPlanUnavailable) {
			t.Errorf("expected ErrPlanUnavailable, got %v", err)
		}
	})
}

// --- BillingPeriod Tests ---

func TestParseBillingPeriod(t *testing.T) {
	cases := []struct {
		in   string
		want BillingPeriod
	}{
		{"monthly", BillingPeriod{Months: 1}},
		{"Yearly", BillingPeriod{Years: 1}},
		{"weekly", BillingPeriod{Days: 7}},
		{"lifetime", BillingPeriod{}},
		{"P1M", BillingPeriod{Months: 1}},
		{"P1Y6M", BillingPeriod{Years: 1, Months: 6}},
		{"P2W", BillingPeriod{Days: 14}},
		{"p30d", BillingPeriod{Days: 30}},
	}
	for _, tc := range cases {
		got, err := ParseBillingPeriod(tc.in)
		if err != nil {
			t.Errorf("ParseBillingPeriod(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseBillingPeriod(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}

	invalid := []string{
		"P", "PM", "P1X", "P12", "fortnightly",
		"", "  ", "P0M", "P0Y0D",
		"P99999999999999999999M", "P10001Y",
	}
	for _, bad := range invalid {
		if _, err := ParseBillingPeriod(bad); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("ParseBillingPeriod(%q) expected ErrInvalidArgument, got %v", bad, err)
		}
	}
}

func TestBillingPeriod_AddTo(t *testing.T) {
	start := time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)
	got := BillingPeriod{Months: 1}.AddTo(start)
	want := time.Date(2026, time.February, 15, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if s := (BillingPeriod{Years: 1, Months: 2}).String(); s != "P1Y2M" {
		t.Errorf("expected P1Y2M, got %s", s)
	}
	if s := (BillingPeriod{}).String(); s != "lifetime" {
		t.Errorf("expected lifetime, got %s", s)
	}
}

// --- Features Tests ---

func TestFeatures_Clone(t *testing.T) {
	src := Features{
		"api": map[string]any{"rate_limit": 100, "regions": []any{"eu", "us"}},
		"sso": true,
	}
	cp := src.Clone()

	src["sso"] = false
	src["api"].(map[string]any)["rate_limit"] = 5
	src["api"].(map[string]any)["regions"].([]any)[0] = "apac"

	if cp["sso"] != true {
		t.Error("top-level edit leaked into clone")
	}
	api := cp["api"].(map[string]any)
	if api["rate_limit"] != 100 {
		t.Errorf("nested map edit leaked into clone: %v", api["rate_limit"])
	}
	if api["regions"].([]any)[0] != "eu" {
		t.Errorf("nested slice edit leaked into clone: %v", api["regions"])
	}
}

func TestFeatures_Contains(t *testing.T) {
	f := Features{"seats": 5, "tier": "gold", "limits": map[string]any{"a": 1}}
	if !f.Contains("seats", 5.0) {
		t.Error("expected numeric values to compare by JSON encoding")
	}
	if !f.Contains("tier", "gold") {
		t.Error("expected tier=gold to match")
	}
	if !f.Contains("limits", map[string]any{"a": 1}) {
		t.Error("expected nested object to match")
	}
	if f.Contains("tier", "silver") || f.Contains("missing", nil) {
		t.Error("unexpected match")
	}
}

func TestFeatures_ContainsNestedSubset(t *testing.T) {
	f := Features{
		"limits":  map[string]any{"a": 1, "b": map[string]any{"c": 2, "d": 3}},
		"regions": []any{"eu", "us", map[string]any{"id": "ap", "zone": 1}},
	}
	cases := []struct {
		name  string
		key   string
		value any
		want  bool
	}{
		{"object subset", "limits", map[string]any{"a": 1}, true},
		{"deep object subset", "limits", map[string]any{"b": map[string]any{"d": 3}}, true},
		{"empty object", "limits", map[string]any{}, true},
		{"object value differs", "limits", map[string]any{"a": 2}, false},
		{"object extra key", "limits", map[string]any{"z": 1}, false},
		{"array subset", "regions", []any{"us"}, true},
		{"array element subset", "regions", []any{map[string]any{"id": "ap"}}, true},
		{"array missing element", "regions", []any{"eu", "sa"}, false},
		{"scalar against array", "regions", "eu", false},
		{"array against object", "limits", []any{"a"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.Contains(tc.key, tc.value); got != tc.want {
				t.Errorf("Contains(%q, %v) = %v, want %v", tc.key, tc.value, got, tc.want)
			}
		})
	}
}

// --- Subscription Tests ---

func TestNewPendingSubscription(t *testing.T) {
	plan, _ := NewPlan("basic_monthly", "", MustMoney(1000, "USD"), BillingPeriod{Months: 1}, Features{"seats": 1})
	now := time.Now()
	ends := plan.Period.AddTo(now)
	q := Quote{Amount: plan.Price, StartsAt: now, EndsAt: &ends}

	s, err := NewPendingSubscription("sub-1", 42, plan, q, now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.Status != SubscriptionStatusPending {
		t.Errorf("expected pending, got %s", s.Status)
	}
	plan.Features["seats"] = 99
	if s.Features["seats"] != 1 {
		t.Error("expected feature snapshot to be isolated from the plan")
	}

	s.Activate("sandbox", "tx-1")
	if s.Status != SubscriptionStatusActive || s.TransactionID != "tx-1" {
		t.Errorf("unexpected state after Activate: %+v", s)
	}

	if _, err := NewPendingSubscription("sub-2", 0, plan, q, now); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for user id 0, got %v", err)
	}
}
