//go:build !integration

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"subscription-service/internal/infra/api/apiv1"
	"subscription-service/internal/infra/logging"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func TestRouter_Health(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		r := NewRouter(apiv1.NewServer(nil, nil, nil), map[string]Pinger{
			"db": func(context.Context) error { return nil },
		}, time.Second, newLogger())

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
		if rec.Header().Get(requestIDHeader) == "" {
			t.Error("expected a request id header")
		}
	})

	t.Run("failing dependency -> 503", func(t *testing.T) {
		r := NewRouter(apiv1.NewServer(nil, nil, nil), map[string]Pinger{
			"redis": func(context.Context) error { return errors.New("down") },
		}, time.Second, newLogger())

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("want 503, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "down") {
			t.Errorf("body should name the failure: %s", rec.Body.String())
		}
	})
}

func TestRouter_Metrics(t *testing.T) {
	r := NewRouter(apiv1.NewServer(nil, nil, nil), nil, time.Second, newLogger())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}

func TestRouter_CreateNotWired(t *testing.T) {
	r := NewRouter(apiv1.NewServer(nil, nil, nil), nil, time.Second, newLogger())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(`{}`)))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("want 501, got %d", rec.Code)
	}
}

func TestGuards(t *testing.T) {
	var seenTrace string
	var hasDeadline bool
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTrace = logging.TraceID(r.Context())
		_, hasDeadline = r.Context().Deadline()
		panic("boom")
	}), TraceID(), Recover(newLogger()), Timeout(time.Second))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("want 500 after panic, got %d", rec.Code)
	}
	if seenTrace != "abc-123" || rec.Header().Get(requestIDHeader) != "abc-123" {
		t.Errorf("inbound request id not propagated: ctx=%q header=%q", seenTrace, rec.Header().Get(requestIDHeader))
	}
	if !hasDeadline {
		t.Error("Timeout middleware should set a deadline")
	}
}
