package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
	ucport "subscription-service/internal/domain/ports/usecase"
	"subscription-service/internal/infra/logging"
	red "subscription-service/internal/infra/redis"
	"subscription-service/internal/infra/worker"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyScope  = "create_subscription"
	maxBodyBytes      = 64 << 10
)

// Runner executes work with bounded concurrency (worker.Pool).
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// IdempotencyStore remembers completed responses by client key.
type IdempotencyStore interface {
	Lookup(ctx context.Context, scope, key string) (*red.StoredResponse, error)
	Acquire(ctx context.Context, scope, key string) (string, error)
	Complete(ctx context.Context, scope, key, token string, resp red.StoredResponse) error
	Release(ctx context.Context, scope, key, token string) error
}

// Limiter is a per-user request limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Server struct {
	creator ucport.SubscriptionCreator
	reader  ucport.SubscriptionReader
	runner  Runner
	idem    IdempotencyStore
	limiter Limiter
	limit   int
	log     *zerolog.Logger
}

type Option func(*Server)

func WithRunner(r Runner) Option { return func(s *Server) { s.runner = r } }

func WithIdempotency(store IdempotencyStore) Option { return func(s *Server) { s.idem = store } }

// WithRateLimit caps creation requests per user per minute.
func WithRateLimit(l Limiter, perMinute int) Option {
	return func(s *Server) {
		if perMinute > 0 {
			s.limiter, s.limit = l, perMinute
		}
	}
}

func NewServer(creator ucport.SubscriptionCreator, reader ucport.SubscriptionReader, logger *zerolog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "apiv1").Logger()
	s := &Server{creator: creator, reader: reader, log: &l}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RegisterAPIV1 mounts the v1 routes on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1/subscriptions", func(r chi.Router) {
		r.Post("/", s.CreateSubscription)
		r.Get("/", s.ListSubscriptions)
		r.Get("/{id}", s.GetSubscription)
	})
}

type response struct {
	status int
	body   []byte
}

func (s *Server) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	if s.creator == nil {
		writeError(w, http.StatusNotImplemented, Error{Kind: "not_implemented", Message: "subscription creation is not wired"})
		return
	}
	ctx := r.Context()
	l := logging.With(ctx, s.log)

	var in CreateSubscriptionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, Error{Kind: "validation", Message: "invalid JSON body: " + err.Error()})
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, Error{Kind: domain.Kind(err), Message: err.Error()})
		return
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, red.UserActionKey(*in.UserID, "subscribe"), s.limit, time.Minute)
		if err != nil {
			l.Warn().Err(err).Msg("rate limiter unavailable; allowing request")
		} else if !ok {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, Error{Kind: "rate_limited", Message: "too many subscription attempts"})
			return
		}
	}

	key := r.Header.Get(idempotencyHeader)
	if key == "" || s.idem == nil {
		s.create(w, r, in, nil)
		return
	}
	if len(key) > 255 {
		writeError(w, http.StatusBadRequest, Error{Kind: "validation", Message: idempotencyHeader + " must be at most 255 characters"})
		return
	}
	scoped := strconv.FormatInt(*in.UserID, 10) + ":" + key

	stored, err := s.idem.Lookup(ctx, idempotencyScope, scoped)
	if err != nil {
		l.Error().Err(err).Msg("idempotency lookup failed")
		writeError(w, http.StatusServiceUnavailable, Error{Kind: "idempotency_unavailable", Message: "cannot verify idempotency key; retry later"})
		return
	}
	if stored != nil {
		w.Header().Set("Idempotent-Replayed", "true")
		writeRaw(w, stored.Status, stored.Body)
		return
	}
	token, err := s.idem.Acquire(ctx, idempotencyScope, scoped)
	if errors.Is(err, red.ErrRequestInProgress) {
		writeError(w, http.StatusConflict, Error{Kind: "request_in_progress", Message: err.Error()})
		return
	}
	if err != nil {
		l.Error().Err(err).Msg("idempotency acquire failed")
		writeError(w, http.StatusServiceUnavailable, Error{Kind: "idempotency_unavailable", Message: "cannot claim idempotency key; retry later"})
		return
	}
	// a duplicate may have completed between Lookup and Acquire
	stored, err = s.idem.Lookup(ctx, idempotencyScope, scoped)
	if err != nil || stored != nil {
		if rerr := s.idem.Release(context.WithoutCancel(ctx), idempotencyScope, scoped, token); rerr != nil {
			l.Warn().Err(rerr).Msg("idempotency release failed")
		}
		if err != nil {
			l.Error().Err(err).Msg("idempotency lookup failed")
			writeError(w, http.StatusServiceUnavailable, Error{Kind: "idempotency_unavailable", Message: "cannot verify idempotency key; retry later"})
			return
		}
		w.Header().Set("Idempotent-Replayed", "true")
		writeRaw(w, stored.Status, stored.Body)
		return
	}

	s.create(w, r, in, func(ctx context.Context, resp *response) {
		// a cancelled client must not leave the key claimed or unrecorded
		ctx = context.WithoutCancel(ctx)
		if resp != nil && replayable(resp.status, resp.body) {
			if err := s.idem.Complete(ctx, idempotencyScope, scoped, token, red.StoredResponse{Status: resp.status, Body: resp.body}); err != nil {
				l.Error().Err(err).Msg("idempotency store failed")
			}
			return
		}
		if err := s.idem.Release(ctx, idempotencyScope, scoped, token); err != nil {
			l.Warn().Err(err).Msg("idempotency release failed")
		}
	})
}

// create runs the pipeline on the runner. finish, if set, is called exactly
// once with the outcome (nil when the pipeline never ran).
func (s *Server) create(w http.ResponseWriter, r *http.Request, in CreateSubscriptionRequest, finish func(context.Context, *response)) {
	ctx := r.Context()
	var (
		owned  atomic.Bool
		result *response
	)
	task := func(ctx context.Context) error {
		if !owned.CompareAndSwap(false, true) {
			return context.Canceled
		}
		sub, err := s.creator.Create(ctx, in.toModel())
		result = render(sub, err)
		if finish != nil {
			finish(ctx, result)
		}
		return nil
	}

	var err error
	if s.runner != nil {
		err = s.runner.Do(ctx, task)
	} else {
		err = task(ctx)
	}
	if err != nil {
		if finish != nil && owned.CompareAndSwap(false, true) {
			finish(ctx, nil)
		}
		switch {
		case errors.Is(err, worker.ErrPoolSaturated), errors.Is(err, worker.ErrPoolStopped):
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, Error{Kind: "overloaded", Message: "server is at capacity; retry later"})
		default:
			writeError(w, http.StatusServiceUnavailable, Error{Kind: "timeout", Message: "request did not complete: " + err.Error()})
		}
		return
	}
	writeRaw(w, result.status, result.body)
}

func render(sub *model.Subscription, err error) *response {
	if err != nil {
		status, body := errorBody(err)
		b, _ := json.Marshal(ErrorResponse{Error: body})
		return &response{status: status, body: b}
	}
	b, _ := json.Marshal(toSubscription(sub))
	return &response{status: http.StatusCreated, body: b}
}

// replayable reports whether a result is final. Retryable outcomes are not
// stored so the client can try again with the same key.
func replayable(status int, body []byte) bool {
	if status < 500 {
		return status != http.StatusTooManyRequests
	}
	var e ErrorResponse
	return json.Unmarshal(body, &e) == nil && e.Error.Kind == "persistence_failure"
}

// StatusFor maps the error taxonomy to HTTP status codes.
func StatusFor(err error) int {
	switch domain.Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "plan_not_found", "not_found":
		return http.StatusNotFound
	case "plan_unavailable":
		return http.StatusConflict
	case "payment_declined":
		return http.StatusPaymentRequired
	case "payment_provider_unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) (int, Error) {
	e := Error{Kind: domain.Kind(err), Step: string(domain.FailedStep(err)), Message: err.Error()}
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		e.TransactionID = perr.TransactionID
		e.Message = "payment captured but the subscription could not be recorded; quote the transaction id to support"
	}
	if e.Kind == "internal" || e.Kind == "currency_mismatch" {
		e.Message = "internal error"
	}
	return StatusFor(err), e
}

func (s *Server) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.reader.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

// ListSubscriptions answers ?feature=K&value=V. value is parsed as JSON when
// possible (5, true, "x") and used as a plain string otherwise.
func (s *Server) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	feature := q.Get("feature")
	if feature == "" || !q.Has("value") {
		writeError(w, http.StatusBadRequest, Error{Kind: "validation", Message: "feature and value query parameters are required"})
		return
	}
	subs, err := s.reader.FindByFeature(r.Context(), feature, parseValue(q.Get("value")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := ListResponse{Items: make([]Subscription, 0, len(subs))}
	for _, sub := range subs {
		out.Items = append(out.Items, toSubscription(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorBody(err)
	if status >= 500 {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
	}
	writeError(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeRaw(w, http.StatusInternalServerError, []byte(fmt.Sprintf(`{"error":{"kind":"internal","message":%q}}`, err.Error())))
		return
	}
	writeRaw(w, status, b)
}

func writeError(w http.ResponseWriter, status int, e Error) {
	writeJSON(w, status, ErrorResponse{Error: e})
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
