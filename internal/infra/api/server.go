package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"subscription-service/internal/config"
	"subscription-service/internal/infra/api/apiv1"
	"subscription-service/internal/infra/metrics"
)

// Pinger is a dependency checked by /health.
type Pinger func(ctx context.Context) error

// NewRouter builds the HTTP surface: the v1 API, /health and /metrics.
func NewRouter(v1 *apiv1.Server, checks map[string]Pinger, requestTimeout time.Duration, logger *zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(logger), Recover(logger), Timeout(requestTimeout))

	r.Get("/health", healthHandler(checks))
	r.Handle("/metrics", metrics.Handler())
	apiv1.RegisterAPIV1(r, v1)
	return r
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		out := map[string]string{}
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				out[name] = err.Error()
				continue
			}
			out[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": http.StatusText(status), "checks": out})
	}
}

// Server owns the listening http.Server.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http.Server").Logger()
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             &l,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	return s.srv.Shutdown(sctx)
}
