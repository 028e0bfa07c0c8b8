package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reloader is implemented by plan catalogs that can refresh themselves.
type Reloader interface {
	Reload(ctx context.Context) error
}

// CatalogReloader periodically refreshes the plan catalog. A failed reload
// keeps serving the previous snapshot.
type CatalogReloader struct {
	interval time.Duration
	catalog  Reloader
	log      *zerolog.Logger
}

func NewCatalogReloader(interval time.Duration, catalog Reloader, logger *zerolog.Logger) *CatalogReloader {
	l := logger.With().Str("component", "CatalogReloader").Logger()
	return &CatalogReloader{interval: interval, catalog: catalog, log: &l}
}

func (w *CatalogReloader) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting catalog reloader")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping catalog reloader")
			return ctx.Err()
		case <-ticker.C:
			if err := w.catalog.Reload(ctx); err != nil {
				w.log.Error().Err(err).Msg("catalog reload failed; keeping previous plans")
			}
		}
	}
}
