package catalog

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/repository"
	"subscription-service/internal/infra/metrics"
)

//go:embed plans.yaml
var DefaultFS embed.FS

const defaultFile = "plans.yaml"

var _ repository.PlanCatalog = (*FileCatalog)(nil)

type planDoc struct {
	Key      string         `yaml:"key"`
	Name     string         `yaml:"name"`
	Price    int64          `yaml:"price"`
	Currency string         `yaml:"currency"`
	Period   string         `yaml:"period"`
	Disabled bool           `yaml:"disabled"`
	Features map[string]any `yaml:"features"`
}

type document struct {
	Plans []planDoc `yaml:"plans"`
}

// FileCatalog serves plans from a YAML document. Reload swaps the whole
// snapshot atomically so readers never see a half-loaded catalog.
type FileCatalog struct {
	fsys  fs.FS
	name  string
	plans atomic.Pointer[map[string]*model.Plan]
	log   *zerolog.Logger
}

// NewFileCatalog loads path from disk. An empty path serves the embedded default catalog.
func NewFileCatalog(path string, logger *zerolog.Logger) (*FileCatalog, error) {
	if path == "" {
		return NewFSCatalog(DefaultFS, defaultFile, logger)
	}
	return NewFSCatalog(os.DirFS(filepath.Dir(path)), filepath.Base(path), logger)
}

// NewFSCatalog loads name from fsys.
func NewFSCatalog(fsys fs.FS, name string, logger *zerolog.Logger) (*FileCatalog, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "FileCatalog").Str("file", name).Logger()
	c := &FileCatalog{fsys: fsys, name: name, log: &l}
	if err := c.Reload(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse decodes a catalog document. Every plan is validated; duplicate keys
// are rejected.
func Parse(data []byte) (map[string]*model.Plan, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	out := make(map[string]*model.Plan, len(doc.Plans))
	for i, d := range doc.Plans {
		price, err := model.NewMoney(d.Price, strings.ToUpper(d.Currency))
		if err != nil {
			return nil, fmt.Errorf("plan #%d (%s): price: %w", i, d.Key, err)
		}
		period, err := model.ParseBillingPeriod(d.Period)
		if err != nil {
			return nil, fmt.Errorf("plan #%d (%s): %w", i, d.Key, err)
		}
		p, err := model.NewPlan(d.Key, d.Name, price, period, model.Features(d.Features))
		if err != nil {
			return nil, fmt.Errorf("plan #%d (%s): %w", i, d.Key, err)
		}
		p.Disabled = d.Disabled
		if _, dup := out[p.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate plan key %q", domain.ErrInvalidArgument, p.Key)
		}
		out[p.Key] = p
	}
	return out, nil
}

// Reload re-reads the document. On error the previous snapshot stays in place.
func (c *FileCatalog) Reload(ctx context.Context) error {
	data, err := fs.ReadFile(c.fsys, c.name)
	if err != nil {
		metrics.IncCatalogReload("error")
		return fmt.Errorf("failed to read plan catalog %s: %w", c.name, err)
	}
	plans, err := Parse(data)
	if err != nil {
		metrics.IncCatalogReload("error")
		return err
	}
	c.plans.Store(&plans)
	metrics.IncCatalogReload("ok")
	metrics.SetCatalogPlans(len(plans))
	c.log.Debug().Int("plans", len(plans)).Msg("plan catalog loaded")
	return nil
}

// Resolve returns a copy of the plan so callers cannot mutate the catalog.
func (c *FileCatalog) Resolve(ctx context.Context, planKey string) (*model.Plan, error) {
	snap := c.plans.Load()
	if snap == nil {
		return nil, domain.ErrNotFound
	}
	p, ok := (*snap)[planKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

// ListAll returns copies of every plan ordered by key.
func (c *FileCatalog) ListAll(ctx context.Context) []*model.Plan {
	snap := c.plans.Load()
	if snap == nil {
		return nil
	}
	out := make([]*model.Plan, 0, len(*snap))
	for _, p := range *snap {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
