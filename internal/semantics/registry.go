package semantics

import (
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/mikallon/datacore/internal/domain"
)

// Catalog is one immutable snapshot of the semantic model and its metric
// definitions. Concurrent readers share a snapshot without locking; a reload
// produces a new Catalog and swaps the registry pointer.
type Catalog struct {
	model   *domain.SemanticModel
	metrics []domain.MetricDefinition
	byName  map[string]int
}

// NewCatalog builds a catalog over a semantic model and metric list.
func NewCatalog(model *domain.SemanticModel, metrics []domain.MetricDefinition) *Catalog {
	byName := make(map[string]int, len(metrics))
	for i, m := range metrics {
		if _, exists := byName[m.Name]; !exists {
			byName[m.Name] = i
		}
	}
	return &Catalog{model: model, metrics: metrics, byName: byName}
}

// Model returns the active semantic model.
func (c *Catalog) Model() *domain.SemanticModel { return c.model }

// Metrics returns the metric definitions in declaration order.
func (c *Catalog) Metrics() []domain.MetricDefinition { return c.metrics }

// Metric looks up a metric definition by name.
func (c *Catalog) Metric(name string) (*domain.MetricDefinition, bool) {
	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return &c.metrics[i], true
}

// FirstMetric returns the first metric in the catalog, the resolver's
// fallback when nothing in a query matches. Nil for an empty catalog.
func (c *Catalog) FirstMetric() *domain.MetricDefinition {
	if len(c.metrics) == 0 {
		return nil
	}
	return &c.metrics[0]
}

// Registry holds the current catalog snapshot. Reads never block; Swap
// installs a replacement snapshot atomically.
type Registry struct {
	current atomic.Pointer[Catalog]
}

// NewRegistry creates a registry seeded with the given catalog.
func NewRegistry(cat *Catalog) *Registry {
	r := &Registry{}
	r.current.Store(cat)
	return r
}

// Current returns the active catalog snapshot.
func (r *Registry) Current() *Catalog { return r.current.Load() }

// Swap installs a new catalog snapshot.
func (r *Registry) Swap(cat *Catalog) { r.current.Store(cat) }

// StartReloader schedules a periodic catalog rebuild. A failed load keeps
// the previous snapshot in place. The returned cron must be stopped by the
// caller on shutdown.
func (r *Registry) StartReloader(schedule string, load func() (*Catalog, error), logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		cat, err := load()
		if err != nil {
			logger.Warn("catalog reload failed, keeping current snapshot", "error", err)
			return
		}
		r.Swap(cat)
		logger.Info("catalog reloaded", "metrics", len(cat.Metrics()))
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
