package viewgen

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/metadata"
)

// Output is the result of a cell group computation.
type Output struct {
	// Success is false when the mapping yields no cells.
	Success bool
	// Cells are ordered by cell number.
	Cells                 []*Cell
	CellGroups            []*CellGroup
	ForeignKeyConstraints []*ForeignConstraint
	// Identifiers are the distinct extent, type and slot names used by the
	// cells, sorted.
	Identifiers []string
	// TypeViews lists a type query view target for every type covered by
	// an entity set cell. Empty unless GenerateViewsForEachType is set.
	TypeViews []mapping.TypeQueryViewKey
}

type cacheKey struct {
	cm  *mapping.ContainerMapping
	cfg Config
}

// Cache memoizes cell groups per container mapping and configuration.
// For every (container mapping, configuration) pair the computation runs at
// most once, even under concurrent requests, and every caller gets the same
// *Output. A container mapping must not be modified after it was passed to
// the cache.
type Cache struct {
	memo    *csmap.Memo[cacheKey, *Output]
	log     *slog.Logger
	metrics *metrics
	workers int
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.log = l
	}
}

// WithWorkers limits the concurrency of Warm. The default is GOMAXPROCS.
func WithWorkers(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewCache returns an empty cache.
//
// Example:
//
//	cache := viewgen.NewCache(
//	    viewgen.WithLogger(logger),
//	    viewgen.WithRegisterer(prometheus.DefaultRegisterer),
//	)
//	out, err := cache.GetCellgroups(cm, cfg)
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		log:     slog.Default(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.memo = csmap.NewMemo(c.compute)
	return c
}

// GetCellgroups returns the cell groups of cm under cfg. An error is
// returned only when update view validation fails.
func (c *Cache) GetCellgroups(cm *mapping.ContainerMapping, cfg Config) (*Output, error) {
	out, computed, err := c.memo.Lookup(cacheKey{cm: cm, cfg: cfg})
	c.metrics.request(computed)
	return out, err
}

// Len returns the number of cached keys.
func (c *Cache) Len() int { return c.memo.Len() }

// Warm computes the cell groups of every container mapping concurrently.
// It stops starting new computations once ctx is done and returns the first
// error.
func (c *Cache) Warm(ctx context.Context, cfg Config, cms ...*mapping.ContainerMapping) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, cm := range cms {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := c.GetCellgroups(cm, cfg)
			return err
		})
	}
	return g.Wait()
}

func (c *Cache) compute(k cacheKey) (*Output, error) {
	start := time.Now()
	c.metrics.computation()
	if k.cm == nil {
		return &Output{}, nil
	}
	if k.cfg.Mode == ModeUpdateViews && k.cfg.ValidateUpdateViews {
		if err := mapping.Validate(k.cm).Err(); err != nil {
			return nil, err
		}
	}
	cells := ExtractCells(k.cm, k.cfg)
	c.metrics.cells(len(cells))
	if len(cells) == 0 {
		c.log.Debug("no cells to partition",
			"container", k.cm.Identity(),
			"mode", k.cfg.Mode,
		)
		return &Output{}, nil
	}
	fks := ForeignConstraints(k.cm.Storage)
	out := &Output{
		Success:               true,
		Cells:                 cells,
		CellGroups:            Partition(cells, fks),
		ForeignKeyConstraints: fks,
		Identifiers:           identifiers(cells),
	}
	if k.cfg.GenerateViewsForEachType {
		out.TypeViews = typeViews(cells)
	}
	c.log.Debug("computed cell groups",
		"container", k.cm.Identity(),
		"mode", k.cfg.Mode,
		"cells", len(cells),
		"groups", len(out.CellGroups),
		"foreign_keys", len(fks),
		"duration", time.Since(start),
	)
	return out, nil
}

func identifiers(cells []*Cell) []string {
	var ids []string
	add := func(s string) {
		if s != "" {
			ids = append(ids, s)
		}
	}
	for _, c := range cells {
		for _, q := range []CellQuery{c.CQuery, c.SQuery} {
			if !isNilExtent(q.Extent) {
				add(extentName(q.Extent))
			}
			for _, s := range q.Slots {
				add(s)
			}
		}
		for _, t := range slices.Concat(c.Types, c.IsOfTypes) {
			add(t.TypeName())
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func typeViews(cells []*Cell) []mapping.TypeQueryViewKey {
	var keys []mapping.TypeQueryViewKey
	add := func(k mapping.TypeQueryViewKey) {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	for _, c := range cells {
		set, ok := c.CQuery.Extent.(*metadata.EntitySet)
		if !ok || set == nil {
			continue
		}
		for _, t := range c.Types {
			if et, ok := t.(*metadata.EntityType); ok {
				add(mapping.TypeQueryViewKey{Set: set, Type: et})
			}
		}
		for _, t := range c.IsOfTypes {
			if et, ok := t.(*metadata.EntityType); ok {
				add(mapping.TypeQueryViewKey{Set: set, Type: et, IncludeSubtypes: true})
			}
		}
	}
	return keys
}
