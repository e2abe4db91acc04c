package viewgen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the cache collectors. A nil *metrics records nothing.
type metrics struct {
	computations prometheus.Counter
	requests     *prometheus.CounterVec
	cellCount    prometheus.Histogram
}

// WithRegisterer registers the cache metrics with reg:
//
//	csmap_viewgen_cellgroup_computations_total
//	csmap_viewgen_cellgroup_requests_total{result="hit|miss"}
//	csmap_viewgen_cells
func WithRegisterer(reg prometheus.Registerer) CacheOption {
	return func(c *Cache) {
		c.metrics = newMetrics(reg)
	}
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		computations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "csmap",
			Subsystem: "viewgen",
			Name:      "cellgroup_computations_total",
			Help:      "Total number of cell group computations",
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csmap",
			Subsystem: "viewgen",
			Name:      "cellgroup_requests_total",
			Help:      "Total number of cell group requests",
		}, []string{"result"}),
		cellCount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "csmap",
			Subsystem: "viewgen",
			Name:      "cells",
			Help:      "Number of cells per cell group computation",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

func (m *metrics) computation() {
	if m == nil {
		return
	}
	m.computations.Inc()
}

func (m *metrics) request(computed bool) {
	if m == nil {
		return
	}
	result := "hit"
	if computed {
		result = "miss"
	}
	m.requests.WithLabelValues(result).Inc()
}

func (m *metrics) cells(n int) {
	if m == nil {
		return
	}
	m.cellCount.Observe(float64(n))
}
