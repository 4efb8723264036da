package httpapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors exposed at /metrics (spec.md
// §8's "counters, gauges, histograms").
type Metrics struct {
	ImportsTotal      *prometheus.CounterVec
	ImportDuration    prometheus.Histogram
	CircuitBreakerOpen *prometheus.GaugeVec
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
}

// NewMetrics registers every collector against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ImportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decant_imports_total",
			Help: "Total number of import requests by outcome.",
		}, []string{"outcome"}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "decant_import_duration_seconds",
			Help:    "Import pipeline latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		CircuitBreakerOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "decant_circuit_breaker_open",
			Help: "1 if the named breaker is currently open, else 0.",
		}, []string{"name"}),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "decant_import_cache_hits_total",
			Help: "Total import cache hits.",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "decant_import_cache_misses_total",
			Help: "Total import cache misses.",
		}),
	}
}

func (m *Metrics) observeImport(outcome string, start time.Time) {
	m.ImportsTotal.WithLabelValues(outcome).Inc()
	m.ImportDuration.Observe(time.Since(start).Seconds())
}
