package cache

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	invalidations *prometheus.CounterVec
	entries       prometheus.GaugeFunc
}

func newMetrics(size func() int) *metrics {
	return &metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bitpoet",
			Subsystem: "content_cache",
			Name:      "hits_total",
			Help:      "Content cache lookups served from memory.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bitpoet",
			Subsystem: "content_cache",
			Name:      "misses_total",
			Help:      "Content cache lookups that required a fetch.",
		}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bitpoet",
			Subsystem: "content_cache",
			Name:      "invalidations_total",
			Help:      "Invalidation requests by kind (tag or all).",
		}, []string{"kind"}),
		entries: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "bitpoet",
			Subsystem: "content_cache",
			Name:      "entries",
			Help:      "Entries currently held by the content cache.",
		}, func() float64 { return float64(size()) }),
	}
}

// Collectors exposes the store metrics for registration.
func (s *Store) Collectors() []prometheus.Collector {
	return []prometheus.Collector{s.metrics.hits, s.metrics.misses, s.metrics.invalidations, s.metrics.entries}
}
