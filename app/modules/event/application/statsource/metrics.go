package statsource

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache and lookup outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	cache    *prometheus.CounterVec
	failures prometheus.Counter
}

// NewMetrics registers the gateway collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osrs_event_bot",
			Subsystem: "stat_cache",
			Name:      "operations_total",
			Help:      "Stat cache hits, misses and evictions.",
		}, []string{"result"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osrs_event_bot",
			Subsystem: "stat_cache",
			Name:      "lookup_failures_total",
			Help:      "Lookups that failed after exhausting retries.",
		}),
	}
	reg.MustRegister(m.cache, m.failures)
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.cache.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.cache.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) evict() {
	if m != nil {
		m.cache.WithLabelValues("evict").Inc()
	}
}

func (m *Metrics) failure() {
	if m != nil {
		m.failures.Inc()
	}
}
