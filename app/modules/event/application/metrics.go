package eventservice

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments service operations and score updates. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	updates   *prometheus.CounterVec
	queue     prometheus.Gauge
}

// Score update outcomes.
const (
	updateFetched  = "fetched"
	updateDegraded = "degraded"
	updateSkipped  = "skipped"
)

// NewMetrics registers the service metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osrs_event_bot",
			Subsystem: "event_service",
			Name:      "operation_attempts_total",
			Help:      "Service operations started.",
		}, []string{"operation"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osrs_event_bot",
			Subsystem: "event_service",
			Name:      "operation_successes_total",
			Help:      "Service operations that returned without an infrastructure error.",
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osrs_event_bot",
			Subsystem: "event_service",
			Name:      "operation_failures_total",
			Help:      "Service operations that failed or panicked.",
		}, []string{"operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "osrs_event_bot",
			Subsystem: "event_service",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osrs_event_bot",
			Subsystem: "event_service",
			Name:      "score_updates_total",
			Help:      "Score updates by outcome.",
		}, []string{"outcome"}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "osrs_event_bot",
			Subsystem: "event_service",
			Name:      "update_queue_depth",
			Help:      "Score updates waiting for the worker.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.successes, m.failures, m.duration, m.updates, m.queue)
	}
	return m
}

func (m *Metrics) RecordOperationAttempt(operation string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordOperationSuccess(operation string) {
	if m == nil {
		return
	}
	m.successes.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordOperationFailure(operation string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) recordUpdate(outcome string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queue.Set(float64(n))
}
