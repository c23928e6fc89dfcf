// Package telemetry exposes Prometheus metrics for PEI Hub.
package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
)

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	// Enabled controls whether metrics are recorded. A disabled Metrics is a no-op.
	Enabled bool

	// Namespace is the metrics namespace prefix.
	Namespace string

	// Buckets are the latency buckets in seconds.
	Buckets []float64
}

// DefaultMetricsConfig returns an enabled config with the "pei" namespace.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "pei",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5},
	}
}

// Metrics holds the collectors used by the storage layer and the facade.
// All methods are safe on a disabled (or nil) instance.
type Metrics struct {
	registry *prometheus.Registry

	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	storeRetries  *prometheus.CounterVec

	facadeOps     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	events        *prometheus.CounterVec
	goalsTracked  prometheus.Gauge
}

// NewMetrics creates a metrics collector on its own registry.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}

	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Key-value store operations by backend, operation and outcome",
		}, []string{"backend", "op", "outcome"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of key-value store operations",
			Buckets:   buckets,
		}, []string{"backend", "op"}),
		storeRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "store",
			Name:      "retries_total",
			Help:      "Retried key-value store operations",
		}, []string{"op"}),
		facadeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "operations_total",
			Help:      "Plan operations by name and outcome",
		}, []string{"op", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "notifications_total",
			Help:      "User notifications raised by kind",
		}, []string{"kind"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_published_total",
			Help:      "Domain events published by type",
		}, []string{"type"}),
		goalsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "active_plan_goals",
			Help:      "Number of goals in the plan currently held by the facade",
		}),
	}

	m.registry.MustRegister(
		m.storeOps,
		m.storeDuration,
		m.storeRetries,
		m.facadeOps,
		m.notifications,
		m.events,
		m.goalsTracked,
	)
	return m
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// Store Metrics

// ObserveStoreOp records one store call.
func (m *Metrics) ObserveStoreOp(backend, op, outcome string, d time.Duration) {
	if !m.enabled() {
		return
	}
	m.storeOps.WithLabelValues(backend, op, outcome).Inc()
	m.storeDuration.WithLabelValues(backend, op).Observe(d.Seconds())
}

// RecordStoreRetry counts a retried store call.
func (m *Metrics) RecordStoreRetry(op string) {
	if !m.enabled() {
		return
	}
	m.storeRetries.WithLabelValues(op).Inc()
}

// Facade Metrics

// RecordOperation counts a facade operation.
func (m *Metrics) RecordOperation(op string, err error) {
	if !m.enabled() {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.facadeOps.WithLabelValues(op, outcome).Inc()
}

// RecordNotification counts a notification by kind.
func (m *Metrics) RecordNotification(kind string) {
	if !m.enabled() {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

// RecordEvent counts a published domain event.
func (m *Metrics) RecordEvent(eventType string) {
	if !m.enabled() {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// SetGoalsTracked sets the goal count of the current plan.
func (m *Metrics) SetGoalsTracked(n int) {
	if !m.enabled() {
		return
	}
	m.goalsTracked.Set(float64(n))
}

// Exposition

// Registry returns the underlying registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if !m.enabled() {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// WriteText dumps every gathered family in the Prometheus text format.
// The CLI uses it to print metrics of a single run.
func (m *Metrics) WriteText(w io.Writer) error {
	if !m.enabled() {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
