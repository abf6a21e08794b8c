// Package metrics exposes Prometheus instrumentation for alert delivery
// and budget-gated enrichment. Collection only; alarm evaluation and
// dashboards live outside this system.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared across components.
type Metrics struct {
	deliveryAttempts *prometheus.CounterVec
	deliveryRetries  prometheus.Counter
	deliveryFallback prometheus.Counter
	deliveryDuration prometheus.Histogram

	inferenceCalls    *prometheus.CounterVec
	inferenceCacheOps *prometheus.CounterVec
	ledgerSpend       prometheus.Gauge

	sweepRemoved prometheus.Counter
}

// New registers the sentinel collectors with the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry
// to stay isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		deliveryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_delivery_attempts_total",
				Help: "Alert delivery attempts by result",
			},
			[]string{"result"},
		),
		deliveryRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_delivery_retries_total",
				Help: "Publish retries performed during alert delivery",
			},
		),
		deliveryFallback: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_delivery_fallback_total",
				Help: "Deliveries that fell back to non-push channels",
			},
		),
		deliveryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentinel_delivery_duration_seconds",
				Help:    "End-to-end alert delivery duration",
				Buckets: prometheus.DefBuckets,
			},
		),
		inferenceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_inference_calls_total",
				Help: "Enrichment sub-calls by analysis kind and result",
			},
			[]string{"analysis", "result"},
		),
		inferenceCacheOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_inference_cache_total",
				Help: "Inference cache lookups by result",
			},
			[]string{"result"},
		),
		ledgerSpend: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentinel_ledger_spend_usd",
				Help: "Enrichment spend recorded for the current billing period",
			},
		),
		sweepRemoved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_sweep_removed_total",
				Help: "Push endpoints removed by feedback sweeps",
			},
		),
	}
}

// ObserveDelivery records one delivery attempt. All receivers are nil-safe
// so components can run uninstrumented.
func (m *Metrics) ObserveDelivery(result string, retries int, fallback bool, seconds float64) {
	if m == nil {
		return
	}
	m.deliveryAttempts.WithLabelValues(result).Inc()
	m.deliveryRetries.Add(float64(retries))
	if fallback {
		m.deliveryFallback.Inc()
	}
	m.deliveryDuration.Observe(seconds)
}

// ObserveInferenceCall records one enrichment sub-call.
func (m *Metrics) ObserveInferenceCall(analysis, result string) {
	if m == nil {
		return
	}
	m.inferenceCalls.WithLabelValues(analysis, result).Inc()
}

// ObserveCache records a cache lookup result ("hit" or "miss").
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.inferenceCacheOps.WithLabelValues(result).Inc()
}

// SetLedgerSpend publishes the current-period enrichment spend.
func (m *Metrics) SetLedgerSpend(usd float64) {
	if m == nil {
		return
	}
	m.ledgerSpend.Set(usd)
}

// AddSweepRemoved counts endpoints removed by a sweep.
func (m *Metrics) AddSweepRemoved(n int) {
	if m == nil {
		return
	}
	m.sweepRemoved.Add(float64(n))
}
