// Package metrics holds the Prometheus collectors for the USSD engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the engine's collectors. A nil *Metrics is a no-op so
// packages can be exercised without a registry.
type Metrics struct {
	turns           *prometheus.CounterVec
	operations      *prometheus.CounterVec
	operationTime   *prometheus.HistogramVec
	activeSessions  prometheus.Gauge
	evictedSessions prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ussd",
			Name:      "turns_total",
			Help:      "Dialog turns handled, by stage reached and session status.",
		}, []string{"stage", "status"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ussd",
			Name:      "operations_total",
			Help:      "Financial operations attempted, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ussd",
			Name:      "operation_duration_seconds",
			Help:      "Latency of financial operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ussd",
			Name:      "sessions_active",
			Help:      "Sessions currently held by the session store.",
		}),
		evictedSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ussd",
			Name:      "sessions_evicted_total",
			Help:      "Sessions removed by the idle reaper.",
		}),
	}
	reg.MustRegister(m.turns, m.operations, m.operationTime, m.activeSessions, m.evictedSessions)
	return m
}

// Turn records one handled dialog turn.
func (m *Metrics) Turn(stage, status string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(stage, status).Inc()
}

// Operation records the outcome and latency of a financial operation.
func (m *Metrics) Operation(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.operationTime.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Sessions publishes the active session count and newly evicted sessions.
func (m *Metrics) Sessions(active, evicted int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(active))
	if evicted > 0 {
		m.evictedSessions.Add(float64(evicted))
	}
}
