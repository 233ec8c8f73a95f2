package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InferenceMetrics tracks calls to the remote analysis capability.
type InferenceMetrics struct {
	service      string
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	breakerOpen  *prometheus.GaugeVec
}

func NewInferenceMetrics(service string, reg prometheus.Registerer) *InferenceMetrics {
	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "calls_total",
			Help:      "Inference gateway calls by operation and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	callDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "call_duration_seconds",
			Help:      "Inference gateway call latency in seconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "operation"},
	)
	breakerOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "circuit_open",
			Help:      "1 while the circuit breaker of an operation is not closed.",
		},
		[]string{"service", "operation"},
	)
	reg.MustRegister(callsTotal, callDuration, breakerOpen)

	return &InferenceMetrics{
		service:      service,
		callsTotal:   callsTotal,
		callDuration: callDuration,
		breakerOpen:  breakerOpen,
	}
}

func (m *InferenceMetrics) ObserveCall(operation, outcome string, duration time.Duration) {
	m.callsTotal.WithLabelValues(m.service, operation, outcome).Inc()
	m.callDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *InferenceMetrics) SetCircuitOpen(operation string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.breakerOpen.WithLabelValues(m.service, operation).Set(v)
}
