package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rainbow-me/gateway-correlation/correlation"
)

const metricsNamespace = "gateway"

// Metrics counts what the trace filter did per request. It implements
// correlation.Recorder.
type Metrics struct {
	ids      *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewMetrics registers the correlation counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ids: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "correlation",
				Name:      "ids_total",
				Help:      "Correlation ids handled by the trace filter, by outcome",
			},
			[]string{"outcome"}, // found|generated|rejected
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "correlation",
				Name:      "failures_total",
				Help:      "Requests failed because no correlation id could be established",
			},
			[]string{"reason"},
		),
	}
}

func (m *Metrics) RecordOutcome(o correlation.Outcome) {
	m.ids.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) RecordFailure(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}
