package twofa

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "twofa"

// Metrics counts service operations by outcome. A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	deliveries *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Two-factor method operations by outcome.",
		}, []string{"operation", "outcome"}),
		deliveries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent in delivery handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type", "outcome"}),
	}
	reg.MustRegister(m.operations, m.deliveries)
	return m
}

func (m *Metrics) observe(operation string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome(err)).Inc()
}

func (m *Metrics) observeDelivery(methodType string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(methodType, outcome(err)).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return "error"
}
