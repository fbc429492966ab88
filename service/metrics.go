package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks export invocations.
type Metrics struct {
	invocations *prometheus.CounterVec
	rows        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exporter",
			Name:      "invocations_total",
			Help:      "Export invocations by target and end state.",
		}, []string{"target", "end"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exporter",
			Name:      "rows_total",
			Help:      "Rows forwarded to a destination.",
		}, []string{"target"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "exporter",
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of export invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"target"}),
	}
	if reg != nil {
		reg.MustRegister(m.invocations, m.rows, m.duration)
	}
	return m
}

func (m *Metrics) observe(target TargetKind, end string, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}
	t := target.String()
	m.invocations.WithLabelValues(t, end).Inc()
	m.rows.WithLabelValues(t).Add(float64(rows))
	m.duration.WithLabelValues(t).Observe(elapsed.Seconds())
}
