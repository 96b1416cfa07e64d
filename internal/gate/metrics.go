package gate

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts gate decisions.
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics creates the gate counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "help112",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Inbound events by kind and gate decision.",
		}, []string{"kind", "decision"}),
	}
	reg.MustRegister(m.decisions)
	return m
}

// Decisions exposes the counter vector.
func (m *Metrics) Decisions() *prometheus.CounterVec {
	return m.decisions
}

func (m *Metrics) observe(kind EventKind, decision Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(kind.String(), decision.String()).Inc()
}
