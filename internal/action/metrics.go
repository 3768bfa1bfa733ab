package action

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts pipeline outcomes and side-channel failures.
type Metrics struct {
	outcomes     *prometheus.CounterVec
	sideFailures *prometheus.CounterVec
}

// NewMetrics creates the pipeline collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbook",
			Name:      "actions_total",
			Help:      "Orchestrated actions by operation and terminal state.",
		}, []string{"operation", "state"}),
		sideFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbook",
			Name:      "side_channel_failures_total",
			Help:      "Audit and notification writes that failed and were swallowed.",
		}, []string{"operation", "channel"}),
	}
	if reg != nil {
		reg.MustRegister(m.outcomes, m.sideFailures)
	}
	return m
}

func (m *Metrics) outcome(operation string, state Phase) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(operation, string(state)).Inc()
}

func (m *Metrics) sideFailure(operation, channel string) {
	if m == nil {
		return
	}
	m.sideFailures.WithLabelValues(operation, channel).Inc()
}
