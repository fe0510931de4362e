// Package metrics exposes the server's Prometheus instrumentation. A
// nil *Metrics is valid and simply does not record anything, so callers
// never need to branch on whether metrics are enabled.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge the match server emits.
type Metrics struct {
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	stepsValidated    *prometheus.CounterVec
	matchesCompleted  prometheus.Counter
	adminCommands     *prometheus.CounterVec
}

// New registers every metric against reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hascill_connections_total",
			Help: "Total clients that joined a team.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hascill_connections_active",
			Help: "Currently connected clients across all teams.",
		}),
		stepsValidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hascill_steps_validated_total",
			Help: "step_answer submissions by validation result.",
		}, []string{"result"}),
		matchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hascill_matches_completed_total",
			Help: "Matches that reached game_over.",
		}),
		adminCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hascill_admin_commands_total",
			Help: "Admin console commands issued, by command name.",
		}, []string{"command"}),
	}
	reg.MustRegister(m.connectionsTotal, m.connectionsActive, m.stepsValidated, m.matchesCompleted, m.adminCommands)
	return m
}

// ConnectionOpened records a newly joined client.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

// ConnectionClosed records a disconnect.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

// StepValidated records the outcome of one step_answer dispatch.
// result is one of "accepted", "rejected", "arity_error", "rate_limited".
func (m *Metrics) StepValidated(result string) {
	if m == nil {
		return
	}
	m.stepsValidated.WithLabelValues(result).Inc()
}

// MatchCompleted records a match reaching game_over.
func (m *Metrics) MatchCompleted() {
	if m == nil {
		return
	}
	m.matchesCompleted.Inc()
}

// AdminCommand records one admin console invocation.
func (m *Metrics) AdminCommand(name string) {
	if m == nil {
		return
	}
	m.adminCommands.WithLabelValues(name).Inc()
}
