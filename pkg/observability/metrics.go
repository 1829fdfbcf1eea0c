// Package observability exposes Prometheus metrics for routing activity.
// Metrics are fed through the engine's lifecycle hooks, so the core stays
// free of any metrics dependency.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/batonlabs/baton/pkg/domain"
)

// Metrics holds the routing metric collectors.
type Metrics struct {
	turns        *prometheus.CounterVec
	handoffs     *prometheus.CounterVec
	gates        prometheus.Counter
	terminations *prometheus.CounterVec
	turnsPerRun  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with the given
// registerer. Pass prometheus.DefaultRegisterer for the process default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baton",
			Name:      "turns_total",
			Help:      "Turns recorded, by participant and error status.",
		}, []string{"participant", "status"}),
		handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baton",
			Name:      "handoffs_total",
			Help:      "Hand-offs, by source, destination and mechanism.",
		}, []string{"from", "to", "via"}),
		gates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "baton",
			Name:      "input_gates_total",
			Help:      "Times a session stopped to await human input.",
		}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baton",
			Name:      "terminations_total",
			Help:      "Session terminations, by reason.",
		}, []string{"reason"}),
		turnsPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "baton",
			Name:      "session_turns",
			Help:      "Transcript length at termination.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}

	reg.MustRegister(m.turns, m.handoffs, m.gates, m.terminations, m.turnsPerRun)
	return m
}

// Hooks returns lifecycle hooks that feed these metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurn: func(ctx context.Context, e *domain.TurnEvent) {
			status := "ok"
			if e.IsError {
				status = "error"
			}
			m.turns.WithLabelValues(e.Participant, status).Inc()
		},
		OnHandoff: func(ctx context.Context, e *domain.HandoffEvent) {
			m.handoffs.WithLabelValues(e.From, e.To, string(e.Via)).Inc()
		},
		OnGate: func(ctx context.Context, e *domain.GateEvent) {
			m.gates.Inc()
		},
		OnTerminate: func(ctx context.Context, e *domain.TerminationEvent) {
			m.terminations.WithLabelValues(normalizeReason(e.Reason)).Inc()
			m.turnsPerRun.Observe(float64(e.Turns))
		},
	}
}

// TurnCounter returns the turn counter for a participant/status pair.
func (m *Metrics) TurnCounter(participant, status string) prometheus.Counter {
	return m.turns.WithLabelValues(participant, status)
}

// TerminationCounter returns the termination counter for a reason label.
func (m *Metrics) TerminationCounter(reason string) prometheus.Counter {
	return m.terminations.WithLabelValues(reason)
}

// normalizeReason keeps the label cardinality bounded: fatal errors carry
// free-form text as the state reason and are bucketed as "error".
func normalizeReason(reason string) string {
	switch reason {
	case domain.ReasonHandoffTerminate, domain.ReasonDirective, domain.ReasonEvaluator,
		domain.ReasonMaxTurns, domain.ReasonCanceled:
		return reason
	default:
		return "error"
	}
}
