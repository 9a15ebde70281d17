// Package metrics holds the Prometheus collectors for editor and questionnaire events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	publishTotal      *prometheus.CounterVec
	revertTotal       prometheus.Counter
	navigationSteps   *prometheus.CounterVec
	compileSoftErrors *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		publishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chartflow_publish_total",
			Help: "Publish attempts by result",
		}, []string{"result"}),
		revertTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "chartflow_revert_total",
			Help: "Charts reverted to a published version",
		}),
		navigationSteps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chartflow_navigation_steps_total",
			Help: "Questionnaire transitions by outcome",
		}, []string{"outcome"}),
		compileSoftErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chartflow_compile_soft_failures_total",
			Help: "Branches left unresolved by the graph compiler, by reason",
		}, []string{"reason"}),
	}
}

// Publish records a publish attempt. result is "ok" or the rejection reason.
func (m *Metrics) Publish(result string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(result).Inc()
}

// Revert records a successful revert.
func (m *Metrics) Revert() {
	if m == nil {
		return
	}
	m.revertTotal.Inc()
}

// Step records a navigation outcome such as "question", "terminal" or "dead_end".
func (m *Metrics) Step(outcome string) {
	if m == nil {
		return
	}
	m.navigationSteps.WithLabelValues(outcome).Inc()
}

// CompileProblem records a soft compiler failure.
func (m *Metrics) CompileProblem(reason string) {
	if m == nil {
		return
	}
	m.compileSoftErrors.WithLabelValues(reason).Inc()
}
