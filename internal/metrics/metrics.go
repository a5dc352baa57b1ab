// Package metrics exposes Prometheus counters for reconciliation and cable
// capacity signals.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for reconciled edges.
const (
	OutcomeMatching = "matching"
	OutcomeExtra    = "extra"
	OutcomeMissing  = "missing"
	OutcomeSkipped  = "skipped"
)

// Relation labels.
const (
	RelationCircuit = "circuit"
	RelationCable   = "cable"
)

// Metrics holds the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// reconcileEdges counts classified edges.
	// Labels: relation (circuit, cable), outcome (matching, extra, missing, skipped)
	reconcileEdges *prometheus.CounterVec

	// cableRejections counts cable adds refused by the degree bound.
	cableRejections prometheus.Counter
}

// New creates the counters and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reconcileEdges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "staged",
			Subsystem: "reconcile",
			Name:      "edges_total",
			Help:      "Edges classified during wire reconciliation",
		}, []string{"relation", "outcome"}),
		cableRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "staged",
			Name:      "cable_degree_rejections_total",
			Help:      "Cable connections refused because an endpoint was at the degree bound",
		}),
	}
}

// ObserveEdges adds n to the edge counter for relation and outcome.
func (m *Metrics) ObserveEdges(relation, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconcileEdges.WithLabelValues(relation, outcome).Add(float64(n))
}

// CableRejected records one degree-bound rejection.
func (m *Metrics) CableRejected() {
	if m == nil {
		return
	}
	m.cableRejections.Inc()
}
