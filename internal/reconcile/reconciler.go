// Package reconcile compares an entity's stored connections with what the
// live world reports and, depending on the mode, fixes one side to match
// the other.
package reconcile

import (
	"cmp"
	"iter"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/staged/internal/compat"
	"github.com/roach88/staged/internal/content"
	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/metrics"
	"github.com/roach88/staged/internal/model"
	"github.com/roach88/staged/internal/wires"
)

// Reconciler reconciles stored relations against a live world.
type Reconciler struct {
	content *content.Content
	world   World
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. Default: the content's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// WithMetrics sets the metrics sink. Default: the content's metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// New creates a reconciler over c and w.
func New(c *content.Content, w World, opts ...Option) *Reconciler {
	r := &Reconciler{
		content: c,
		world:   w,
		logger:  c.Logger(),
		metrics: c.Metrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile classifies e's circuit and cable connections at stage and
// applies the fixes for mode. Entities without a live handle at stage are
// skipped.
func (r *Reconciler) Reconcile(e *entity.Entity, stage model.Stage, mode Mode) Result {
	res := Result{Entity: e, Stage: stage, Mode: mode}
	h, ok := e.LiveAt(stage)
	if !ok {
		res.Skipped = true
		return res
	}

	skipped := r.classifyCircuit(e, h, stage, &res)
	r.classifyCable(e, h, stage, &res)

	switch mode {
	case ModeApply:
		r.applyCircuit(h, stage, res.Circuit)
		r.applyCable(h, stage, res.Cable)
	case ModeSave:
		r.saveCircuit(e, res.Circuit)
		res.CableRejected = r.saveCable(e, res.Cable)
	}

	r.observe(res, skipped)
	r.logger.Debug("entity reconciled",
		"id", e.ID(),
		"stage", int(stage),
		"mode", mode.String(),
		"circuit_matching", len(res.Circuit.Matching),
		"circuit_extra", len(res.Circuit.Extra),
		"circuit_missing", len(res.Circuit.Missing),
		"cable_matching", len(res.Cable.Matching),
		"cable_extra", len(res.Cable.Extra),
		"cable_missing", len(res.Cable.Missing),
		"cable_rejected", len(res.CableRejected),
	)
	return res
}

// ReconcileStage reconciles every stored entity at stage, in index order.
func (r *Reconciler) ReconcileStage(stage model.Stage, mode Mode) []Result {
	all := r.content.All()
	results := make([]Result, 0, len(all))
	for _, e := range all {
		if !e.InRange(stage) {
			continue
		}
		results = append(results, r.Reconcile(e, stage, mode))
	}
	r.logger.Info("stage reconciled", "stage", int(stage), "mode", mode.String(), "entities", len(results))
	return results
}

// Resolve maps a live handle to the stored entity it represents at stage:
// first through the identity registry, then by compatibility at the
// handle's reported position. Exact-identity kinds resolve through the
// registry alone.
func (r *Reconciler) Resolve(h model.Handle, stage model.Stage) (*entity.Entity, bool) {
	m := r.content.Matcher()
	if e, ok := m.FindExact(h); ok {
		return e, true
	}
	if !model.IsLive(h) {
		return nil, false
	}
	desc, ok := r.world.Describe(h)
	if !ok || m.ExactIdentity(desc.Name) {
		return nil, false
	}
	return m.Find(compat.Descriptor{
		Name:        desc.Name,
		Position:    desc.Position,
		Orientation: desc.Direction,
		Stage:       stage,
	})
}

// classifyCircuit fills res.Circuit and returns the number of live
// self-loops skipped.
func (r *Reconciler) classifyCircuit(e *entity.Entity, h model.Handle, stage model.Stage, res *Result) int {
	pending := make(map[*entity.Entity][]wires.CircuitEdge)
	if stored, ok := r.content.Circuit().EdgesOf(e); ok {
		for other, edges := range stored {
			if other == e {
				continue
			}
			pending[other] = slices.Clone(edges)
		}
	}

	skipped := 0
	for _, conn := range r.world.CircuitConnections(h) {
		if conn.Other == h {
			skipped++
			continue
		}
		other, ok := r.Resolve(conn.Other, stage)
		if !ok {
			res.Circuit.Extra = append(res.Circuit.Extra, CircuitExtra{Connection: conn})
			continue
		}
		if other == e {
			skipped++
			continue
		}
		x := CircuitExtra{Connection: conn, Other: other}
		candidate := x.Edge(e)
		edges := pending[other]
		i := slices.IndexFunc(edges, candidate.Equal)
		if i < 0 {
			res.Circuit.Extra = append(res.Circuit.Extra, x)
			continue
		}
		res.Circuit.Matching = append(res.Circuit.Matching, edges[i])
		pending[other] = slices.Delete(edges, i, i+1)
	}

	for _, other := range sortedByID(maps.Keys(pending)) {
		if _, live := other.LiveAt(stage); !live {
			continue
		}
		res.Circuit.Missing = append(res.Circuit.Missing, pending[other]...)
	}
	return skipped
}

func (r *Reconciler) classifyCable(e *entity.Entity, h model.Handle, stage model.Stage, res *Result) {
	pending := make(map[*entity.Entity]bool)
	for _, n := range r.content.Cable().Neighbors(e) {
		pending[n] = true
	}

	for _, nh := range r.world.CableNeighbors(h) {
		if nh == h {
			continue
		}
		other, ok := r.Resolve(nh, stage)
		if ok && other == e {
			continue
		}
		if !ok {
			res.Cable.Extra = append(res.Cable.Extra, CableExtra{Handle: nh})
			continue
		}
		if pending[other] {
			delete(pending, other)
			res.Cable.Matching = append(res.Cable.Matching, other)
			continue
		}
		res.Cable.Extra = append(res.Cable.Extra, CableExtra{Handle: nh, Other: other})
	}

	for _, other := range sortedByID(maps.Keys(pending)) {
		if _, live := other.LiveAt(stage); live {
			res.Cable.Missing = append(res.Cable.Missing, other)
		}
	}
}

func (r *Reconciler) applyCircuit(h model.Handle, stage model.Stage, c CircuitClassification) {
	for _, x := range c.Extra {
		if !r.world.DisconnectCircuit(h, x.Connection) {
			r.logger.Debug("live circuit disconnect failed", "from_port", int(x.Connection.FromPort), "channel", x.Connection.Channel.String())
		}
	}
	for _, edge := range c.Missing {
		oh, ok := edge.To.LiveAt(stage)
		if !ok {
			continue
		}
		conn := CircuitConnection{Other: oh, FromPort: edge.FromPort, ToPort: edge.ToPort, Channel: edge.Channel}
		if !r.world.ConnectCircuit(h, conn) {
			r.logger.Debug("live circuit connect failed", "edge", edge.String())
		}
	}
}

func (r *Reconciler) applyCable(h model.Handle, stage model.Stage, c CableClassification) {
	for _, x := range c.Extra {
		r.world.DisconnectCable(h, x.Handle)
	}
	for _, other := range c.Missing {
		oh, ok := other.LiveAt(stage)
		if !ok {
			continue
		}
		if !r.world.ConnectCable(h, oh) {
			r.logger.Debug("live cable connect failed", "other", other.ID())
		}
	}
}

func (r *Reconciler) saveCircuit(e *entity.Entity, c CircuitClassification) {
	for _, edge := range c.Missing {
		r.content.DisconnectCircuit(edge)
	}
	for _, x := range c.Extra {
		if x.Resolved() {
			r.content.ConnectCircuit(x.Edge(e))
		}
	}
}

// saveCable removes stale cables before adding new ones so additions see
// the freed capacity. Degree-bound rejections are collected, not fatal.
func (r *Reconciler) saveCable(e *entity.Entity, c CableClassification) []*entity.Entity {
	for _, other := range c.Missing {
		r.content.DisconnectCable(e, other)
	}
	var rejected []*entity.Entity
	for _, x := range c.Extra {
		if !x.Resolved() {
			continue
		}
		if r.content.ConnectCable(e, x.Other) == wires.CableMaxDegreeExceeded {
			rejected = append(rejected, x.Other)
			r.logger.Warn("cable degree bound reached",
				"id", e.ID(),
				"other", x.Other.ID(),
				"max_degree", r.content.Cable().MaxDegree(),
			)
		}
	}
	return rejected
}

func (r *Reconciler) observe(res Result, skipped int) {
	r.metrics.ObserveEdges(metrics.RelationCircuit, metrics.OutcomeMatching, len(res.Circuit.Matching))
	r.metrics.ObserveEdges(metrics.RelationCircuit, metrics.OutcomeExtra, len(res.Circuit.Extra))
	r.metrics.ObserveEdges(metrics.RelationCircuit, metrics.OutcomeMissing, len(res.Circuit.Missing))
	r.metrics.ObserveEdges(metrics.RelationCircuit, metrics.OutcomeSkipped, skipped)
	r.metrics.ObserveEdges(metrics.RelationCable, metrics.OutcomeMatching, len(res.Cable.Matching))
	r.metrics.ObserveEdges(metrics.RelationCable, metrics.OutcomeExtra, len(res.Cable.Extra))
	r.metrics.ObserveEdges(metrics.RelationCable, metrics.OutcomeMissing, len(res.Cable.Missing))
}

func sortedByID(seq iter.Seq[*entity.Entity]) []*entity.Entity {
	return slices.SortedFunc(seq, func(a, b *entity.Entity) int {
		return cmp.Compare(a.ID(), b.ID())
	})
}
