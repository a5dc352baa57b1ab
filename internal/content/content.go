// Package content owns a project's stored entities and their relations.
//
// Content keeps the spatial index, the circuit and cable graphs, the identity
// registry and the compatibility matcher consistent with each other: an
// entity deleted from the index leaves no edges or registry entries behind,
// and stage renumbering is applied to every entity at once.
//
// Content is not safe for concurrent use.
package content

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/staged/internal/compat"
	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/metrics"
	"github.com/roach88/staged/internal/model"
	"github.com/roach88/staged/internal/spatial"
	"github.com/roach88/staged/internal/wires"
)

var (
	// ErrConflict is returned when a compatible occupant already holds the
	// coordinate for an overlapping stage range.
	ErrConflict = errors.New("conflicting occupant")

	// ErrDuplicateID is returned when an entity with the same ID is stored.
	ErrDuplicateID = errors.New("duplicate entity id")
)

// Content is the aggregate of stored entities and relations.
type Content struct {
	index    *spatial.Index
	circuit  *wires.CircuitGraph
	cable    *wires.CableGraph
	registry *compat.HandleRegistry
	matcher  *compat.Matcher
	byID     map[entity.ID]*entity.Entity

	maxCableDegree int
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// Option configures Content.
type Option func(*Content)

// WithMaxCableDegree sets the cable degree bound.
//
// Default: wires.DefaultMaxCableDegree (5)
func WithMaxCableDegree(n int) Option {
	return func(c *Content) {
		c.maxCableDegree = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Content) {
		c.logger = l
	}
}

// WithMetrics records cable degree rejections to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Content) {
		c.metrics = m
	}
}

// New creates empty content. A nil classifier compares names exactly.
func New(classifier compat.Classifier, opts ...Option) *Content {
	c := &Content{
		index:          spatial.New(),
		registry:       compat.NewHandleRegistry(),
		byID:           make(map[entity.ID]*entity.Entity),
		maxCableDegree: wires.DefaultMaxCableDegree,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.circuit = wires.NewCircuitGraph(c.index)
	c.cable = wires.NewCableGraph(c.index, c.maxCableDegree)
	c.matcher = compat.NewMatcher(c.index, classifier, compat.WithRegistry(c.registry))
	return c
}

func (c *Content) Circuit() *wires.CircuitGraph     { return c.circuit }
func (c *Content) Cable() *wires.CableGraph         { return c.cable }
func (c *Content) Registry() *compat.HandleRegistry { return c.registry }
func (c *Content) Matcher() *compat.Matcher         { return c.matcher }
func (c *Content) Logger() *slog.Logger             { return c.logger }
func (c *Content) Metrics() *metrics.Metrics        { return c.metrics }

// Add stores e.
//
// An entity may share a coordinate with another only when the two are not
// compatible, their stage ranges are disjoint, or either is a settings
// remnant. Otherwise Add returns ErrConflict.
func (c *Content) Add(e *entity.Entity) error {
	if _, ok := c.byID[e.ID()]; ok {
		return fmt.Errorf("add %s: %w", e.ID(), ErrDuplicateID)
	}
	if other, ok := c.conflictAt(e, e.Position()); ok {
		return fmt.Errorf("add %s at %s: %w with %s", e.Name(), e.Position(), ErrConflict, other.ID())
	}
	c.insert(e)
	return nil
}

// Restore stores a previously persisted e without the coexistence check.
// Stage renumbering and bound edits can leave compatible occupants
// overlapping, and a saved project must always load back.
func (c *Content) Restore(e *entity.Entity) error {
	if _, ok := c.byID[e.ID()]; ok {
		return fmt.Errorf("restore %s: %w", e.ID(), ErrDuplicateID)
	}
	c.insert(e)
	return nil
}

func (c *Content) insert(e *entity.Entity) {
	c.index.Add(e)
	c.byID[e.ID()] = e
	c.logger.Debug("entity added",
		"id", e.ID(),
		"name", e.Name(),
		"position", e.Position().String(),
		"first_stage", int(e.FirstStage()),
	)
}

func (c *Content) conflictAt(e *entity.Entity, pos model.Position) (*entity.Entity, bool) {
	if e.IsSettingsRemnant() || c.matcher.ExactIdentity(e.Name()) {
		return nil, false
	}
	dir := e.Direction()
	query := compat.Descriptor{Name: e.Name(), Position: pos, Orientation: &dir}
	var conflict *entity.Entity
	c.index.ForEachAt(pos, func(o *entity.Entity) bool {
		if o == e || o.IsSettingsRemnant() || !o.OverlapsRange(e) {
			return true
		}
		if c.matcher.Compatible(o, query) {
			conflict = o
			return false
		}
		return true
	})
	return conflict, conflict != nil
}

// Delete removes e and every edge and registry entry referencing it. It
// reports whether e was stored.
func (c *Content) Delete(e *entity.Entity) bool {
	if !c.index.Delete(e) {
		return false
	}
	delete(c.byID, e.ID())
	circuits := c.circuit.Purge(e)
	cables := c.cable.Purge(e)
	c.registry.Forget(e)
	c.logger.Debug("entity deleted",
		"id", e.ID(),
		"circuit_edges", circuits,
		"cable_edges", cables,
	)
	return true
}

// Relocate moves e to pos, applying the same coexistence rule as Add.
func (c *Content) Relocate(e *entity.Entity, pos model.Position) error {
	if !c.index.Contains(e) {
		return fmt.Errorf("relocate %s: %w", e.ID(), spatial.ErrNotMember)
	}
	if other, ok := c.conflictAt(e, pos); ok {
		return fmt.Errorf("relocate %s to %s: %w with %s", e.ID(), pos, ErrConflict, other.ID())
	}
	return c.index.Relocate(e, pos)
}

// At returns the entities stored at pos. The index itself stays private so
// every removal goes through Delete and purges the entity's edges.
func (c *Content) At(pos model.Position) []*entity.Entity {
	return c.index.At(pos)
}

// Get returns the entity with the given ID.
func (c *Content) Get(id entity.ID) (*entity.Entity, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// All returns every entity in position order.
func (c *Content) All() []*entity.Entity {
	return c.index.All()
}

// Len returns the number of stored entities.
func (c *Content) Len() int {
	return c.index.Len()
}

// Find returns the compatible entity described by d.
func (c *Content) Find(d compat.Descriptor) (*entity.Entity, bool) {
	return c.matcher.Find(d)
}

// ConnectCircuit adds a circuit edge.
func (c *Content) ConnectCircuit(e wires.CircuitEdge) bool {
	return c.circuit.Add(e)
}

// DisconnectCircuit removes a circuit edge.
func (c *Content) DisconnectCircuit(e wires.CircuitEdge) bool {
	return c.circuit.Remove(e)
}

// ConnectCable adds a cable and records degree-bound rejections.
func (c *Content) ConnectCable(a, b *entity.Entity) wires.CableResult {
	res := c.cable.Add(a, b)
	if res == wires.CableMaxDegreeExceeded {
		c.metrics.CableRejected()
	}
	return res
}

// DisconnectCable removes a cable.
func (c *Content) DisconnectCable(a, b *entity.Entity) bool {
	return c.cable.Remove(a, b)
}

// InsertStage inserts a new stage before at in every entity. Panics if
// at < 1.
func (c *Content) InsertStage(at model.Stage) {
	if at < 1 {
		panic(fmt.Sprintf("content: insert stage %d: stage must be >= 1", at))
	}
	all := c.index.All()
	for _, e := range all {
		e.InsertStage(at)
	}
	c.logger.Info("stage inserted", "at", int(at), "entities", len(all))
}

// DeleteStage merges stage at into its predecessor in every entity. Panics
// if at < 1.
func (c *Content) DeleteStage(at model.Stage) {
	if at < 1 {
		panic(fmt.Sprintf("content: delete stage %d: stage must be >= 1", at))
	}
	all := c.index.All()
	for _, e := range all {
		e.DeleteStage(at)
	}
	c.logger.Info("stage deleted", "at", int(at), "entities", len(all))
}
