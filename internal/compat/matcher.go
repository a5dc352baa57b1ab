package compat

import (
	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
	"github.com/roach88/staged/internal/spatial"
)

// Descriptor describes a candidate object to match against stored entities.
type Descriptor struct {
	Name     string
	Position model.Position
	// Orientation nil matches any stored orientation.
	Orientation *model.Direction
	// Stage 0 means no stage constraint.
	Stage model.Stage
}

// Matcher answers compatibility queries over a spatial index.
type Matcher struct {
	index      *spatial.Index
	classifier Classifier
	registry   Registry
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithRegistry sets the identity registry used by FindExact.
func WithRegistry(r Registry) MatcherOption {
	return func(m *Matcher) {
		m.registry = r
	}
}

// NewMatcher creates a matcher over index. A nil classifier means names
// must match exactly and orientations must be equal.
func NewMatcher(index *spatial.Index, classifier Classifier, opts ...MatcherOption) *Matcher {
	m := &Matcher{index: index, classifier: classifier}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Classifier returns the classifier in use, which may be nil.
func (m *Matcher) Classifier() Classifier {
	return m.classifier
}

// Find returns the compatible entity at d.Position with the smallest first
// stage. Ties keep index order. Exact-identity names never match here; use
// FindExact.
func (m *Matcher) Find(d Descriptor) (*entity.Entity, bool) {
	if m.ExactIdentity(d.Name) {
		return nil, false
	}
	var best *entity.Entity
	m.index.ForEachAt(d.Position, func(e *entity.Entity) bool {
		if !m.Compatible(e, d) {
			return true
		}
		if best == nil || e.FirstStage() < best.FirstStage() {
			best = e
		}
		return true
	})
	return best, best != nil
}

// FindExact resolves an exact-identity object through the registry only.
// Stale handles are left to the registry to drop.
func (m *Matcher) FindExact(h model.Handle) (*entity.Entity, bool) {
	if m.registry == nil {
		return nil, false
	}
	return m.registry.Lookup(h)
}

// ExactIdentity reports whether name belongs to a category that is matched
// by identity only.
func (m *Matcher) ExactIdentity(name string) bool {
	if m.classifier == nil {
		return false
	}
	cat, ok := m.classifier.CategoryOf(name)
	return ok && m.classifier.ExactIdentity(cat)
}

// Compatible reports whether e satisfies d, ignoring position.
func (m *Matcher) Compatible(e *entity.Entity, d Descriptor) bool {
	if d.Stage != 0 && !e.InRange(d.Stage) {
		return false
	}
	cat, sameCategory := m.sameCategory(e.Name(), d.Name)
	if !sameCategory {
		return false
	}
	if d.Orientation == nil {
		return true
	}
	return m.orientationMatches(cat, e.Direction(), *d.Orientation)
}

// SameCategory reports whether two names are interchangeable.
func (m *Matcher) SameCategory(a, b string) bool {
	_, ok := m.sameCategory(a, b)
	return ok
}

// sameCategory returns the shared category (empty when matched by exact
// name without a category).
func (m *Matcher) sameCategory(a, b string) (Category, bool) {
	var catA Category
	var okA bool
	if m.classifier != nil {
		catA, okA = m.classifier.CategoryOf(a)
	}
	if a == b {
		return catA, true
	}
	if !okA {
		return "", false
	}
	catB, okB := m.classifier.CategoryOf(b)
	if !okB || catA != catB {
		return "", false
	}
	return catA, true
}

func (m *Matcher) orientationMatches(cat Category, stored, query model.Direction) bool {
	policy := OrientationExact
	if m.classifier != nil && cat != "" {
		policy = m.classifier.OrientationPolicy(cat)
	}
	switch policy {
	case OrientationAny:
		return true
	case OrientationOppositeToo:
		return stored == query || stored == query.Opposite()
	default:
		return stored == query
	}
}
