// Package wires holds the two undirected relations between entities.
//
// The circuit relation is a multigraph: a pair of entities may share several
// edges as long as they differ in ports or channel. Edges are symmetric, so
// (A, p1, B, p2, c) and (B, p2, A, p1, c) are the same edge.
//
// The cable relation is a simple graph with a global per-node degree bound.
// Adds are checked against the bound on both endpoints before either side is
// mutated.
//
// Both graphs only accept endpoints that are members of the owning index and
// must be purged when an entity leaves it.
package wires

import "github.com/roach88/staged/internal/entity"

// Membership reports whether an entity may take part in a relation.
type Membership interface {
	Contains(e *entity.Entity) bool
}
