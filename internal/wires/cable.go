package wires

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/staged/internal/entity"
)

// DefaultMaxCableDegree is the default number of cables a node may hold.
const DefaultMaxCableDegree = 5

// CableResult is the outcome of CableGraph.Add.
type CableResult uint8

const (
	CableAdded CableResult = iota
	CableAlreadyExists
	// CableError means the pair is invalid: a self-pair or a non-member.
	CableError
	// CableMaxDegreeExceeded means an endpoint is already at the degree bound.
	CableMaxDegreeExceeded
)

func (r CableResult) String() string {
	switch r {
	case CableAdded:
		return "added"
	case CableAlreadyExists:
		return "already-exists"
	case CableError:
		return "error"
	case CableMaxDegreeExceeded:
		return "max-degree-exceeded"
	default:
		return fmt.Sprintf("CableResult(%d)", uint8(r))
	}
}

// CablePair is an unordered cable edge. A has the smaller ID.
type CablePair struct {
	A *entity.Entity
	B *entity.Entity
}

// NewCablePair orders a and b by ID.
func NewCablePair(a, b *entity.Entity) CablePair {
	if b.ID() < a.ID() {
		a, b = b, a
	}
	return CablePair{A: a, B: b}
}

// CableGraph is the undirected, degree-bounded cable relation.
// Not safe for concurrent use.
type CableGraph struct {
	members   Membership
	maxDegree int
	adj       map[*entity.Entity]map[*entity.Entity]struct{}
}

// NewCableGraph returns an empty graph. A maxDegree <= 0 selects
// DefaultMaxCableDegree.
func NewCableGraph(members Membership, maxDegree int) *CableGraph {
	if maxDegree <= 0 {
		maxDegree = DefaultMaxCableDegree
	}
	return &CableGraph{
		members:   members,
		maxDegree: maxDegree,
		adj:       make(map[*entity.Entity]map[*entity.Entity]struct{}),
	}
}

// MaxDegree returns the per-node degree bound.
func (g *CableGraph) MaxDegree() int {
	return g.maxDegree
}

// Add connects a and b. Both degree bounds are checked before either side
// changes.
func (g *CableGraph) Add(a, b *entity.Entity) CableResult {
	if a == nil || b == nil || a == b || !g.members.Contains(a) || !g.members.Contains(b) {
		return CableError
	}
	if g.Has(a, b) {
		return CableAlreadyExists
	}
	if len(g.adj[a]) >= g.maxDegree || len(g.adj[b]) >= g.maxDegree {
		return CableMaxDegreeExceeded
	}
	g.link(a, b)
	g.link(b, a)
	return CableAdded
}

func (g *CableGraph) link(a, b *entity.Entity) {
	set := g.adj[a]
	if set == nil {
		set = make(map[*entity.Entity]struct{})
		g.adj[a] = set
	}
	set[b] = struct{}{}
}

func (g *CableGraph) unlink(a, b *entity.Entity) {
	set := g.adj[a]
	delete(set, b)
	if len(set) == 0 {
		delete(g.adj, a)
	}
}

// Has reports whether a and b are connected.
func (g *CableGraph) Has(a, b *entity.Entity) bool {
	_, ok := g.adj[a][b]
	return ok
}

// Remove disconnects a and b. It reports whether they were connected.
func (g *CableGraph) Remove(a, b *entity.Entity) bool {
	if !g.Has(a, b) {
		return false
	}
	g.unlink(a, b)
	g.unlink(b, a)
	return true
}

// Neighbors returns the entities cabled to n, ordered by ID.
func (g *CableGraph) Neighbors(n *entity.Entity) []*entity.Entity {
	return slices.SortedFunc(maps.Keys(g.adj[n]), func(x, y *entity.Entity) int {
		return cmp.Compare(x.ID(), y.ID())
	})
}

// Degree returns the number of cables on n.
func (g *CableGraph) Degree(n *entity.Entity) int {
	return len(g.adj[n])
}

// Purge removes every cable on n and returns how many were removed.
func (g *CableGraph) Purge(n *entity.Entity) int {
	set, ok := g.adj[n]
	if !ok {
		return 0
	}
	for other := range set {
		g.unlink(other, n)
	}
	delete(g.adj, n)
	return len(set)
}

// All returns every cable once, ordered by endpoint IDs.
func (g *CableGraph) All() []CablePair {
	var out []CablePair
	for a, set := range g.adj {
		for b := range set {
			if a.ID() < b.ID() {
				out = append(out, CablePair{A: a, B: b})
			}
		}
	}
	slices.SortFunc(out, func(x, y CablePair) int {
		return cmp.Or(cmp.Compare(x.A.ID(), y.A.ID()), cmp.Compare(x.B.ID(), y.B.ID()))
	})
	return out
}

// Len returns the number of cables.
func (g *CableGraph) Len() int {
	total := 0
	for _, set := range g.adj {
		total += len(set)
	}
	return total / 2
}
