package wires

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/staged/internal/entity"
)

// Port identifies a circuit connector on an entity (for example input or
// output side of a combinator).
type Port uint8

// Channel is the wire color of a circuit edge.
type Channel uint8

const (
	Red Channel = iota + 1
	Green
)

func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	default:
		return fmt.Sprintf("Channel(%d)", uint8(c))
	}
}

// ParseChannel parses "red" or "green".
func ParseChannel(s string) (Channel, error) {
	switch s {
	case "red":
		return Red, nil
	case "green":
		return Green, nil
	default:
		return 0, fmt.Errorf("unknown channel %q: must be red or green", s)
	}
}

// CircuitEdge is a labeled connection between two entity ports.
type CircuitEdge struct {
	From     *entity.Entity
	To       *entity.Entity
	FromPort Port
	ToPort   Port
	Channel  Channel
}

// Reverse returns the same edge seen from the other endpoint.
func (e CircuitEdge) Reverse() CircuitEdge {
	return CircuitEdge{From: e.To, To: e.From, FromPort: e.ToPort, ToPort: e.FromPort, Channel: e.Channel}
}

// Equal reports whether two edges are the same under symmetric equality.
func (e CircuitEdge) Equal(o CircuitEdge) bool {
	if e.Channel != o.Channel {
		return false
	}
	same := e.From == o.From && e.To == o.To && e.FromPort == o.FromPort && e.ToPort == o.ToPort
	flipped := e.From == o.To && e.To == o.From && e.FromPort == o.ToPort && e.ToPort == o.FromPort
	return same || flipped
}

// OrientedFrom returns the edge oriented so that n is the From endpoint.
// It reports false when n is not an endpoint.
func (e CircuitEdge) OrientedFrom(n *entity.Entity) (CircuitEdge, bool) {
	switch n {
	case e.From:
		return e, true
	case e.To:
		return e.Reverse(), true
	default:
		return CircuitEdge{}, false
	}
}

func (e CircuitEdge) String() string {
	return fmt.Sprintf("%s:%d -%s- %s:%d", e.From.ID(), e.FromPort, e.Channel, e.To.ID(), e.ToPort)
}

// edgeKey identifies an edge within one endpoint pair, independent of the
// direction it was added in.
type edgeKey struct {
	lowPort  Port
	highPort Port
	channel  Channel
}

func (e CircuitEdge) key() edgeKey {
	lowFirst := e.From.ID() < e.To.ID() || (e.From == e.To && e.FromPort <= e.ToPort)
	if lowFirst {
		return edgeKey{lowPort: e.FromPort, highPort: e.ToPort, channel: e.Channel}
	}
	return edgeKey{lowPort: e.ToPort, highPort: e.FromPort, channel: e.Channel}
}

func compareKeys(a, b edgeKey) int {
	return cmp.Or(
		cmp.Compare(a.channel, b.channel),
		cmp.Compare(a.lowPort, b.lowPort),
		cmp.Compare(a.highPort, b.highPort),
	)
}

// CircuitGraph is the undirected multi-edge circuit relation.
// Not safe for concurrent use.
type CircuitGraph struct {
	members Membership
	adj     map[*entity.Entity]map[*entity.Entity]map[edgeKey]CircuitEdge
}

// NewCircuitGraph returns an empty graph whose endpoints must be members.
func NewCircuitGraph(members Membership) *CircuitGraph {
	return &CircuitGraph{
		members: members,
		adj:     make(map[*entity.Entity]map[*entity.Entity]map[edgeKey]CircuitEdge),
	}
}

// Add inserts e. It reports false when an endpoint is not a member or an
// equal edge already exists.
func (g *CircuitGraph) Add(e CircuitEdge) bool {
	if e.From == nil || e.To == nil || !g.members.Contains(e.From) || !g.members.Contains(e.To) {
		return false
	}
	if g.Has(e) {
		return false
	}
	k := e.key()
	g.set(e.From, e.To, k, e)
	if e.From != e.To {
		g.set(e.To, e.From, k, e)
	}
	return true
}

func (g *CircuitGraph) set(a, b *entity.Entity, k edgeKey, e CircuitEdge) {
	byNeighbor := g.adj[a]
	if byNeighbor == nil {
		byNeighbor = make(map[*entity.Entity]map[edgeKey]CircuitEdge)
		g.adj[a] = byNeighbor
	}
	edges := byNeighbor[b]
	if edges == nil {
		edges = make(map[edgeKey]CircuitEdge)
		byNeighbor[b] = edges
	}
	edges[k] = e
}

// Has reports whether an edge equal to e is stored.
func (g *CircuitGraph) Has(e CircuitEdge) bool {
	if e.From == nil || e.To == nil {
		return false
	}
	_, ok := g.adj[e.From][e.To][e.key()]
	return ok
}

// Remove deletes e from both endpoints, cleaning up empty structures. It
// reports whether the edge existed.
func (g *CircuitGraph) Remove(e CircuitEdge) bool {
	if !g.Has(e) {
		return false
	}
	k := e.key()
	g.unset(e.From, e.To, k)
	if e.From != e.To {
		g.unset(e.To, e.From, k)
	}
	return true
}

func (g *CircuitGraph) unset(a, b *entity.Entity, k edgeKey) {
	byNeighbor := g.adj[a]
	edges := byNeighbor[b]
	delete(edges, k)
	if len(edges) == 0 {
		delete(byNeighbor, b)
	}
	if len(byNeighbor) == 0 {
		delete(g.adj, a)
	}
}

// EdgesOf returns, for each neighbor of n, the edges shared with it. Each
// edge is oriented from n. It reports false when n has no edges.
func (g *CircuitGraph) EdgesOf(n *entity.Entity) (map[*entity.Entity][]CircuitEdge, bool) {
	byNeighbor, ok := g.adj[n]
	if !ok {
		return nil, false
	}
	out := make(map[*entity.Entity][]CircuitEdge, len(byNeighbor))
	for other, edges := range byNeighbor {
		out[other] = orientedEdges(n, edges)
	}
	return out, true
}

// EdgesBetween returns the edges between a and b, oriented from a.
func (g *CircuitGraph) EdgesBetween(a, b *entity.Entity) []CircuitEdge {
	return orientedEdges(a, g.adj[a][b])
}

func orientedEdges(n *entity.Entity, edges map[edgeKey]CircuitEdge) []CircuitEdge {
	keys := slices.SortedFunc(maps.Keys(edges), compareKeys)
	out := make([]CircuitEdge, 0, len(keys))
	for _, k := range keys {
		e, _ := edges[k].OrientedFrom(n)
		out = append(out, e)
	}
	return out
}

// Degree returns the number of edges touching n.
func (g *CircuitGraph) Degree(n *entity.Entity) int {
	total := 0
	for _, edges := range g.adj[n] {
		total += len(edges)
	}
	return total
}

// Purge removes every edge touching n and returns how many were removed.
func (g *CircuitGraph) Purge(n *entity.Entity) int {
	byNeighbor, ok := g.adj[n]
	if !ok {
		return 0
	}
	removed := 0
	for other, edges := range byNeighbor {
		removed += len(edges)
		if other == n {
			continue
		}
		theirs := g.adj[other]
		delete(theirs, n)
		if len(theirs) == 0 {
			delete(g.adj, other)
		}
	}
	delete(g.adj, n)
	return removed
}

// All returns every edge once, ordered by endpoint IDs then ports.
func (g *CircuitGraph) All() []CircuitEdge {
	var out []CircuitEdge
	for a, byNeighbor := range g.adj {
		for b, edges := range byNeighbor {
			if a.ID() > b.ID() {
				continue
			}
			out = append(out, orientedEdges(a, edges)...)
		}
	}
	slices.SortFunc(out, func(x, y CircuitEdge) int {
		return cmp.Or(
			cmp.Compare(x.From.ID(), y.From.ID()),
			cmp.Compare(x.To.ID(), y.To.ID()),
			compareKeys(x.key(), y.key()),
		)
	})
	return out
}

// Len returns the number of stored edges.
func (g *CircuitGraph) Len() int {
	total := 0
	for a, byNeighbor := range g.adj {
		for b, edges := range byNeighbor {
			if a == b {
				total += 2 * len(edges)
			} else {
				total += len(edges)
			}
		}
	}
	return total / 2
}
