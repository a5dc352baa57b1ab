package testutil

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/staged/internal/model"
	"github.com/roach88/staged/internal/reconcile"
)

// Handle is a fake live object.
type Handle struct {
	Unit      int64
	Name      string
	Position  model.Position
	Direction *model.Direction
	dead      bool
}

// Valid reports whether the object still exists.
func (h *Handle) Valid() bool { return h != nil && !h.dead }

func (h *Handle) String() string {
	if h == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d", h.Name, h.Unit)
}

// FakeWorld is an in-memory reconcile.World. Every mutation is appended to
// an operation log so tests can assert on what the reconciler did.
type FakeWorld struct {
	units    *Sequence
	circuits map[*Handle][]reconcile.CircuitConnection
	cables   map[*Handle]map[*Handle]struct{}
	ops      []string
}

var _ reconcile.World = (*FakeWorld)(nil)

// NewFakeWorld creates an empty world.
func NewFakeWorld() *FakeWorld {
	return &FakeWorld{
		units:    NewSequence(),
		circuits: make(map[*Handle][]reconcile.CircuitConnection),
		cables:   make(map[*Handle]map[*Handle]struct{}),
	}
}

// Spawn creates a live object.
func (w *FakeWorld) Spawn(name string, pos model.Position, dir *model.Direction) *Handle {
	return &Handle{Unit: w.units.Next(), Name: name, Position: pos, Direction: dir}
}

// Destroy invalidates h and drops its connections.
func (w *FakeWorld) Destroy(h *Handle) {
	for _, c := range w.circuits[h] {
		if o := c.Other.(*Handle); o != h {
			w.circuits[o] = slices.DeleteFunc(w.circuits[o], func(x reconcile.CircuitConnection) bool {
				return x.Other == model.Handle(h)
			})
		}
	}
	delete(w.circuits, h)
	for o := range w.cables[h] {
		delete(w.cables[o], h)
	}
	delete(w.cables, h)
	h.dead = true
}

// Ops returns the mutation log.
func (w *FakeWorld) Ops() []string {
	return slices.Clone(w.ops)
}

// ResetOps clears the mutation log.
func (w *FakeWorld) ResetOps() {
	w.ops = nil
}

func live(h model.Handle) (*Handle, bool) {
	fh, ok := h.(*Handle)
	return fh, ok && fh.Valid()
}

// Describe implements reconcile.World.
func (w *FakeWorld) Describe(h model.Handle) (reconcile.Description, bool) {
	fh, ok := live(h)
	if !ok {
		return reconcile.Description{}, false
	}
	return reconcile.Description{Name: fh.Name, Position: fh.Position, Direction: fh.Direction}, true
}

// CircuitConnections implements reconcile.World.
func (w *FakeWorld) CircuitConnections(h model.Handle) []reconcile.CircuitConnection {
	fh, ok := live(h)
	if !ok {
		return nil
	}
	return slices.Clone(w.circuits[fh])
}

// CableNeighbors implements reconcile.World. Neighbors are ordered by unit.
func (w *FakeWorld) CableNeighbors(h model.Handle) []model.Handle {
	fh, ok := live(h)
	if !ok {
		return nil
	}
	sorted := slices.SortedFunc(maps.Keys(w.cables[fh]), func(a, b *Handle) int {
		return cmp.Compare(a.Unit, b.Unit)
	})
	out := make([]model.Handle, len(sorted))
	for i, n := range sorted {
		out[i] = n
	}
	return out
}

func reverse(h *Handle, c reconcile.CircuitConnection) reconcile.CircuitConnection {
	return reconcile.CircuitConnection{Other: h, FromPort: c.ToPort, ToPort: c.FromPort, Channel: c.Channel}
}

func sameConnection(a, b reconcile.CircuitConnection) bool {
	return a.Other == b.Other && a.FromPort == b.FromPort && a.ToPort == b.ToPort && a.Channel == b.Channel
}

// ConnectCircuit implements reconcile.World.
func (w *FakeWorld) ConnectCircuit(h model.Handle, c reconcile.CircuitConnection) bool {
	a, ok := live(h)
	if !ok {
		return false
	}
	b, ok := live(c.Other)
	if !ok {
		return false
	}
	if slices.ContainsFunc(w.circuits[a], func(x reconcile.CircuitConnection) bool { return sameConnection(x, c) }) {
		return false
	}
	w.circuits[a] = append(w.circuits[a], c)
	if a != b {
		w.circuits[b] = append(w.circuits[b], reverse(a, c))
	}
	w.ops = append(w.ops, fmt.Sprintf("connect circuit %s:%d %s %s:%d", a, c.FromPort, c.Channel, b, c.ToPort))
	return true
}

// DisconnectCircuit implements reconcile.World.
func (w *FakeWorld) DisconnectCircuit(h model.Handle, c reconcile.CircuitConnection) bool {
	a, ok := h.(*Handle)
	if !ok {
		return false
	}
	i := slices.IndexFunc(w.circuits[a], func(x reconcile.CircuitConnection) bool { return sameConnection(x, c) })
	if i < 0 {
		return false
	}
	w.circuits[a] = slices.Delete(w.circuits[a], i, i+1)
	b, _ := c.Other.(*Handle)
	if b != nil && b != a {
		back := reverse(a, c)
		w.circuits[b] = slices.DeleteFunc(w.circuits[b], func(x reconcile.CircuitConnection) bool { return sameConnection(x, back) })
	}
	w.ops = append(w.ops, fmt.Sprintf("disconnect circuit %s:%d %s %s:%d", a, c.FromPort, c.Channel, b, c.ToPort))
	return true
}

// ConnectCable implements reconcile.World.
func (w *FakeWorld) ConnectCable(h, other model.Handle) bool {
	a, ok := live(h)
	if !ok {
		return false
	}
	b, ok := live(other)
	if !ok || a == b {
		return false
	}
	if _, exists := w.cables[a][b]; exists {
		return false
	}
	w.link(a, b)
	w.link(b, a)
	w.ops = append(w.ops, fmt.Sprintf("connect cable %s %s", a, b))
	return true
}

func (w *FakeWorld) link(a, b *Handle) {
	if w.cables[a] == nil {
		w.cables[a] = make(map[*Handle]struct{})
	}
	w.cables[a][b] = struct{}{}
}

// DisconnectCable implements reconcile.World.
func (w *FakeWorld) DisconnectCable(h, other model.Handle) bool {
	a, _ := h.(*Handle)
	b, _ := other.(*Handle)
	if _, exists := w.cables[a][b]; !exists {
		return false
	}
	delete(w.cables[a], b)
	delete(w.cables[b], a)
	w.ops = append(w.ops, fmt.Sprintf("disconnect cable %s %s", a, b))
	return true
}
