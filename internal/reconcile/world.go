package reconcile

import (
	"github.com/roach88/staged/internal/model"
	"github.com/roach88/staged/internal/wires"
)

// Description is what the live world reports about a handle.
type Description struct {
	Name     string
	Position model.Position
	// Direction is nil for objects without an orientation.
	Direction *model.Direction
}

// CircuitConnection is a live circuit connection seen from one handle:
// FromPort is on that handle, ToPort on Other.
type CircuitConnection struct {
	Other    model.Handle
	FromPort wires.Port
	ToPort   wires.Port
	Channel  wires.Channel
}

// World is the live-world adapter the reconciler reads and, in apply mode,
// mutates. Implementations treat invalid handles as absent.
type World interface {
	Describe(h model.Handle) (Description, bool)
	CircuitConnections(h model.Handle) []CircuitConnection
	CableNeighbors(h model.Handle) []model.Handle

	ConnectCircuit(h model.Handle, c CircuitConnection) bool
	DisconnectCircuit(h model.Handle, c CircuitConnection) bool
	ConnectCable(a, b model.Handle) bool
	DisconnectCable(a, b model.Handle) bool
}
