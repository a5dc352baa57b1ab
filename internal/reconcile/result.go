package reconcile

import (
	"fmt"

	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
	"github.com/roach88/staged/internal/wires"
)

// Mode selects which side of the comparison is authoritative.
type Mode uint8

const (
	// ModeApply makes the world match the store.
	ModeApply Mode = iota
	// ModeSave makes the store match the world.
	ModeSave
)

func (m Mode) String() string {
	switch m {
	case ModeApply:
		return "apply"
	case ModeSave:
		return "save"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode parses "apply" or "save".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "apply":
		return ModeApply, nil
	case "save":
		return ModeSave, nil
	default:
		return 0, fmt.Errorf("unknown reconcile mode %q: must be apply or save", s)
	}
}

// CircuitExtra is a live circuit connection with no stored counterpart.
type CircuitExtra struct {
	Connection CircuitConnection
	// Other is nil when the live endpoint resolves to no stored entity.
	Other *entity.Entity
}

// Resolved reports whether the live endpoint maps to a stored entity.
func (x CircuitExtra) Resolved() bool { return x.Other != nil }

// Edge returns the stored edge this connection corresponds to, oriented
// from e. Only meaningful when Resolved.
func (x CircuitExtra) Edge(e *entity.Entity) wires.CircuitEdge {
	return wires.CircuitEdge{
		From:     e,
		To:       x.Other,
		FromPort: x.Connection.FromPort,
		ToPort:   x.Connection.ToPort,
		Channel:  x.Connection.Channel,
	}
}

// CableExtra is a live cable with no stored counterpart.
type CableExtra struct {
	Handle model.Handle
	// Other is nil when the live neighbor resolves to no stored entity.
	Other *entity.Entity
}

// Resolved reports whether the live neighbor maps to a stored entity.
func (x CableExtra) Resolved() bool { return x.Other != nil }

// CircuitClassification is the three-way split of circuit edges.
type CircuitClassification struct {
	Matching []wires.CircuitEdge
	Extra    []CircuitExtra
	Missing  []wires.CircuitEdge
}

// CableClassification is the three-way split of cables, by neighbor.
type CableClassification struct {
	Matching []*entity.Entity
	Extra    []CableExtra
	Missing  []*entity.Entity
}

// Result is the outcome of reconciling one entity at one stage.
type Result struct {
	Entity *entity.Entity
	Stage  model.Stage
	Mode   Mode

	// Skipped is set when the entity has no live handle at Stage.
	Skipped bool

	Circuit CircuitClassification
	Cable   CableClassification

	// CableRejected lists neighbors whose store-side cable add hit the
	// degree bound in save mode.
	CableRejected []*entity.Entity
}

// InSync reports whether nothing was extra or missing.
func (r Result) InSync() bool {
	return len(r.Circuit.Extra) == 0 && len(r.Circuit.Missing) == 0 &&
		len(r.Cable.Extra) == 0 && len(r.Cable.Missing) == 0
}
