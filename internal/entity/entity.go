// Package entity defines the versioned entity: a diff chain with identity,
// a position, a saved orientation and per-stage world attachments.
package entity

import (
	"github.com/google/uuid"

	"github.com/roach88/staged/internal/diffchain"
	"github.com/roach88/staged/internal/model"
)

// ID is the stable identity of an entity. Connection graphs and the store
// refer to entities by ID, never by live-world handle.
type ID string

// NewID returns a time-sortable UUIDv7 identity.
func NewID() ID {
	return ID(uuid.Must(uuid.NewV7()).String())
}

// Entity is an object tracked across stages.
//
// Position and stage bounds are identity fields: callers must not change
// them while the entity is being iterated inside a bulk operation.
type Entity struct {
	id        ID
	position  model.Position
	direction model.Direction
	chain     *diffchain.Chain

	live   map[model.Stage]model.Handle
	extras map[model.Stage]map[SlotName]model.Handle

	lostReference   bool
	settingsRemnant bool
}

// New creates an entity that first exists at stage first with value base.
func New(base model.Object, position model.Position, direction model.Direction, first model.Stage) (*Entity, error) {
	chain, err := diffchain.New(first, base)
	if err != nil {
		return nil, err
	}
	return Restore(NewID(), position, direction, chain), nil
}

// Restore wraps an existing chain under a known identity. Used when loading
// persisted entities.
func Restore(id ID, position model.Position, direction model.Direction, chain *diffchain.Chain) *Entity {
	return &Entity{
		id:        id,
		position:  position,
		direction: direction,
		chain:     chain,
	}
}

// ID returns the stable identity.
func (e *Entity) ID() ID { return e.id }

// Position returns the entity's coordinate.
func (e *Entity) Position() model.Position { return e.position }

// SetPosition changes the coordinate without re-indexing.
// Only spatial.Index.Relocate should call this.
func (e *Entity) SetPosition(p model.Position) { e.position = p }

// Direction returns the saved orientation class. It may differ from the
// orientation the live object reports.
func (e *Entity) Direction() model.Direction { return e.direction }

// SetDirection changes the saved orientation class.
func (e *Entity) SetDirection(d model.Direction) { e.direction = d }

// Chain exposes the underlying diff chain for read-only inspection.
// Mutations must go through Entity so that world slots stay aligned.
func (e *Entity) Chain() *diffchain.Chain { return e.chain }

// Name returns the name at the first stage.
func (e *Entity) Name() string {
	name, _ := e.chain.NameAt(e.chain.FirstStage())
	return name
}

// FirstStage returns the first stage the entity exists in.
func (e *Entity) FirstStage() model.Stage { return e.chain.FirstStage() }

// LastStage returns the last stage, if bounded.
func (e *Entity) LastStage() (model.Stage, bool) { return e.chain.LastStage() }

// InRange reports whether the entity exists at stage.
func (e *Entity) InRange(stage model.Stage) bool { return e.chain.InRange(stage) }

// OverlapsRange reports whether the entity's stage range intersects another's.
func (e *Entity) OverlapsRange(other *Entity) bool {
	if e.FirstStage() > other.FirstStage() {
		e, other = other, e
	}
	last, bounded := e.LastStage()
	return !bounded || other.FirstStage() <= last
}

// ValueAt returns the effective value at stage.
func (e *Entity) ValueAt(stage model.Stage) (model.Object, bool) { return e.chain.ValueAt(stage) }

// NameAt returns the name at stage.
func (e *Entity) NameAt(stage model.Stage) (string, bool) { return e.chain.NameAt(stage) }

// DiffAt returns the raw patch stored at stage.
func (e *Entity) DiffAt(stage model.Stage) (model.Patch, bool) { return e.chain.DiffAt(stage) }

// ApplyPatch merges patch into the diff at stage.
func (e *Entity) ApplyPatch(stage model.Stage, patch model.Patch) error {
	return e.chain.ApplyPatch(stage, patch)
}

// AdjustValueAtStage makes value the effective value at stage.
func (e *Entity) AdjustValueAtStage(stage model.Stage, value model.Object) (bool, error) {
	return e.chain.AdjustValueAtStage(stage, value)
}

// ResetField removes one field from the diff at stage.
func (e *Entity) ResetField(stage model.Stage, field string) bool {
	return e.chain.ResetField(stage, field)
}

// MoveDiffDown merges the diff at stage into the nearest earlier one.
func (e *Entity) MoveDiffDown(stage model.Stage) (model.Stage, bool) {
	return e.chain.MoveDiffDown(stage)
}

// MoveFieldDown moves one field of the diff at stage into the nearest
// earlier diff.
func (e *Entity) MoveFieldDown(stage model.Stage, field string) (model.Stage, bool) {
	return e.chain.MoveFieldDown(stage, field)
}

// SetFirstStage moves the first stage, dropping world slots before it.
func (e *Entity) SetFirstStage(stage model.Stage) error {
	if err := e.chain.SetFirstStage(stage); err != nil {
		return err
	}
	e.dropSlots(func(s model.Stage) bool { return s < stage })
	return nil
}

// SetLastStage bounds the entity at stage, dropping diffs and world slots
// after it.
func (e *Entity) SetLastStage(stage model.Stage) error {
	if _, err := e.chain.SetLastStage(stage); err != nil {
		return err
	}
	e.dropSlots(func(s model.Stage) bool { return s > stage })
	return nil
}

// ClearLastStage makes the entity exist in every stage from the first on.
func (e *Entity) ClearLastStage() { e.chain.ClearLastStage() }

// InsertStage shifts the chain and every world slot at or after at.
func (e *Entity) InsertStage(at model.Stage) {
	e.chain.InsertStage(at)
	e.live = shiftUp(e.live, at)
	e.extras = shiftUp(e.extras, at)
}

// DeleteStage removes stage at from the chain and the world slots.
func (e *Entity) DeleteStage(at model.Stage) {
	e.chain.DeleteStage(at)
	e.live = shiftDown(e.live, at)
	e.extras = shiftDown(e.extras, at)
}

// IsLostReference reports the lost-reference flag.
func (e *Entity) IsLostReference() bool { return e.lostReference }

// SetLostReference sets the lost-reference flag.
func (e *Entity) SetLostReference(v bool) { e.lostReference = v }

// IsSettingsRemnant reports the settings-remnant flag.
func (e *Entity) IsSettingsRemnant() bool { return e.settingsRemnant }

// SetSettingsRemnant sets the settings-remnant flag.
func (e *Entity) SetSettingsRemnant(v bool) { e.settingsRemnant = v }

func (e *Entity) String() string {
	return e.Name() + "@" + e.position.String()
}
