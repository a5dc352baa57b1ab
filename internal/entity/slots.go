package entity

import (
	"maps"
	"slices"

	"github.com/roach88/staged/internal/model"
)

// SlotName names an auxiliary decoration attached to an entity at a stage.
// The set of names is open; the constants below are the ones collaborators
// use today.
type SlotName string

const (
	SlotPreview         SlotName = "preview"
	SlotErrorOutline    SlotName = "error-outline"
	SlotSettingsOverlay SlotName = "settings-overlay"
	SlotSelectionProxy  SlotName = "selection-proxy"
)

// LiveAt returns the live handle at stage. A stale handle is cleared and
// reported as absent.
func (e *Entity) LiveAt(stage model.Stage) (model.Handle, bool) {
	h, ok := e.live[stage]
	if !ok {
		return nil, false
	}
	if !model.IsLive(h) {
		delete(e.live, stage)
		return nil, false
	}
	return h, true
}

// SetLive attaches h at stage. A nil handle clears the slot.
func (e *Entity) SetLive(stage model.Stage, h model.Handle) {
	if h == nil {
		delete(e.live, stage)
		return
	}
	if e.live == nil {
		e.live = make(map[model.Stage]model.Handle)
	}
	e.live[stage] = h
}

// ClearLive detaches the live handle at stage.
func (e *Entity) ClearLive(stage model.Stage) {
	delete(e.live, stage)
}

// LiveStages returns the stages holding a valid live handle, ascending.
func (e *Entity) LiveStages() []model.Stage {
	var out []model.Stage
	for _, s := range slices.Sorted(maps.Keys(e.live)) {
		if _, ok := e.LiveAt(s); ok {
			out = append(out, s)
		}
	}
	return out
}

// Extra returns the named decoration handle at stage.
func (e *Entity) Extra(stage model.Stage, name SlotName) (model.Handle, bool) {
	h, ok := e.extras[stage][name]
	if !ok || !model.IsLive(h) {
		return nil, false
	}
	return h, true
}

// SetExtra attaches a named decoration at stage. A nil handle clears it.
func (e *Entity) SetExtra(stage model.Stage, name SlotName, h model.Handle) {
	if h == nil {
		e.ClearExtra(stage, name)
		return
	}
	if e.extras == nil {
		e.extras = make(map[model.Stage]map[SlotName]model.Handle)
	}
	slot := e.extras[stage]
	if slot == nil {
		slot = make(map[SlotName]model.Handle)
		e.extras[stage] = slot
	}
	slot[name] = h
}

// ClearExtra removes a named decoration at stage.
func (e *Entity) ClearExtra(stage model.Stage, name SlotName) {
	slot := e.extras[stage]
	if slot == nil {
		return
	}
	delete(slot, name)
	if len(slot) == 0 {
		delete(e.extras, stage)
	}
}

// ExtrasAt returns a copy of every decoration attached at stage.
func (e *Entity) ExtrasAt(stage model.Stage) map[SlotName]model.Handle {
	return maps.Clone(e.extras[stage])
}

// ExtraStages returns, for a slot name, every stage holding it, ascending.
func (e *Entity) ExtraStages(name SlotName) []model.Stage {
	var out []model.Stage
	for s, slot := range e.extras {
		if _, ok := slot[name]; ok {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

func (e *Entity) dropSlots(drop func(model.Stage) bool) {
	maps.DeleteFunc(e.live, func(s model.Stage, _ model.Handle) bool { return drop(s) })
	maps.DeleteFunc(e.extras, func(s model.Stage, _ map[SlotName]model.Handle) bool { return drop(s) })
}

// shiftUp moves every key >= at up by one, leaving at empty.
func shiftUp[V any](m map[model.Stage]V, at model.Stage) map[model.Stage]V {
	if len(m) == 0 {
		return m
	}
	out := make(map[model.Stage]V, len(m))
	for s, v := range m {
		if s >= at {
			s++
		}
		out[s] = v
	}
	return out
}

// shiftDown discards the key at and moves every key > at down by one.
func shiftDown[V any](m map[model.Stage]V, at model.Stage) map[model.Stage]V {
	if len(m) == 0 {
		return m
	}
	out := make(map[model.Stage]V, len(m))
	for s, v := range m {
		switch {
		case s == at:
			continue
		case s > at:
			s--
		}
		out[s] = v
	}
	return out
}
