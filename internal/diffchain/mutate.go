package diffchain

import (
	"fmt"
	"slices"

	"github.com/roach88/staged/internal/model"
)

// ApplyPatch merges patch into the diff stored at stage; fields in patch
// overwrite fields already stored there. At the first stage the patch is
// folded into the base value instead, and later diffs made redundant by
// the new base are trimmed.
//
// A Removed field is stored as such even when the property is already
// absent at stage.
func (c *Chain) ApplyPatch(stage model.Stage, patch model.Patch) error {
	if err := c.checkRange(stage); err != nil {
		return fmt.Errorf("apply patch: %w", err)
	}
	if !namePreserved(patch) {
		return fmt.Errorf("apply patch at stage %d: %w", stage, ErrNameRequired)
	}
	if patch.Empty() {
		return nil
	}

	if stage == c.first {
		patch.ApplyTo(c.base)
		c.trimRedundant(c.first, patch.Keys(), c.base)
		return nil
	}

	if i, ok := c.find(stage); ok {
		c.diffs[i].Patch.Merge(patch)
		return nil
	}
	i := c.search(stage)
	c.diffs = slices.Insert(c.diffs, i, StageDiff{Stage: stage, Patch: patch.Clone()})
	return nil
}

// namePreserved reports whether patch leaves "name" a non-empty string.
func namePreserved(patch model.Patch) bool {
	f := patch.Get(model.NameKey)
	if f.IsUnset() {
		return true
	}
	v, ok := f.Value()
	if !ok {
		return false
	}
	s, ok := v.(model.String)
	return ok && s != ""
}

// AdjustValueAtStage makes value the effective value at stage. The diff at
// stage is replaced by the minimal patch against the previous stage, and
// later diffs that no longer change anything are trimmed. It reports
// whether the effective value at stage changed.
func (c *Chain) AdjustValueAtStage(stage model.Stage, value model.Object) (bool, error) {
	if err := c.checkRange(stage); err != nil {
		return false, fmt.Errorf("adjust value: %w", err)
	}
	if value.Name() == "" {
		return false, fmt.Errorf("adjust value at stage %d: %w", stage, ErrNameRequired)
	}

	old, _ := c.ValueAt(stage)
	if model.Equal(old, value) {
		return false, nil
	}
	touched := model.DiffObjects(old, value).Keys()

	if stage == c.first {
		c.base = value.Clone()
		c.trimRedundant(c.first, touched, c.base)
		return true, nil
	}

	prev, _ := c.ValueAt(stage - 1)
	patch := model.DiffObjects(prev, value)
	i, ok := c.find(stage)
	switch {
	case ok && patch.Empty():
		c.removeAt(i)
	case ok:
		c.diffs[i].Patch = patch
	case !patch.Empty():
		c.diffs = slices.Insert(c.diffs, i, StageDiff{Stage: stage, Patch: patch})
	}
	c.trimRedundant(stage, touched, value)
	return true, nil
}

// trimRedundant walks the diffs after stage and drops, for each key, any
// field that would not change the running value starting from start.
func (c *Chain) trimRedundant(after model.Stage, keys []string, start model.Object) {
	if len(keys) == 0 {
		return
	}
	for _, k := range keys {
		cur, exists := start[k]
		for i := c.search(after + 1); i < len(c.diffs); i++ {
			f := c.diffs[i].Patch.Get(k)
			if f.IsUnset() {
				continue
			}
			if f.Matches(cur, exists) {
				delete(c.diffs[i].Patch, k)
				continue
			}
			cur, exists = f.Value()
		}
	}
	c.dropEmpty()
}

// ResetField removes a single field from the diff at stage. The stage key
// is dropped when its diff becomes empty. It reports whether a field was
// removed.
func (c *Chain) ResetField(stage model.Stage, field string) bool {
	i, ok := c.find(stage)
	if !ok {
		return false
	}
	if c.diffs[i].Patch.Get(field).IsUnset() {
		return false
	}
	delete(c.diffs[i].Patch, field)
	if c.diffs[i].Patch.Empty() {
		c.removeAt(i)
	}
	return true
}

// MoveDiffDown merges the whole diff at stage into the nearest earlier diff,
// or into the base value when there is none, and removes the diff at stage.
// It returns the stage merged into, or false when there was nothing to move.
func (c *Chain) MoveDiffDown(stage model.Stage) (model.Stage, bool) {
	i, ok := c.find(stage)
	if !ok {
		return 0, false
	}
	patch := c.diffs[i].Patch
	c.removeAt(i)
	if i > 0 {
		c.diffs[i-1].Patch.Merge(patch)
		return c.diffs[i-1].Stage, true
	}
	patch.ApplyTo(c.base)
	return c.first, true
}

// MoveFieldDown moves one field of the diff at stage into the nearest
// earlier diff (or the base value). It returns the stage moved into, or
// false when the diff at stage does not mention field.
func (c *Chain) MoveFieldDown(stage model.Stage, field string) (model.Stage, bool) {
	i, ok := c.find(stage)
	if !ok {
		return 0, false
	}
	f := c.diffs[i].Patch.Get(field)
	if f.IsUnset() {
		return 0, false
	}
	delete(c.diffs[i].Patch, field)
	moved := model.Patch{field: f}

	target := c.first
	if i > 0 {
		c.diffs[i-1].Patch.Merge(moved)
		target = c.diffs[i-1].Stage
	} else {
		moved.ApplyTo(c.base)
	}
	if c.diffs[i].Patch.Empty() {
		c.removeAt(i)
	}
	return target, true
}

// SetFirstStage moves the first stage. Moving it later folds every diff up
// to the new first stage into the base value; moving it earlier keeps the
// diffs where they are.
func (c *Chain) SetFirstStage(stage model.Stage) error {
	if !stage.Valid() || (c.last != 0 && stage > c.last) {
		return fmt.Errorf("set first stage %d (last %s): %w", stage, c.lastString(), ErrStageOutOfRange)
	}
	if stage > c.first {
		n := 0
		for n < len(c.diffs) && c.diffs[n].Stage <= stage {
			c.diffs[n].Patch.ApplyTo(c.base)
			n++
		}
		c.diffs = slices.Delete(c.diffs, 0, n)
	}
	c.first = stage
	return nil
}

// SetLastStage bounds the chain at stage, deleting every diff after it.
// It returns the number of diffs deleted.
func (c *Chain) SetLastStage(stage model.Stage) (int, error) {
	if stage < c.first {
		return 0, fmt.Errorf("set last stage %d (first %d): %w", stage, c.first, ErrStageOutOfRange)
	}
	i := c.search(stage + 1)
	removed := len(c.diffs) - i
	c.diffs = c.diffs[:i]
	c.last = stage
	return removed, nil
}

// ClearLastStage removes the upper bound.
func (c *Chain) ClearLastStage() {
	c.last = 0
}
