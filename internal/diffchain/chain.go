package diffchain

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/staged/internal/model"
)

var (
	// ErrStageOutOfRange is returned when a stage falls outside the chain's
	// [firstStage, lastStage] bounds.
	ErrStageOutOfRange = errors.New("stage out of range")

	// ErrNameRequired is returned when a value lacks a "name" or a patch
	// tries to remove it.
	ErrNameRequired = errors.New("entity value requires a name")

	// ErrInvalidDiffs is returned by Restore when stored diffs violate the
	// chain invariants.
	ErrInvalidDiffs = errors.New("invalid stage diffs")
)

// StageDiff is a patch together with the stage it applies at.
type StageDiff struct {
	Stage model.Stage
	Patch model.Patch
}

// Chain is the per-entity diff chain.
type Chain struct {
	first model.Stage
	last  model.Stage // 0 = unbounded
	base  model.Object
	diffs []StageDiff // ascending by Stage, all > first
}

// New creates a chain starting at first with the given base value.
// The base value is copied.
func New(first model.Stage, base model.Object) (*Chain, error) {
	if !first.Valid() {
		return nil, fmt.Errorf("new chain: first stage %d: %w", first, ErrStageOutOfRange)
	}
	if base.Name() == "" {
		return nil, fmt.Errorf("new chain: %w", ErrNameRequired)
	}
	return &Chain{first: first, base: base.Clone()}, nil
}

// Restore rebuilds a chain from persisted parts. Diffs must be strictly
// ascending and inside the stage bounds.
func Restore(first, last model.Stage, base model.Object, diffs []StageDiff) (*Chain, error) {
	c, err := New(first, base)
	if err != nil {
		return nil, err
	}
	if last != 0 {
		if last < first {
			return nil, fmt.Errorf("restore chain: last stage %d before first %d: %w", last, first, ErrStageOutOfRange)
		}
		c.last = last
	}
	prev := first
	for _, d := range diffs {
		if d.Stage <= prev {
			return nil, fmt.Errorf("restore chain: diff at stage %d not after %d: %w", d.Stage, prev, ErrInvalidDiffs)
		}
		if c.last != 0 && d.Stage > c.last {
			return nil, fmt.Errorf("restore chain: diff at stage %d after last stage %d: %w", d.Stage, c.last, ErrInvalidDiffs)
		}
		if !namePreserved(d.Patch) {
			return nil, fmt.Errorf("restore chain: diff at stage %d: %w", d.Stage, ErrNameRequired)
		}
		if d.Patch.Empty() {
			continue
		}
		c.diffs = append(c.diffs, StageDiff{Stage: d.Stage, Patch: d.Patch.Clone()})
		prev = d.Stage
	}
	return c, nil
}

// FirstStage returns the first stage the entity exists in.
func (c *Chain) FirstStage() model.Stage { return c.first }

// LastStage returns the last stage the entity exists in, if bounded.
func (c *Chain) LastStage() (model.Stage, bool) {
	return c.last, c.last != 0
}

// InRange reports whether stage lies within [firstStage, lastStage].
func (c *Chain) InRange(stage model.Stage) bool {
	return stage >= c.first && (c.last == 0 || stage <= c.last)
}

// Base returns a copy of the value at the first stage.
func (c *Chain) Base() model.Object {
	return c.base.Clone()
}

// ValueAt returns the effective value at stage. It returns false when
// stage is before the first stage.
func (c *Chain) ValueAt(stage model.Stage) (model.Object, bool) {
	if stage < c.first {
		return nil, false
	}
	v := c.base.Clone()
	for _, d := range c.diffs {
		if d.Stage > stage {
			break
		}
		d.Patch.ApplyTo(v)
	}
	return v, true
}

// NameAt returns the "name" property at stage.
func (c *Chain) NameAt(stage model.Stage) (string, bool) {
	if stage < c.first {
		return "", false
	}
	name := c.base.Name()
	for _, d := range c.diffs {
		if d.Stage > stage {
			break
		}
		if v, ok := d.Patch.Get(model.NameKey).Value(); ok {
			if s, ok := v.(model.String); ok {
				name = string(s)
			}
		}
	}
	return name, true
}

// ForEachValue calls fn with the effective value for every stage in
// [from, to], building each value incrementally from the previous one.
// Iteration stops early when fn returns false. The value passed to fn must
// not be retained across calls.
func (c *Chain) ForEachValue(from, to model.Stage, fn func(model.Stage, model.Object) bool) {
	if from < c.first {
		from = c.first
	}
	if from > to {
		return
	}
	v, _ := c.ValueAt(from)
	idx := c.search(from + 1)
	for s := from; s <= to; s++ {
		if s > from && idx < len(c.diffs) && c.diffs[idx].Stage == s {
			c.diffs[idx].Patch.ApplyTo(v)
			idx++
		}
		if !fn(s, v) {
			return
		}
	}
}

// DiffAt returns a copy of the raw patch stored at exactly stage.
func (c *Chain) DiffAt(stage model.Stage) (model.Patch, bool) {
	i, ok := c.find(stage)
	if !ok {
		return nil, false
	}
	return c.diffs[i].Patch.Clone(), true
}

// Diffs returns copies of all stored diffs in ascending stage order.
func (c *Chain) Diffs() []StageDiff {
	out := make([]StageDiff, len(c.diffs))
	for i, d := range c.diffs {
		out[i] = StageDiff{Stage: d.Stage, Patch: d.Patch.Clone()}
	}
	return out
}

// HasDiffs reports whether any stage diff is stored.
func (c *Chain) HasDiffs() bool {
	return len(c.diffs) > 0
}

// NextDiffStage returns the smallest diff stage strictly after stage.
func (c *Chain) NextDiffStage(after model.Stage) (model.Stage, bool) {
	i := c.search(after + 1)
	if i < len(c.diffs) {
		return c.diffs[i].Stage, true
	}
	return 0, false
}

// PrevDiffStage returns the largest diff stage strictly before stage.
func (c *Chain) PrevDiffStage(before model.Stage) (model.Stage, bool) {
	i := c.search(before)
	if i > 0 {
		return c.diffs[i-1].Stage, true
	}
	return 0, false
}

// FieldChanges returns the stages whose diff mentions field, ascending.
func (c *Chain) FieldChanges(field string) []model.Stage {
	var out []model.Stage
	for _, d := range c.diffs {
		if !d.Patch.Get(field).IsUnset() {
			out = append(out, d.Stage)
		}
	}
	return out
}

// Clone returns a deep copy of the chain.
func (c *Chain) Clone() *Chain {
	return &Chain{
		first: c.first,
		last:  c.last,
		base:  c.base.Clone(),
		diffs: c.Diffs(),
	}
}

// Equal reports whether two chains hold identical bounds, base and diffs.
func (c *Chain) Equal(other *Chain) bool {
	if c.first != other.first || c.last != other.last || !model.Equal(c.base, other.base) {
		return false
	}
	return slices.EqualFunc(c.diffs, other.diffs, func(a, b StageDiff) bool {
		return a.Stage == b.Stage && a.Patch.Equal(b.Patch)
	})
}

// search returns the index of the first diff with Stage >= stage.
func (c *Chain) search(stage model.Stage) int {
	i, _ := slices.BinarySearchFunc(c.diffs, stage, func(d StageDiff, s model.Stage) int {
		return int(d.Stage) - int(s)
	})
	return i
}

// find returns the index of the diff stored at exactly stage.
func (c *Chain) find(stage model.Stage) (int, bool) {
	i := c.search(stage)
	return i, i < len(c.diffs) && c.diffs[i].Stage == stage
}

func (c *Chain) checkRange(stage model.Stage) error {
	if !c.InRange(stage) {
		return fmt.Errorf("stage %d outside [%d, %s]: %w", stage, c.first, c.lastString(), ErrStageOutOfRange)
	}
	return nil
}

func (c *Chain) lastString() string {
	if c.last == 0 {
		return "∞"
	}
	return fmt.Sprintf("%d", c.last)
}

func (c *Chain) removeAt(i int) {
	c.diffs = slices.Delete(c.diffs, i, i+1)
}

// dropEmpty removes diffs whose patch no longer carries any field.
func (c *Chain) dropEmpty() {
	c.diffs = slices.DeleteFunc(c.diffs, func(d StageDiff) bool {
		return d.Patch.Empty()
	})
}
