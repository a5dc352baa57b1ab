package diffchain

import (
	"fmt"
	"slices"

	"github.com/roach88/staged/internal/model"
)

// InsertStage shifts every stage >= at up by one, leaving a new empty
// stage at at. Panics if at < 1.
func (c *Chain) InsertStage(at model.Stage) {
	if !at.Valid() {
		panic(fmt.Sprintf("diffchain: insert stage %d: stages start at 1", at))
	}
	if c.first >= at {
		c.first++
	}
	if c.last != 0 && c.last >= at {
		c.last++
	}
	for i := range c.diffs {
		if c.diffs[i].Stage >= at {
			c.diffs[i].Stage++
		}
	}
}

// DeleteStage removes stage at and shifts every later stage down by one.
// Panics if at < 1.
//
// When at is after the first stage, the diff at at is merged into the diff
// at at-1 (or into the base when at-1 is the first stage). When at is at or
// before the first stage, the first stage moves down instead. Deleting
// stage 1 from a chain that starts at 1 folds the diff at stage 2 into the
// base, since stage 2 becomes the new stage 1.
func (c *Chain) DeleteStage(at model.Stage) {
	if !at.Valid() {
		panic(fmt.Sprintf("diffchain: delete stage %d: stages start at 1", at))
	}

	switch {
	case at > c.first:
		c.mergeInto(at, at-1)
	case c.first == 1:
		c.mergeInto(at+1, at)
	default:
		c.first--
	}

	if c.last != 0 && c.last >= at && c.last > c.first {
		c.last--
	}
	for i := range c.diffs {
		if c.diffs[i].Stage > at {
			c.diffs[i].Stage--
		}
	}
}

// mergeInto folds the diff stored at from into the diff at to (to is the
// first stage or the stage directly below from).
func (c *Chain) mergeInto(from, to model.Stage) {
	i, ok := c.find(from)
	if !ok {
		return
	}
	patch := c.diffs[i].Patch
	c.removeAt(i)
	if to == c.first {
		patch.ApplyTo(c.base)
		return
	}
	if j, ok := c.find(to); ok {
		c.diffs[j].Patch.Merge(patch)
		return
	}
	c.diffs = slices.Insert(c.diffs, c.search(to), StageDiff{Stage: to, Patch: patch})
}
