// Package spatial indexes entities by exact coordinate.
//
// Several entities may occupy the same coordinate, for example a future-stage
// replacement next to the entity it replaces, so each coordinate maps to a
// small bucket of occupants. The bucket owns its slice; removing the last
// occupant drops the bucket.
package spatial

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
)

// ErrNotMember is returned when an operation requires an indexed entity.
var ErrNotMember = errors.New("entity is not in the index")

// Index maps coordinates to the entities occupying them.
// Not safe for concurrent use.
type Index struct {
	buckets map[model.Position][]*entity.Entity
	count   int
}

// New returns an empty index.
func New() *Index {
	return &Index{buckets: make(map[model.Position][]*entity.Entity)}
}

// Add inserts e at its current position. It reports false when e is
// already indexed.
func (x *Index) Add(e *entity.Entity) bool {
	pos := e.Position()
	bucket := x.buckets[pos]
	if slices.Contains(bucket, e) {
		return false
	}
	x.buckets[pos] = append(bucket, e)
	x.count++
	return true
}

// Delete removes e. It reports false when e was not indexed.
func (x *Index) Delete(e *entity.Entity) bool {
	pos := e.Position()
	bucket := x.buckets[pos]
	i := slices.Index(bucket, e)
	if i < 0 {
		return false
	}
	bucket = slices.Delete(bucket, i, i+1)
	if len(bucket) == 0 {
		delete(x.buckets, pos)
	} else {
		x.buckets[pos] = bucket
	}
	x.count--
	return true
}

// Relocate moves an indexed entity to pos.
func (x *Index) Relocate(e *entity.Entity, pos model.Position) error {
	if !x.Delete(e) {
		return fmt.Errorf("relocate %s to %s: %w", e.ID(), pos, ErrNotMember)
	}
	e.SetPosition(pos)
	x.Add(e)
	return nil
}

// Contains reports whether e is indexed at its current position.
func (x *Index) Contains(e *entity.Entity) bool {
	return slices.Contains(x.buckets[e.Position()], e)
}

// ForEachAt calls fn for every occupant of pos in insertion order until fn
// returns false. fn must not add or delete entities at pos.
func (x *Index) ForEachAt(pos model.Position, fn func(*entity.Entity) bool) {
	for _, e := range x.buckets[pos] {
		if !fn(e) {
			return
		}
	}
}

// At returns a copy of the occupants of pos.
func (x *Index) At(pos model.Position) []*entity.Entity {
	return slices.Clone(x.buckets[pos])
}

// Len returns the number of indexed entities.
func (x *Index) Len() int {
	return x.count
}

// All returns every indexed entity ordered by position (row-major), then
// first stage, then ID.
func (x *Index) All() []*entity.Entity {
	out := make([]*entity.Entity, 0, x.count)
	for _, bucket := range x.buckets {
		out = append(out, bucket...)
	}
	slices.SortFunc(out, compareEntities)
	return out
}

func compareEntities(a, b *entity.Entity) int {
	pa, pb := a.Position(), b.Position()
	return cmp.Or(
		cmp.Compare(pa.Y, pb.Y),
		cmp.Compare(pa.X, pb.X),
		cmp.Compare(a.FirstStage(), b.FirstStage()),
		cmp.Compare(a.ID(), b.ID()),
	)
}
