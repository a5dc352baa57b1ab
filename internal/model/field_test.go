package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldStates(t *testing.T) {
	var zero Field
	assert.True(t, zero.IsUnset())

	set := Set(Int(3))
	v, ok := set.Value()
	require.True(t, ok)
	assert.Equal(t, Int(3), v)

	rm := Remove()
	assert.True(t, rm.IsRemoved())
	_, ok = rm.Value()
	assert.False(t, ok)

	assert.False(t, set.Equal(rm))
	assert.True(t, Remove().Equal(rm))
}

func TestFieldMatches(t *testing.T) {
	assert.True(t, Set(Int(1)).Matches(Int(1), true))
	assert.False(t, Set(Int(1)).Matches(Int(2), true))
	assert.False(t, Set(Int(1)).Matches(nil, false))
	assert.True(t, Remove().Matches(nil, false))
	assert.False(t, Remove().Matches(Int(1), true))
}

func TestPatchDistinguishesRemovedFromAbsent(t *testing.T) {
	p := NewPatch().Without("m")

	assert.True(t, p.Get("m").IsRemoved())
	assert.True(t, p.Get("n").IsUnset())
	assert.False(t, p.Empty())
	assert.Equal(t, []string{"m"}, p.Keys())
}

func TestPatchMergeOverwrites(t *testing.T) {
	p := NewPatch().With("n", Int(3)).With("m", String("x"))
	p.Merge(NewPatch().With("n", Int(5)).Without("m"))

	want := NewPatch().With("n", Int(5)).Without("m")
	assert.True(t, want.Equal(p))
}

func TestPatchApplyTo(t *testing.T) {
	obj := Obj(O("name", String("foo")), O("m", String("x")))
	NewPatch().With("n", Int(1)).Without("m").Without("missing").ApplyTo(obj)

	assert.True(t, Equal(Obj(O("name", String("foo")), O("n", Int(1))), obj))
}

func TestDiffObjects(t *testing.T) {
	from := Obj(O("name", String("foo")), O("a", Int(1)), O("b", Int(2)))
	to := Obj(O("name", String("foo")), O("a", Int(5)), O("c", Int(3)))

	p := DiffObjects(from, to)

	want := NewPatch().With("a", Int(5)).With("c", Int(3)).Without("b")
	assert.True(t, want.Equal(p))

	applied := from.Clone()
	p.ApplyTo(applied)
	assert.True(t, Equal(to, applied))
}

func TestPatchJSON(t *testing.T) {
	p := NewPatch().With("n", Int(5)).Without("m")

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"removed":["m"],"set":{"n":5}}`, string(data))

	var back Patch
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, p.Equal(back))
}

func TestPatchJSONRejectsConflictingKey(t *testing.T) {
	var p Patch
	err := json.Unmarshal([]byte(`{"set":{"m":1},"removed":["m"]}`), &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both set and removed")
}
