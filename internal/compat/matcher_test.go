package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
	"github.com/roach88/staged/internal/spatial"
)

type handle struct{ dead bool }

func (h *handle) Valid() bool { return !h.dead }

type sliceHandle []int

func (sliceHandle) Valid() bool { return true }

var testClassifier = StaticClassifier{
	Categories: map[string]Category{
		"transport-belt":       "belt",
		"fast-transport-belt":  "belt",
		"assembling-machine-1": "assembler",
		"assembling-machine-2": "assembler",
		"inserter":             "inserter",
		"fast-inserter":        "inserter",
		"cargo-wagon":          "wagon",
		"locomotive":           "wagon",
	},
	Policies: map[Category]OrientationPolicy{
		"belt":      OrientationOppositeToo,
		"assembler": OrientationAny,
	},
	Exact: map[Category]bool{"wagon": true},
}

func place(t *testing.T, x *spatial.Index, name string, pos model.Position, dir model.Direction, first model.Stage) *entity.Entity {
	t.Helper()
	e, err := entity.New(model.Obj(model.O("name", model.String(name))), pos, dir, first)
	require.NoError(t, err)
	x.Add(e)
	return e
}

func TestFindByCategory(t *testing.T) {
	x := spatial.New()
	m := NewMatcher(x, testClassifier)
	belt := place(t, x, "transport-belt", model.Pos(0, 0), model.North, 1)

	got, ok := m.Find(Descriptor{Name: "fast-transport-belt", Position: model.Pos(0, 0)})
	require.True(t, ok)
	assert.Same(t, belt, got)

	_, ok = m.Find(Descriptor{Name: "inserter", Position: model.Pos(0, 0)})
	assert.False(t, ok)

	_, ok = m.Find(Descriptor{Name: "transport-belt", Position: model.Pos(1, 0)})
	assert.False(t, ok)
}

func TestFindOrientationPolicies(t *testing.T) {
	x := spatial.New()
	m := NewMatcher(x, testClassifier)
	place(t, x, "transport-belt", model.Pos(0, 0), model.North, 1)
	place(t, x, "assembling-machine-1", model.Pos(5, 5), model.East, 1)
	place(t, x, "inserter", model.Pos(9, 9), model.West, 1)

	tests := []struct {
		name string
		d    Descriptor
		want bool
	}{
		{"belt same", Descriptor{Name: "transport-belt", Position: model.Pos(0, 0), Orientation: model.Dir(model.North)}, true},
		{"belt opposite", Descriptor{Name: "transport-belt", Position: model.Pos(0, 0), Orientation: model.Dir(model.South)}, true},
		{"belt perpendicular", Descriptor{Name: "transport-belt", Position: model.Pos(0, 0), Orientation: model.Dir(model.East)}, false},
		{"assembler any", Descriptor{Name: "assembling-machine-2", Position: model.Pos(5, 5), Orientation: model.Dir(model.South)}, true},
		{"inserter exact", Descriptor{Name: "fast-inserter", Position: model.Pos(9, 9), Orientation: model.Dir(model.West)}, true},
		{"inserter opposite", Descriptor{Name: "inserter", Position: model.Pos(9, 9), Orientation: model.Dir(model.East)}, false},
		{"nil orientation", Descriptor{Name: "inserter", Position: model.Pos(9, 9)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := m.Find(tt.d)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestFindWithoutCategoryRequiresExactName(t *testing.T) {
	x := spatial.New()
	m := NewMatcher(x, testClassifier)
	place(t, x, "wooden-chest", model.Pos(0, 0), model.North, 1)

	_, ok := m.Find(Descriptor{Name: "wooden-chest", Position: model.Pos(0, 0), Orientation: model.Dir(model.North)})
	assert.True(t, ok)
	_, ok = m.Find(Descriptor{Name: "iron-chest", Position: model.Pos(0, 0)})
	assert.False(t, ok)
	_, ok = m.Find(Descriptor{Name: "wooden-chest", Position: model.Pos(0, 0), Orientation: model.Dir(model.South)})
	assert.False(t, ok)
}

func TestFindNilClassifier(t *testing.T) {
	x := spatial.New()
	m := NewMatcher(x, nil)
	place(t, x, "transport-belt", model.Pos(0, 0), model.North, 1)

	_, ok := m.Find(Descriptor{Name: "transport-belt", Position: model.Pos(0, 0)})
	assert.True(t, ok)
	_, ok = m.Find(Descriptor{Name: "fast-transport-belt", Position: model.Pos(0, 0)})
	assert.False(t, ok)
}

func TestFindStageRangeAndTieBreak(t *testing.T) {
	x := spatial.New()
	m := NewMatcher(x, testClassifier)
	late := place(t, x, "inserter", model.Pos(0, 0), model.North, 4)
	early := place(t, x, "fast-inserter", model.Pos(0, 0), model.North, 2)
	require.NoError(t, early.SetLastStage(3))

	got, ok := m.Find(Descriptor{Name: "inserter", Position: model.Pos(0, 0)})
	require.True(t, ok)
	assert.Same(t, early, got, "smallest first stage wins")

	got, ok = m.Find(Descriptor{Name: "inserter", Position: model.Pos(0, 0), Stage: 5})
	require.True(t, ok)
	assert.Same(t, late, got)

	_, ok = m.Find(Descriptor{Name: "inserter", Position: model.Pos(0, 0), Stage: 1})
	assert.False(t, ok)
}

func TestFindExactUsesRegistryOnly(t *testing.T) {
	x := spatial.New()
	reg := NewHandleRegistry()
	m := NewMatcher(x, testClassifier, WithRegistry(reg))
	wagonA := place(t, x, "cargo-wagon", model.Pos(0, 0), model.North, 1)
	wagonB := place(t, x, "cargo-wagon", model.Pos(0, 0), model.North, 1)

	ha, hb := &handle{}, &handle{}
	reg.Register(ha, wagonA)
	reg.Register(hb, wagonB)

	got, ok := m.FindExact(hb)
	require.True(t, ok)
	assert.Same(t, wagonB, got)

	_, ok = m.FindExact(&handle{})
	assert.False(t, ok)

	hb.dead = true
	_, ok = m.FindExact(hb)
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len(), "stale handle is dropped")

	reg.Forget(wagonA)
	assert.Equal(t, 0, reg.Len())

	_, ok = NewMatcher(x, nil).FindExact(ha)
	assert.False(t, ok, "no registry means no exact match")
}

func TestFindNeverMatchesExactIdentityByPosition(t *testing.T) {
	x := spatial.New()
	reg := NewHandleRegistry()
	m := NewMatcher(x, testClassifier, WithRegistry(reg))
	loco := place(t, x, "locomotive", model.Pos(5, 5), model.North, 1)
	reg.Register(&handle{}, loco)

	assert.True(t, m.ExactIdentity("locomotive"))
	assert.False(t, m.ExactIdentity("inserter"))
	assert.False(t, NewMatcher(x, nil).ExactIdentity("locomotive"))

	dir := model.North
	_, ok := m.Find(Descriptor{Name: "locomotive", Position: model.Pos(5, 5), Orientation: &dir, Stage: 1})
	assert.False(t, ok, "an unregistered sibling must not resolve to the stored locomotive")

	_, ok = m.FindExact(&handle{})
	assert.False(t, ok)
}

func TestRegistryRequiresComparableHandles(t *testing.T) {
	reg := NewHandleRegistry()
	e, err := entity.New(model.Obj(model.O("name", model.String("locomotive"))), model.Pos(0, 0), model.North, 1)
	require.NoError(t, err)
	assert.Panics(t, func() { reg.Register(sliceHandle{1}, e) })
	assert.NotPanics(t, func() { reg.Register(&handle{}, e) })
}

func TestParseOrientationPolicy(t *testing.T) {
	for _, p := range []OrientationPolicy{OrientationExact, OrientationOppositeToo, OrientationAny} {
		got, err := ParseOrientationPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	got, err := ParseOrientationPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OrientationExact, got)

	_, err = ParseOrientationPolicy("sideways")
	assert.Error(t, err)
}
