package content

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/staged/internal/compat"
	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/metrics"
	"github.com/roach88/staged/internal/model"
	"github.com/roach88/staged/internal/wires"
)

type handle struct{ dead bool }

func (h *handle) Valid() bool { return !h.dead }

var classifier = compat.StaticClassifier{
	Categories: map[string]compat.Category{
		"inserter":      "inserter",
		"fast-inserter": "inserter",
	},
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newEntity(t *testing.T, name string, pos model.Position, first model.Stage) *entity.Entity {
	t.Helper()
	e, err := entity.New(model.Obj(model.O("name", model.String(name))), pos, model.North, first)
	require.NoError(t, err)
	return e
}

func TestAddRejectsCompatibleOverlap(t *testing.T) {
	c := New(classifier, quiet())
	a := newEntity(t, "inserter", model.Pos(0, 0), 1)
	require.NoError(t, c.Add(a))

	b := newEntity(t, "fast-inserter", model.Pos(0, 0), 3)
	err := c.Add(b)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, c.Len())
}

func TestAddAllowsDisjointRanges(t *testing.T) {
	c := New(classifier, quiet())
	a := newEntity(t, "inserter", model.Pos(0, 0), 1)
	require.NoError(t, a.SetLastStage(2))
	require.NoError(t, c.Add(a))

	b := newEntity(t, "fast-inserter", model.Pos(0, 0), 3)
	assert.NoError(t, c.Add(b))
	assert.Equal(t, 2, c.Len())
}

func TestAddAllowsIncompatibleOrRemnant(t *testing.T) {
	c := New(classifier, quiet())
	require.NoError(t, c.Add(newEntity(t, "inserter", model.Pos(0, 0), 1)))

	chest := newEntity(t, "chest", model.Pos(0, 0), 1)
	assert.NoError(t, c.Add(chest))

	remnant := newEntity(t, "inserter", model.Pos(0, 0), 1)
	remnant.SetSettingsRemnant(true)
	assert.NoError(t, c.Add(remnant))
}

func TestAddRejectsDuplicateID(t *testing.T) {
	c := New(nil, quiet())
	a := newEntity(t, "chest", model.Pos(0, 0), 1)
	require.NoError(t, c.Add(a))
	assert.ErrorIs(t, c.Add(a), ErrDuplicateID)

	got, ok := c.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestRestoreSkipsCoexistenceCheck(t *testing.T) {
	c := New(nil, quiet())
	a := newEntity(t, "chest", model.Pos(0, 0), 1)
	b := newEntity(t, "chest", model.Pos(0, 0), 1)
	require.NoError(t, c.Add(a))
	require.ErrorIs(t, c.Add(b), ErrConflict)

	require.NoError(t, c.Restore(b))
	assert.Equal(t, 2, c.Len())
	assert.Len(t, c.At(model.Pos(0, 0)), 2)
	assert.ErrorIs(t, c.Restore(b), ErrDuplicateID)
}

func TestDeletePurgesRelations(t *testing.T) {
	c := New(nil, quiet())
	a := newEntity(t, "pole", model.Pos(0, 0), 1)
	b := newEntity(t, "pole", model.Pos(5, 0), 1)
	d := newEntity(t, "combinator", model.Pos(2, 2), 1)
	for _, e := range []*entity.Entity{a, b, d} {
		require.NoError(t, c.Add(e))
	}
	require.Equal(t, wires.CableAdded, c.ConnectCable(a, b))
	require.True(t, c.ConnectCircuit(wires.CircuitEdge{From: a, To: d, FromPort: 1, ToPort: 1, Channel: wires.Red}))
	require.True(t, c.ConnectCircuit(wires.CircuitEdge{From: b, To: d, FromPort: 1, ToPort: 2, Channel: wires.Green}))
	h := &handle{}
	c.Registry().Register(h, a)

	assert.True(t, c.Delete(a))
	assert.False(t, c.Delete(a))

	assert.Zero(t, c.Cable().Degree(b))
	assert.Empty(t, c.Circuit().EdgesBetween(d, a))
	assert.Equal(t, 1, c.Circuit().Len())
	_, ok := c.Registry().Lookup(h)
	assert.False(t, ok)
	_, ok = c.Get(a.ID())
	assert.False(t, ok)
}

func TestRelocate(t *testing.T) {
	c := New(classifier, quiet())
	a := newEntity(t, "inserter", model.Pos(0, 0), 1)
	b := newEntity(t, "inserter", model.Pos(1, 0), 1)
	require.NoError(t, c.Add(a))
	require.NoError(t, c.Add(b))

	assert.ErrorIs(t, c.Relocate(b, model.Pos(0, 0)), ErrConflict)
	require.NoError(t, c.Relocate(b, model.Pos(2, 0)))
	assert.Equal(t, model.Pos(2, 0), b.Position())

	found, ok := c.Find(compat.Descriptor{Name: "fast-inserter", Position: model.Pos(2, 0)})
	require.True(t, ok)
	assert.Same(t, b, found)
}

func TestStageRenumberingAppliesToAll(t *testing.T) {
	c := New(nil, quiet())
	a := newEntity(t, "chest", model.Pos(0, 0), 2)
	b := newEntity(t, "chest", model.Pos(1, 0), 4)
	require.NoError(t, c.Add(a))
	require.NoError(t, c.Add(b))

	c.InsertStage(3)
	assert.Equal(t, model.Stage(2), a.FirstStage())
	assert.Equal(t, model.Stage(5), b.FirstStage())

	c.DeleteStage(3)
	assert.Equal(t, model.Stage(2), a.FirstStage())
	assert.Equal(t, model.Stage(4), b.FirstStage())

	assert.Panics(t, func() { c.InsertStage(0) })
	assert.Panics(t, func() { c.DeleteStage(0) })
}

func TestCableRejectionsAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := New(nil, quiet(), WithMaxCableDegree(1), WithMetrics(m))
	a := newEntity(t, "pole", model.Pos(0, 0), 1)
	b := newEntity(t, "pole", model.Pos(1, 0), 1)
	d := newEntity(t, "pole", model.Pos(2, 0), 1)
	for _, e := range []*entity.Entity{a, b, d} {
		require.NoError(t, c.Add(e))
	}

	require.Equal(t, wires.CableAdded, c.ConnectCable(a, b))
	assert.Equal(t, wires.CableMaxDegreeExceeded, c.ConnectCable(a, d))
	assert.Equal(t, 1, c.Cable().MaxDegree())

	expected := `
# HELP staged_cable_degree_rejections_total Cable connections refused because an endpoint was at the degree bound
# TYPE staged_cable_degree_rejections_total counter
staged_cable_degree_rejections_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "staged_cable_degree_rejections_total"))
}
