package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/staged/internal/content"
	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
	"github.com/roach88/staged/internal/wires"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)

		var count int
		require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM entities").Scan(&count))
		s.Close()
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	c := newContent()
	a := createTestEntity(t, "a", "combinator", 0, 2)
	require.NoError(t, a.ApplyPatch(3, model.NewPatch().With("n", model.Int(3)).With("m", model.String("x"))))
	require.NoError(t, a.ApplyPatch(5, model.Patch{"m": model.Remove(), "ghost": model.Remove()}))
	require.NoError(t, a.SetLastStage(9))
	a.SetSettingsRemnant(true)
	b := createTestEntity(t, "b", "pole", 3, 1)
	d := createTestEntity(t, "d", "pole", 6, 1)
	d.SetLostReference(true)
	for _, e := range []*entity.Entity{a, b, d} {
		require.NoError(t, c.Add(e))
	}
	require.True(t, c.ConnectCircuit(wires.CircuitEdge{From: b, To: a, FromPort: 1, ToPort: 2, Channel: wires.Red}))
	require.True(t, c.ConnectCircuit(wires.CircuitEdge{From: a, To: a, FromPort: 1, ToPort: 2, Channel: wires.Green}))
	require.Equal(t, wires.CableAdded, c.ConnectCable(d, b))

	require.NoError(t, s.Save(ctx, c))
	got, err := s.Load(ctx, nil, content.WithLogger(discard()))
	require.NoError(t, err)

	require.Equal(t, 3, got.Len())
	ga, ok := got.Get("a")
	require.True(t, ok)
	assert.True(t, ga.Chain().Equal(a.Chain()))
	assert.True(t, ga.IsSettingsRemnant())
	assert.Equal(t, model.Pos(0, 0.5), ga.Position())
	assert.Equal(t, model.East, ga.Direction())

	diff, ok := ga.DiffAt(5)
	require.True(t, ok)
	assert.True(t, diff.Get("ghost").IsRemoved(), "removal of an absent field survives")

	gd, _ := got.Get("d")
	assert.True(t, gd.IsLostReference())
	gb, _ := got.Get("b")
	assert.Len(t, got.Circuit().EdgesBetween(gb, ga), 1)
	assert.Len(t, got.Circuit().EdgesBetween(ga, ga), 1)
	assert.True(t, got.Cable().Has(gb, gd))
}

func TestSave_ReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	c := newContent()
	a := createTestEntity(t, "a", "pole", 0, 1)
	b := createTestEntity(t, "b", "pole", 1, 1)
	require.NoError(t, c.Add(a))
	require.NoError(t, c.Add(b))
	require.Equal(t, wires.CableAdded, c.ConnectCable(a, b))
	require.NoError(t, s.Save(ctx, c))

	c.Delete(b)
	require.NoError(t, s.Save(ctx, c))

	var entities, cables int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM entities").Scan(&entities))
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM cable_edges").Scan(&cables))
	assert.Equal(t, 1, entities)
	assert.Equal(t, 0, cables)
}

func TestSave_CanonicalColumns(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	c := newContent()
	a := createTestEntity(t, "a", "chest", 0, 1)
	require.NoError(t, a.ApplyPatch(2, model.Patch{"bar": model.Set(model.Int(4)), "filter": model.Remove()}))
	require.NoError(t, c.Add(a))
	require.NoError(t, s.Save(ctx, c))

	var base, patch string
	require.NoError(t, s.DB().QueryRow("SELECT base_value FROM entities WHERE id = 'a'").Scan(&base))
	require.NoError(t, s.DB().QueryRow("SELECT patch FROM stage_diffs WHERE entity_id = 'a' AND stage = 2").Scan(&patch))
	assert.Equal(t, `{"name":"chest"}`, base)
	assert.Equal(t, `{"removed":["filter"],"set":{"bar":4}}`, patch)
}

func TestLoad_DegreeBoundSkipsExcessCables(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	c := newContent()
	hub := createTestEntity(t, "hub", "pole", 0, 1)
	require.NoError(t, c.Add(hub))
	for i, id := range []string{"s1", "s2", "s3"} {
		e := createTestEntity(t, id, "pole", float64(i+1), 1)
		require.NoError(t, c.Add(e))
		require.Equal(t, wires.CableAdded, c.ConnectCable(hub, e))
	}
	require.NoError(t, s.Save(ctx, c))

	got, err := s.Load(ctx, nil, content.WithLogger(discard()), content.WithMaxCableDegree(2))
	require.NoError(t, err)
	ghub, _ := got.Get("hub")
	assert.Equal(t, 2, got.Cable().Degree(ghub))
}

func TestLoad_Empty(t *testing.T) {
	got, err := createTestStore(t).Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestLoad_AfterRenumberingCreatesOverlap(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	c := newContent()
	a := createTestEntity(t, "a", "belt", 0, 1)
	require.NoError(t, a.SetLastStage(2))
	b := createTestEntity(t, "b", "belt", 0, 3)
	require.NoError(t, c.Add(a))
	require.NoError(t, c.Add(b))

	c.DeleteStage(3)
	require.Equal(t, model.Stage(2), b.FirstStage())
	require.True(t, a.OverlapsRange(b))
	require.NoError(t, s.Save(ctx, c))

	got, err := s.Load(ctx, nil, content.WithLogger(discard()))
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	gb, ok := got.Get("b")
	require.True(t, ok)
	assert.Equal(t, model.Stage(2), gb.FirstStage())
	ga, _ := got.Get("a")
	last, bounded := ga.LastStage()
	assert.True(t, bounded)
	assert.Equal(t, model.Stage(2), last)
}
