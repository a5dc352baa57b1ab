package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/staged/internal/content"
	"github.com/roach88/staged/internal/diffchain"
	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
	"github.com/roach88/staged/internal/store"
	"github.com/roach88/staged/internal/wires"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func restore(t *testing.T, id, name string, x float64, first model.Stage, diffs ...diffchain.StageDiff) *entity.Entity {
	t.Helper()
	chain, err := diffchain.Restore(first, 0, model.Obj(model.O("name", model.String(name))), diffs)
	require.NoError(t, err)
	return entity.Restore(entity.ID(id), model.Pos(x, 0), model.East, chain)
}

// createProject writes a small project: a combinator wired to a lamp that
// appears at stage 2, and two connected poles.
func createProject(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.db")

	st, err := store.Open(path, store.WithLogger(discard()))
	require.NoError(t, err)
	defer st.Close()

	c := content.New(nil, content.WithLogger(discard()))
	comb := restore(t, "comb", "combinator", 0, 1, diffchain.StageDiff{
		Stage: 3,
		Patch: model.NewPatch().With("threshold", model.Int(5)),
	})
	lamp := restore(t, "lamp", "lamp", 2, 2)
	p1 := restore(t, "pole-a", "pole", 4, 1)
	p2 := restore(t, "pole-b", "pole", 6, 1)
	for _, e := range []*entity.Entity{comb, lamp, p1, p2} {
		require.NoError(t, c.Add(e))
	}
	require.True(t, c.ConnectCircuit(wires.CircuitEdge{From: comb, To: lamp, FromPort: 2, ToPort: 1, Channel: wires.Green}))
	require.Equal(t, wires.CableAdded, c.ConnectCable(p1, p2))

	require.NoError(t, st.Save(context.Background(), c))
	return path
}

func loadProject(t *testing.T, path string) *content.Content {
	t.Helper()
	st, err := store.Open(path, store.WithLogger(discard()))
	require.NoError(t, err)
	defer st.Close()
	c, err := st.Load(context.Background(), nil, content.WithLogger(discard()))
	require.NoError(t, err)
	return c
}
