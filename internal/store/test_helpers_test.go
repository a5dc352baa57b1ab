package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/staged/internal/content"
	"github.com/roach88/staged/internal/diffchain"
	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithLogger(discard()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntity creates an entity with a fixed ID so snapshots compare
// by value.
func createTestEntity(t *testing.T, id, name string, x float64, first model.Stage) *entity.Entity {
	t.Helper()
	chain, err := diffchain.New(first, model.Obj(model.O("name", model.String(name))))
	require.NoError(t, err)
	return entity.Restore(entity.ID(id), model.Pos(x, 0.5), model.East, chain)
}

func newContent() *content.Content {
	return content.New(nil, content.WithLogger(discard()))
}
