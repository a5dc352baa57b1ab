package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/staged/internal/content"
	"github.com/roach88/staged/internal/store"
)

// ProjectOptions are the flags shared by commands that read a project
// database.
type ProjectOptions struct {
	*RootOptions
	DBPath     string
	CatalogDir string
}

// openProject opens an existing database and loads its content.
func openProject(ctx context.Context, opts *ProjectOptions, logger *slog.Logger) (*store.Store, *content.Content, error) {
	if opts.DBPath == "" {
		return nil, nil, NewExitError(ExitCommandError, "--db is required")
	}
	if _, err := os.Stat(opts.DBPath); os.IsNotExist(err) {
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.DBPath))
	}

	classifier, err := loadClassifier(opts.CatalogDir)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(opts.DBPath, store.WithLogger(logger))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	c, err := st.Load(ctx, classifier, content.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to load project", err)
	}
	return st, c, nil
}
