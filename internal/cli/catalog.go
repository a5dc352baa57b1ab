package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/staged/internal/catalog"
	"github.com/roach88/staged/internal/compat"
)

// CatalogSummary is the JSON payload of a successful validation.
type CatalogSummary struct {
	Categories []CategorySummary `json:"categories"`
}

// CategorySummary describes one category.
type CategorySummary struct {
	Name        string   `json:"name"`
	Members     []string `json:"members"`
	Orientation string   `json:"orientation"`
	// ExactIdentity is set for categories matched by live handle only.
	ExactIdentity bool `json:"exact_identity,omitempty"`
}

func (s CatalogSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Catalog valid: %d categories", len(s.Categories))
	for _, c := range s.Categories {
		orientation := c.Orientation
		if c.ExactIdentity {
			orientation += ", exact identity"
		}
		fmt.Fprintf(&b, "\n  %s (%s): %s", c.Name, orientation, strings.Join(c.Members, ", "))
	}
	return b.String()
}

// CatalogIssue is one validation failure.
type CatalogIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with category catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <dir>",
		Short: "Validate a CUE category catalog",
		Long: `Load and validate the CUE category catalog in a directory.

Every member name must belong to exactly one category and orientation
must be one of exact, opposite or any. All errors are reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogValidate(rootOpts, args[0], cmd)
		},
	})
	return cmd
}

func runCatalogValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cat, errs := catalog.Load(dir)
	if len(errs) > 0 {
		issues := make([]CatalogIssue, 0, len(errs))
		for _, err := range errs {
			issues = append(issues, issueOf(err))
		}
		if cat == nil && len(issues) == 1 && isCommandCode(issues[0].Code) {
			if err := formatter.Error(issues[0].Code, issues[0].Message, nil); err != nil {
				return err
			}
			return NewExitError(ExitCommandError, issues[0].Message)
		}
		if opts.Format == "json" {
			if err := formatter.Error(catalog.ErrCodeSchema, fmt.Sprintf("%d catalog error(s)", len(issues)), issues); err != nil {
				return err
			}
		} else {
			w := cmd.OutOrStdout()
			for _, is := range issues {
				if is.Line > 0 {
					fmt.Fprintf(w, "Error [%s] line %d: %s\n", is.Code, is.Line, is.Message)
				} else {
					fmt.Fprintf(w, "Error [%s]: %s\n", is.Code, is.Message)
				}
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d catalog error(s)", len(issues)))
	}

	formatter.VerboseLog("Loaded %d categories from %s", cat.Len(), dir)
	return formatter.Success(summarize(cat))
}

func summarize(cat *catalog.Catalog) CatalogSummary {
	s := CatalogSummary{Categories: []CategorySummary{}}
	for _, e := range cat.Entries() {
		s.Categories = append(s.Categories, CategorySummary{
			Name:          string(e.Category),
			Members:       e.Members,
			Orientation:   e.Orientation.String(),
			ExactIdentity: e.ExactIdentity,
		})
	}
	return s
}

func issueOf(err error) CatalogIssue {
	var le *catalog.LoadError
	if errors.As(err, &le) {
		is := CatalogIssue{Code: le.Code, Message: le.Message}
		if le.Pos.IsValid() {
			is.Line = le.Pos.Line()
		}
		return is
	}
	return CatalogIssue{Code: catalog.ErrCodeGeneric, Message: err.Error()}
}

// isCommandCode reports whether code means the catalog could not be read at
// all, as opposed to being read and found invalid.
func isCommandCode(code string) bool {
	switch code {
	case catalog.ErrCodeNotFound, catalog.ErrCodeNoFiles, catalog.ErrCodeScanError:
		return true
	}
	return false
}

// loadClassifier loads an optional catalog. An empty dir yields a nil
// classifier, meaning names match exactly.
func loadClassifier(dir string) (compat.Classifier, error) {
	if dir == "" {
		return nil, nil
	}
	cat, errs := catalog.Load(dir)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", errors.Join(errs...))
	}
	return cat, nil
}
