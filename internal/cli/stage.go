package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/staged/internal/model"
)

// StageResult is the payload of a stage insert or delete.
type StageResult struct {
	Action   string `json:"action"`
	Stage    int    `json:"stage"`
	Entities int    `json:"entities"`
}

func (r StageResult) String() string {
	return fmt.Sprintf("Stage %d %s; %d entities renumbered", r.Stage, r.Action, r.Entities)
}

// NewStageCommand creates the stage command group.
func NewStageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Insert or delete a stage across the whole project",
	}
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to the project database")
	cmd.PersistentFlags().StringVar(&opts.CatalogDir, "catalog", "", "category catalog directory")

	for _, action := range []string{"insert", "delete"} {
		cmd.AddCommand(&cobra.Command{
			Use:           action + " <at>",
			Short:         fmt.Sprintf("%s stage <at> and renumber every later stage", action),
			Example:       fmt.Sprintf("  staged stage %s --db project.db 3", action),
			Args:          cobra.ExactArgs(1),
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runStage(opts, action, args[0], cmd)
			},
		})
	}
	return cmd
}

func runStage(opts *ProjectOptions, action, arg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	at, err := strconv.Atoi(arg)
	if err != nil || at < 1 {
		msg := fmt.Sprintf("invalid stage %q: must be an integer >= 1", arg)
		if ferr := formatter.Error(ErrCodeStage, msg, nil); ferr != nil {
			return ferr
		}
		return NewExitError(ExitCommandError, msg)
	}

	st, c, err := openProject(cmd.Context(), opts, formatter.Logger())
	if err != nil {
		return err
	}
	defer st.Close()

	done := "inserted"
	if action == "insert" {
		c.InsertStage(model.Stage(at))
	} else {
		c.DeleteStage(model.Stage(at))
		done = "deleted"
	}

	if err := st.Save(cmd.Context(), c); err != nil {
		if ferr := formatter.Error(ErrCodeDatabase, "failed to save project", err.Error()); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitCommandError, "failed to save project", err)
	}
	formatter.VerboseLog("Saved %d entities to %s", c.Len(), opts.DBPath)

	return formatter.Success(StageResult{Action: done, Stage: at, Entities: c.Len()})
}
