package cli

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/staged/internal/content"
	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	ProjectOptions
	Stage  int
	Entity string
}

// InspectReport is the inspect payload.
type InspectReport struct {
	Stage    int             `json:"stage,omitempty"`
	Entities []InspectEntity `json:"entities"`
	Circuit  int             `json:"circuit_edges"`
	Cables   int             `json:"cables"`
}

// InspectEntity describes one stored entity.
type InspectEntity struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Position   string        `json:"position"`
	Direction  string        `json:"direction"`
	FirstStage int           `json:"first_stage"`
	LastStage  int           `json:"last_stage,omitempty"`
	Value      model.Object  `json:"value,omitempty"`
	Diffs      []InspectDiff `json:"diffs,omitempty"`
	Circuit    []string      `json:"circuit,omitempty"`
	Cables     []string      `json:"cables,omitempty"`
}

// InspectDiff is one stored stage diff.
type InspectDiff struct {
	Stage int         `json:"stage"`
	Patch model.Patch `json:"patch"`
}

func (r InspectReport) String() string {
	var b strings.Builder
	if r.Stage > 0 {
		fmt.Fprintf(&b, "Stage %d: ", r.Stage)
	}
	fmt.Fprintf(&b, "%d entities, %d circuit edges, %d cables", len(r.Entities), r.Circuit, r.Cables)
	for _, e := range r.Entities {
		last := "∞"
		if e.LastStage > 0 {
			last = fmt.Sprintf("%d", e.LastStage)
		}
		fmt.Fprintf(&b, "\n  %s %s at %s facing %s [%d, %s]", e.ID, e.Name, e.Position, e.Direction, e.FirstStage, last)
		if e.Value != nil {
			if data, err := model.MarshalValue(e.Value); err == nil {
				fmt.Fprintf(&b, "\n    value: %s", data)
			}
		}
		for _, d := range e.Diffs {
			data, _ := d.Patch.MarshalJSON()
			fmt.Fprintf(&b, "\n    stage %d: %s", d.Stage, data)
		}
		for _, c := range e.Circuit {
			fmt.Fprintf(&b, "\n    circuit %s", c)
		}
		for _, c := range e.Cables {
			fmt.Fprintf(&b, "\n    cable to %s", c)
		}
	}
	return b.String()
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{ProjectOptions: ProjectOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show stored entities, diffs and connections",
		Long: `Show the content of a project database.

With --stage, only entities present at that stage are listed together
with their effective value there. With --entity, a single entity is shown
with its diffs and connections.

Examples:
  staged inspect --db project.db
  staged inspect --db project.db --stage 3
  staged inspect --db project.db --entity 0190c2b4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the project database")
	cmd.Flags().StringVar(&opts.CatalogDir, "catalog", "", "category catalog directory")
	cmd.Flags().IntVar(&opts.Stage, "stage", 0, "only show entities present at this stage")
	cmd.Flags().StringVar(&opts.Entity, "entity", "", "only show this entity")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Stage < 0 {
		return NewExitError(ExitCommandError, "--stage must be >= 1")
	}

	st, c, err := openProject(cmd.Context(), &opts.ProjectOptions, formatter.Logger())
	if err != nil {
		return err
	}
	defer st.Close()
	formatter.VerboseLog("Loaded %d entities from %s", c.Len(), opts.DBPath)

	report := InspectReport{
		Stage:    opts.Stage,
		Entities: []InspectEntity{},
		Circuit:  c.Circuit().Len(),
		Cables:   c.Cable().Len(),
	}

	var selected []*entity.Entity
	if opts.Entity != "" {
		e, ok := c.Get(entity.ID(opts.Entity))
		if !ok {
			if err := formatter.Error(ErrCodeNotFound, fmt.Sprintf("entity not found: %s", opts.Entity), nil); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("entity not found: %s", opts.Entity))
		}
		selected = []*entity.Entity{e}
	} else {
		selected = c.All()
	}

	stage := model.Stage(opts.Stage)
	for _, e := range selected {
		if stage > 0 && !e.InRange(stage) {
			continue
		}
		report.Entities = append(report.Entities, describe(c, e, stage, opts.Entity != ""))
	}
	return formatter.Success(report)
}

func describe(c *content.Content, e *entity.Entity, stage model.Stage, detailed bool) InspectEntity {
	out := InspectEntity{
		ID:         string(e.ID()),
		Name:       e.Name(),
		Position:   e.Position().String(),
		Direction:  e.Direction().String(),
		FirstStage: int(e.FirstStage()),
	}
	if last, ok := e.LastStage(); ok {
		out.LastStage = int(last)
	}
	if stage > 0 {
		if v, ok := e.ValueAt(stage); ok {
			out.Value = v
		}
	}
	if !detailed {
		return out
	}

	for _, d := range e.Chain().Diffs() {
		out.Diffs = append(out.Diffs, InspectDiff{Stage: int(d.Stage), Patch: d.Patch})
	}
	if byNeighbor, ok := c.Circuit().EdgesOf(e); ok {
		for _, other := range sortedKeys(byNeighbor) {
			for _, edge := range byNeighbor[other] {
				out.Circuit = append(out.Circuit, edge.String())
			}
		}
	}
	for _, n := range c.Cable().Neighbors(e) {
		out.Cables = append(out.Cables, string(n.ID()))
	}
	return out
}

func sortedKeys[V any](m map[*entity.Entity]V) []*entity.Entity {
	return slices.SortedFunc(maps.Keys(m), func(a, b *entity.Entity) int {
		return cmp.Compare(a.ID(), b.ID())
	})
}
