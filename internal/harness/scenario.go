package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a reproducible sequence of edits, live-world events and
// reconciliations with expectations on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is an optional CUE catalog directory, relative to the
	// scenario file. Without it names are compared exactly.
	Catalog string `yaml:"catalog,omitempty"`

	// MaxCableDegree overrides the cable degree bound.
	MaxCableDegree int `yaml:"max_cable_degree,omitempty"`

	// Entities are added in order before any step runs.
	Entities []EntitySpec `yaml:"entities"`

	// Steps run in order after setup.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// EntitySpec declares a stored entity.
type EntitySpec struct {
	ID              string         `yaml:"id"`
	Name            string         `yaml:"name"`
	X               float64        `yaml:"x"`
	Y               float64        `yaml:"y"`
	Direction       string         `yaml:"direction,omitempty"`
	FirstStage      int            `yaml:"first_stage"`
	LastStage       int            `yaml:"last_stage,omitempty"`
	Value           map[string]any `yaml:"value,omitempty"`
	SettingsRemnant bool           `yaml:"settings_remnant,omitempty"`

	// Live lists the stages at which a live object exists for the entity.
	Live []int `yaml:"live,omitempty"`

	// Expect is the expected outcome of adding the entity ("ok" when
	// omitted).
	Expect string `yaml:"expect,omitempty"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op     string `yaml:"op"`
	Entity string `yaml:"entity,omitempty"`
	Stage  int    `yaml:"stage,omitempty"`

	// apply_patch
	Set    map[string]any `yaml:"set,omitempty"`
	Remove []string       `yaml:"remove,omitempty"`

	// adjust_value
	Value map[string]any `yaml:"value,omitempty"`

	// reset_field, move_down
	Field string `yaml:"field,omitempty"`

	// relocate, spawn
	X *float64 `yaml:"x,omitempty"`
	Y *float64 `yaml:"y,omitempty"`

	// connect/disconnect and world_connect: entity IDs or spawned handle
	// labels.
	From     string `yaml:"from,omitempty"`
	To       string `yaml:"to,omitempty"`
	FromPort int    `yaml:"from_port,omitempty"`
	ToPort   int    `yaml:"to_port,omitempty"`
	Channel  string `yaml:"channel,omitempty"`

	// spawn, destroy
	Handle    string `yaml:"handle,omitempty"`
	Name      string `yaml:"name,omitempty"`
	Direction string `yaml:"direction,omitempty"`

	// reconcile
	Mode string `yaml:"mode,omitempty"`

	// Expect is the expected outcome string.
	Expect string `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpApplyPatch        = "apply_patch"
	OpAdjustValue       = "adjust_value"
	OpResetField        = "reset_field"
	OpMoveDown          = "move_down"
	OpSetFirstStage     = "set_first_stage"
	OpSetLastStage      = "set_last_stage"
	OpInsertStage       = "insert_stage"
	OpDeleteStage       = "delete_stage"
	OpDeleteEntity      = "delete_entity"
	OpRelocate          = "relocate"
	OpConnectCircuit    = "connect_circuit"
	OpDisconnectCircuit = "disconnect_circuit"
	OpConnectCable      = "connect_cable"
	OpDisconnectCable   = "disconnect_cable"
	OpSpawn             = "spawn"
	OpDestroy           = "destroy"
	OpWorldCircuit      = "world_connect_circuit"
	OpWorldCable        = "world_connect_cable"
	OpReconcile         = "reconcile"
	OpSaveReload        = "save_reload"
)

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Entity string `yaml:"entity,omitempty"`
	Other  string `yaml:"other,omitempty"`
	Stage  int    `yaml:"stage,omitempty"`

	// Expect is the full expected value (value_at).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent expects no value at Stage (value_at).
	Absent bool `yaml:"absent,omitempty"`

	// Count is the expected number (circuit_edges, cable_degree,
	// entity_count).
	Count *int `yaml:"count,omitempty"`

	// First and Last are the expected bounds; Last 0 means unbounded
	// (stage_bounds).
	First int `yaml:"first,omitempty"`
	Last  int `yaml:"last,omitempty"`

	// Ops is the expected live-world operation log (world_ops).
	Ops []string `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertValueAt      = "value_at"
	AssertStageBounds  = "stage_bounds"
	AssertCircuitEdges = "circuit_edges"
	AssertCableDegree  = "cable_degree"
	AssertEntityCount  = "entity_count"
	AssertWorldOps     = "world_ops"
)

// LoadScenario reads and parses a scenario YAML file. The catalog path is
// resolved relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Catalog != "" && !filepath.IsAbs(s.Catalog) {
		s.Catalog = filepath.Join(filepath.Dir(path), s.Catalog)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Entities) == 0 {
		return fmt.Errorf("entities list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	ids := make(map[string]bool)
	for i, e := range s.Entities {
		switch {
		case e.ID == "":
			return fmt.Errorf("entities[%d]: id is required", i)
		case ids[e.ID]:
			return fmt.Errorf("entities[%d]: duplicate id %q", i, e.ID)
		case e.Name == "":
			return fmt.Errorf("entities[%d]: name is required", i)
		case e.FirstStage < 1:
			return fmt.Errorf("entities[%d]: first_stage must be >= 1", i)
		case e.LastStage != 0 && e.LastStage < e.FirstStage:
			return fmt.Errorf("entities[%d]: last_stage before first_stage", i)
		}
		ids[e.ID] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	needEntity := func() error {
		if st.Entity == "" {
			return fmt.Errorf("steps[%d]: entity is required for %s", index, st.Op)
		}
		return nil
	}
	needStage := func() error {
		if st.Stage < 1 {
			return fmt.Errorf("steps[%d]: stage >= 1 is required for %s", index, st.Op)
		}
		return nil
	}
	needPair := func() error {
		if st.From == "" || st.To == "" {
			return fmt.Errorf("steps[%d]: from and to are required for %s", index, st.Op)
		}
		return nil
	}

	switch st.Op {
	case OpApplyPatch, OpAdjustValue, OpSetFirstStage:
		if err := needEntity(); err != nil {
			return err
		}
		return needStage()
	case OpResetField:
		if st.Field == "" {
			return fmt.Errorf("steps[%d]: field is required for %s", index, st.Op)
		}
		if err := needEntity(); err != nil {
			return err
		}
		return needStage()
	case OpMoveDown:
		if err := needEntity(); err != nil {
			return err
		}
		return needStage()
	case OpSetLastStage, OpDeleteEntity:
		return needEntity()
	case OpRelocate:
		if st.X == nil || st.Y == nil {
			return fmt.Errorf("steps[%d]: x and y are required for %s", index, st.Op)
		}
		return needEntity()
	case OpInsertStage, OpDeleteStage:
		return needStage()
	case OpConnectCircuit, OpDisconnectCircuit:
		if st.Channel == "" {
			return fmt.Errorf("steps[%d]: channel is required for %s", index, st.Op)
		}
		return needPair()
	case OpConnectCable, OpDisconnectCable:
		return needPair()
	case OpWorldCircuit:
		if st.Channel == "" {
			return fmt.Errorf("steps[%d]: channel is required for %s", index, st.Op)
		}
		if err := needPair(); err != nil {
			return err
		}
		return needStage()
	case OpWorldCable:
		if err := needPair(); err != nil {
			return err
		}
		return needStage()
	case OpSpawn:
		if st.Handle == "" || st.Name == "" || st.X == nil || st.Y == nil {
			return fmt.Errorf("steps[%d]: handle, name, x and y are required for %s", index, st.Op)
		}
	case OpDestroy:
		if st.Handle == "" && st.Entity == "" {
			return fmt.Errorf("steps[%d]: handle or entity is required for %s", index, st.Op)
		}
	case OpReconcile:
		if st.Mode != "apply" && st.Mode != "save" {
			return fmt.Errorf("steps[%d]: mode must be apply or save", index)
		}
		return needStage()
	case OpSaveReload:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertValueAt:
		if a.Entity == "" || a.Stage < 1 {
			return fmt.Errorf("assertions[%d]: entity and stage are required for value_at", index)
		}
		if a.Expect == nil && !a.Absent {
			return fmt.Errorf("assertions[%d]: expect or absent is required for value_at", index)
		}
	case AssertStageBounds:
		if a.Entity == "" || a.First < 1 {
			return fmt.Errorf("assertions[%d]: entity and first are required for stage_bounds", index)
		}
	case AssertCircuitEdges, AssertCableDegree:
		if a.Entity == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: entity and count are required for %s", index, a.Type)
		}
	case AssertEntityCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for entity_count", index)
		}
	case AssertWorldOps:
		if a.Ops == nil {
			return fmt.Errorf("assertions[%d]: ops is required for world_ops", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
