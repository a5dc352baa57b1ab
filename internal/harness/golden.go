package harness

import (
	"cmp"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
)

// snapshot captures the final state. Every field is built from canonical
// JSON-safe types; positions are rendered as strings since floats are not
// allowed in canonical JSON.
func (h *Harness) snapshot(trace []TraceEvent) (map[string]any, error) {
	traceList := make([]any, len(trace))
	for i, ev := range trace {
		m := map[string]any{
			"op":      ev.Op,
			"outcome": ev.Outcome,
		}
		if ev.Entity != "" {
			m["entity"] = ev.Entity
		}
		if len(ev.Detail) > 0 {
			m["detail"] = ev.Detail
		}
		traceList[i] = m
	}

	entities := h.content.All()
	slices.SortFunc(entities, func(a, b *entity.Entity) int { return cmp.Compare(a.ID(), b.ID()) })
	entityList := make([]any, len(entities))
	for i, e := range entities {
		entityList[i] = entitySnapshot(e)
	}

	edges := h.content.Circuit().All()
	circuit := make([]any, len(edges))
	for i, e := range edges {
		circuit[i] = map[string]any{
			"from":      string(e.From.ID()),
			"from_port": int(e.FromPort),
			"to":        string(e.To.ID()),
			"to_port":   int(e.ToPort),
			"channel":   e.Channel.String(),
		}
	}

	pairs := h.content.Cable().All()
	cables := make([]any, len(pairs))
	for i, p := range pairs {
		cables[i] = []string{string(p.A.ID()), string(p.B.ID())}
	}

	return map[string]any{
		"scenario_name": h.scenario.Name,
		"trace":         traceList,
		"entities":      entityList,
		"circuit":       circuit,
		"cables":        cables,
		"world_ops":     h.liveOps(),
	}, nil
}

func entitySnapshot(e *entity.Entity) map[string]any {
	m := map[string]any{
		"id":          string(e.ID()),
		"position":    e.Position().String(),
		"direction":   e.Direction().String(),
		"first_stage": int(e.FirstStage()),
		"base":        e.Chain().Base(),
	}
	if last, ok := e.LastStage(); ok {
		m["last_stage"] = int(last)
	}
	if diffs := e.Chain().Diffs(); len(diffs) > 0 {
		list := make([]any, len(diffs))
		for i, d := range diffs {
			list[i] = map[string]any{
				"stage": int(d.Stage),
				"patch": d.Patch.ToCanonical(),
			}
		}
		m["diffs"] = list
	}
	if e.IsSettingsRemnant() {
		m["settings_remnant"] = true
	}
	return m
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's snapshot against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := result.SnapshotJSON()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// SnapshotJSON returns the snapshot as canonical JSON, the golden file
// format.
func (r *Result) SnapshotJSON() ([]byte, error) {
	return model.MarshalCanonical(r.Snapshot)
}
