package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
)

// EvaluateAssertions checks every assertion against the harness state and
// returns one message per failure.
func EvaluateAssertions(h *Harness, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if msg := evaluate(h, a); msg != "" {
			errs = append(errs, fmt.Sprintf("assertions[%d] %s: %s", i, a.Type, msg))
		}
	}
	return errs
}

func evaluate(h *Harness, a Assertion) string {
	switch a.Type {
	case AssertEntityCount:
		if got := h.content.Len(); got != *a.Count {
			return fmt.Sprintf("expected %d entities, got %d", *a.Count, got)
		}
		return ""
	case AssertWorldOps:
		if got := h.liveOps(); !slices.Equal(got, a.Ops) {
			return fmt.Sprintf("expected ops %q, got %q", a.Ops, got)
		}
		return ""
	}

	e, ok := h.content.Get(entity.ID(a.Entity))
	if !ok {
		return fmt.Sprintf("entity %q not found", a.Entity)
	}

	switch a.Type {
	case AssertValueAt:
		return assertValueAt(e, a)
	case AssertStageBounds:
		last, _ := e.LastStage()
		if int(e.FirstStage()) != a.First || int(last) != a.Last {
			return fmt.Sprintf("expected bounds [%d, %d], got [%d, %d]", a.First, a.Last, e.FirstStage(), last)
		}
	case AssertCircuitEdges:
		got := 0
		if a.Other == "" {
			got = h.content.Circuit().Degree(e)
		} else if other, ok := h.content.Get(entity.ID(a.Other)); ok {
			got = len(h.content.Circuit().EdgesBetween(e, other))
		}
		if got != *a.Count {
			return fmt.Sprintf("expected %d circuit edges, got %d", *a.Count, got)
		}
	case AssertCableDegree:
		if got := h.content.Cable().Degree(e); got != *a.Count {
			return fmt.Sprintf("expected cable degree %d, got %d", *a.Count, got)
		}
	}
	return ""
}

func assertValueAt(e *entity.Entity, a Assertion) string {
	stage := model.Stage(a.Stage)
	got, ok := e.ValueAt(stage)
	if a.Absent {
		if ok {
			return fmt.Sprintf("expected no value at stage %d, got %s", stage, render(got))
		}
		return ""
	}
	if !ok {
		return fmt.Sprintf("no value at stage %d", stage)
	}
	want, err := toObject(a.Expect)
	if err != nil {
		return fmt.Sprintf("bad expect: %v", err)
	}
	if !model.Equal(want, got) {
		return fmt.Sprintf("expected %s, got %s", render(want), render(got))
	}
	return ""
}

func render(obj model.Object) string {
	b, err := model.MarshalValue(obj)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}
