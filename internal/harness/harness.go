package harness

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/staged/internal/catalog"
	"github.com/roach88/staged/internal/compat"
	"github.com/roach88/staged/internal/content"
	"github.com/roach88/staged/internal/diffchain"
	"github.com/roach88/staged/internal/entity"
	"github.com/roach88/staged/internal/model"
	"github.com/roach88/staged/internal/reconcile"
	"github.com/roach88/staged/internal/spatial"
	"github.com/roach88/staged/internal/store"
	"github.com/roach88/staged/internal/testutil"
	"github.com/roach88/staged/internal/wires"
)

// Step outcomes shared by several ops.
const (
	OutcomeOK       = "ok"
	OutcomeMissing  = "missing"
	OutcomeRejected = "rejected"
	OutcomeInSync   = "in-sync"
	OutcomeChanged  = "changed"
)

// Harness executes one scenario. Every run gets fresh content, a fresh
// fake world and an in-memory store.
type Harness struct {
	scenario   *Scenario
	classifier compat.Classifier
	options    []content.Option
	content    *content.Content
	world      *testutil.FakeWorld
	reconciler *reconcile.Reconciler
	store      *store.Store
	handles    map[string]*testutil.Handle
	logger     *slog.Logger
}

// Run executes a scenario and returns the result. An error means the
// scenario could not be executed at all (bad catalog, unknown entity
// reference); expectation mismatches are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var classifier compat.Classifier
	if scenario.Catalog != "" {
		cat, errs := catalog.Load(scenario.Catalog)
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to load catalog: %w", errors.Join(errs...))
		}
		classifier = cat
	}

	st, err := store.Open(":memory:", store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	options := []content.Option{content.WithLogger(logger)}
	if scenario.MaxCableDegree > 0 {
		options = append(options, content.WithMaxCableDegree(scenario.MaxCableDegree))
	}

	h := &Harness{
		scenario:   scenario,
		classifier: classifier,
		options:    options,
		content:    content.New(classifier, options...),
		world:      testutil.NewFakeWorld(),
		store:      st,
		handles:    make(map[string]*testutil.Handle),
		logger:     logger,
	}
	h.reconciler = reconcile.New(h.content, h.world)

	result := NewResult()
	if err := h.setup(result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	ctx := context.Background()
	for i, step := range scenario.Steps {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
		result.AddTrace(ev)
		if step.Expect != "" && step.Expect != ev.Outcome {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected %q, got %q", i, step.Op, step.Expect, ev.Outcome))
		}
	}

	for _, msg := range EvaluateAssertions(h, scenario.Assertions) {
		result.AddError(msg)
	}

	snap, err := h.snapshot(result.Trace)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot: %w", err)
	}
	result.Snapshot = snap
	return result, nil
}

func (h *Harness) setup(result *Result) error {
	for i, def := range h.scenario.Entities {
		e, err := buildEntity(def)
		if err != nil {
			return fmt.Errorf("entities[%d]: %w", i, err)
		}

		outcome := OutcomeOK
		if err := h.content.Add(e); err != nil {
			outcome = errorOutcome(err)
		} else {
			for _, s := range def.Live {
				dir := e.Direction()
				e.SetLive(model.Stage(s), h.world.Spawn(e.Name(), e.Position(), &dir))
			}
		}

		result.AddTrace(TraceEvent{Op: "add", Entity: def.ID, Outcome: outcome})
		want := def.Expect
		if want == "" {
			want = OutcomeOK
		}
		if want != outcome {
			result.AddError(fmt.Sprintf("entities[%d] %s: expected %q, got %q", i, def.ID, want, outcome))
		}
	}
	return nil
}

func buildEntity(def EntitySpec) (*entity.Entity, error) {
	base := model.Object{}
	if def.Value != nil {
		obj, err := toObject(def.Value)
		if err != nil {
			return nil, err
		}
		base = obj
	}
	base[model.NameKey] = model.String(def.Name)

	dir, err := model.ParseDirection(def.Direction)
	if err != nil {
		return nil, err
	}
	chain, err := diffchain.Restore(model.Stage(def.FirstStage), model.Stage(def.LastStage), base, nil)
	if err != nil {
		return nil, err
	}
	e := entity.Restore(entity.ID(def.ID), model.Pos(def.X, def.Y), dir, chain)
	e.SetSettingsRemnant(def.SettingsRemnant)
	return e, nil
}

func toObject(m map[string]any) (model.Object, error) {
	v, err := model.FromGo(m)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(model.Object)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
	return obj, nil
}

// errorOutcome names an error for the trace.
func errorOutcome(err error) string {
	switch {
	case errors.Is(err, diffchain.ErrStageOutOfRange):
		return "stage-out-of-range"
	case errors.Is(err, diffchain.ErrNameRequired):
		return "name-required"
	case errors.Is(err, content.ErrConflict):
		return "conflict"
	case errors.Is(err, content.ErrDuplicateID):
		return "duplicate"
	case errors.Is(err, spatial.ErrNotMember):
		return "not-member"
	default:
		return "error"
	}
}

func (h *Harness) entity(id string) (*entity.Entity, error) {
	e, ok := h.content.Get(entity.ID(id))
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", id)
	}
	return e, nil
}

// handle resolves a spawned label, or else the live object of entity ref
// at stage.
func (h *Harness) handle(ref string, stage model.Stage) (model.Handle, error) {
	if hd, ok := h.handles[ref]; ok {
		return hd, nil
	}
	e, err := h.entity(ref)
	if err != nil {
		return nil, err
	}
	hd, ok := e.LiveAt(stage)
	if !ok {
		return nil, fmt.Errorf("entity %q has no live object at stage %d", ref, stage)
	}
	return hd, nil
}

func (h *Harness) execute(ctx context.Context, st Step) (TraceEvent, error) {
	ev := TraceEvent{Op: st.Op, Entity: st.Entity}
	stage := model.Stage(st.Stage)

	outcome, detail, err := h.dispatch(ctx, st, stage)
	if err != nil {
		return ev, err
	}
	ev.Outcome = outcome
	ev.Detail = detail
	return ev, nil
}

func (h *Harness) dispatch(ctx context.Context, st Step, stage model.Stage) (string, []any, error) {
	switch st.Op {
	case OpInsertStage:
		h.content.InsertStage(stage)
		return OutcomeOK, nil, nil
	case OpDeleteStage:
		h.content.DeleteStage(stage)
		return OutcomeOK, nil, nil
	case OpDeleteEntity:
		e, ok := h.content.Get(entity.ID(st.Entity))
		if !ok || !h.content.Delete(e) {
			return OutcomeMissing, nil, nil
		}
		return "deleted", nil, nil
	case OpConnectCircuit, OpDisconnectCircuit:
		return h.circuit(st)
	case OpConnectCable, OpDisconnectCable:
		return h.cable(st)
	case OpSpawn, OpDestroy, OpWorldCircuit, OpWorldCable:
		return h.live(st, stage)
	case OpReconcile:
		return h.reconcile(st, stage)
	case OpSaveReload:
		return h.saveReload(ctx)
	}

	e, err := h.entity(st.Entity)
	if err != nil {
		return "", nil, err
	}
	return h.edit(e, st, stage)
}

func (h *Harness) edit(e *entity.Entity, st Step, stage model.Stage) (string, []any, error) {
	outcomeOf := func(err error) string {
		if err != nil {
			return errorOutcome(err)
		}
		return OutcomeOK
	}

	switch st.Op {
	case OpApplyPatch:
		patch := model.NewPatch()
		for k, raw := range st.Set {
			v, err := model.FromGo(raw)
			if err != nil {
				return "", nil, fmt.Errorf("set %q: %w", k, err)
			}
			patch = patch.With(k, v)
		}
		for _, k := range st.Remove {
			patch[k] = model.Remove()
		}
		return outcomeOf(e.ApplyPatch(stage, patch)), nil, nil

	case OpAdjustValue:
		obj, err := toObject(st.Value)
		if err != nil {
			return "", nil, fmt.Errorf("value: %w", err)
		}
		changed, err := e.AdjustValueAtStage(stage, obj)
		if err != nil {
			return errorOutcome(err), nil, nil
		}
		if !changed {
			return "unchanged", nil, nil
		}
		return OutcomeChanged, nil, nil

	case OpResetField:
		if !e.ResetField(stage, st.Field) {
			return OutcomeMissing, nil, nil
		}
		return "reset", nil, nil

	case OpMoveDown:
		var (
			to model.Stage
			ok bool
		)
		if st.Field == "" {
			to, ok = e.MoveDiffDown(stage)
		} else {
			to, ok = e.MoveFieldDown(stage, st.Field)
		}
		if !ok {
			return OutcomeMissing, nil, nil
		}
		return fmt.Sprintf("moved-to-%d", to), nil, nil

	case OpSetFirstStage:
		return outcomeOf(e.SetFirstStage(stage)), nil, nil

	case OpSetLastStage:
		if stage == 0 {
			e.ClearLastStage()
			return OutcomeOK, nil, nil
		}
		return outcomeOf(e.SetLastStage(stage)), nil, nil

	case OpRelocate:
		return outcomeOf(h.content.Relocate(e, model.Pos(*st.X, *st.Y))), nil, nil
	}
	return "", nil, fmt.Errorf("unhandled op %q", st.Op)
}

func (h *Harness) pair(st Step) (*entity.Entity, *entity.Entity, error) {
	a, err := h.entity(st.From)
	if err != nil {
		return nil, nil, err
	}
	b, err := h.entity(st.To)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (h *Harness) circuit(st Step) (string, []any, error) {
	a, b, err := h.pair(st)
	if err != nil {
		return "", nil, err
	}
	ch, err := wires.ParseChannel(st.Channel)
	if err != nil {
		return "", nil, err
	}
	edge := wires.CircuitEdge{From: a, To: b, FromPort: wires.Port(st.FromPort), ToPort: wires.Port(st.ToPort), Channel: ch}
	if st.Op == OpConnectCircuit {
		if !h.content.ConnectCircuit(edge) {
			return OutcomeRejected, nil, nil
		}
		return "added", nil, nil
	}
	if !h.content.DisconnectCircuit(edge) {
		return OutcomeMissing, nil, nil
	}
	return "removed", nil, nil
}

func (h *Harness) cable(st Step) (string, []any, error) {
	a, b, err := h.pair(st)
	if err != nil {
		return "", nil, err
	}
	if st.Op == OpConnectCable {
		return h.content.ConnectCable(a, b).String(), nil, nil
	}
	if !h.content.DisconnectCable(a, b) {
		return OutcomeMissing, nil, nil
	}
	return "removed", nil, nil
}

func (h *Harness) live(st Step, stage model.Stage) (string, []any, error) {
	switch st.Op {
	case OpSpawn:
		var dir *model.Direction
		if st.Direction != "" {
			d, err := model.ParseDirection(st.Direction)
			if err != nil {
				return "", nil, err
			}
			dir = &d
		}
		h.handles[st.Handle] = h.world.Spawn(st.Name, model.Pos(*st.X, *st.Y), dir)
		return OutcomeOK, nil, nil

	case OpDestroy:
		ref := cmp.Or(st.Handle, st.Entity)
		hd, err := h.handle(ref, stage)
		if err != nil {
			return OutcomeMissing, nil, nil
		}
		h.world.Destroy(hd.(*testutil.Handle))
		return OutcomeOK, nil, nil
	}

	a, err := h.handle(st.From, stage)
	if err != nil {
		return "", nil, err
	}
	b, err := h.handle(st.To, stage)
	if err != nil {
		return "", nil, err
	}
	var ok bool
	if st.Op == OpWorldCircuit {
		ch, err := wires.ParseChannel(st.Channel)
		if err != nil {
			return "", nil, err
		}
		ok = h.world.ConnectCircuit(a, reconcile.CircuitConnection{
			Other:    b,
			FromPort: wires.Port(st.FromPort),
			ToPort:   wires.Port(st.ToPort),
			Channel:  ch,
		})
	} else {
		ok = h.world.ConnectCable(a, b)
	}
	if !ok {
		return OutcomeRejected, nil, nil
	}
	return "connected", nil, nil
}

func (h *Harness) reconcile(st Step, stage model.Stage) (string, []any, error) {
	mode, err := reconcile.ParseMode(st.Mode)
	if err != nil {
		return "", nil, err
	}

	var results []reconcile.Result
	if st.Entity != "" {
		e, err := h.entity(st.Entity)
		if err != nil {
			return "", nil, err
		}
		results = []reconcile.Result{h.reconciler.Reconcile(e, stage, mode)}
	} else {
		results = h.reconciler.ReconcileStage(stage, mode)
	}

	outcome := OutcomeInSync
	detail := make([]any, 0, len(results))
	for _, r := range results {
		if !r.InSync() || len(r.CableRejected) > 0 {
			outcome = OutcomeChanged
		}
		detail = append(detail, resultDetail(r))
	}
	return outcome, detail, nil
}

func resultDetail(r reconcile.Result) map[string]any {
	d := map[string]any{"entity": string(r.Entity.ID())}
	if r.Skipped {
		d["skipped"] = true
		return d
	}
	d["circuit"] = []any{len(r.Circuit.Matching), len(r.Circuit.Extra), len(r.Circuit.Missing)}
	d["cable"] = []any{len(r.Cable.Matching), len(r.Cable.Extra), len(r.Cable.Missing)}
	if len(r.CableRejected) > 0 {
		ids := make([]string, len(r.CableRejected))
		for i, e := range r.CableRejected {
			ids[i] = string(e.ID())
		}
		d["rejected"] = ids
	}
	return d
}

// saveReload persists the content, loads it back and reattaches live
// objects, which are never persisted.
func (h *Harness) saveReload(ctx context.Context) (string, []any, error) {
	if err := h.store.Save(ctx, h.content); err != nil {
		return "", nil, err
	}
	loaded, err := h.store.Load(ctx, h.classifier, h.options...)
	if err != nil {
		return "", nil, err
	}
	for _, old := range h.content.All() {
		e, ok := loaded.Get(old.ID())
		if !ok {
			continue
		}
		for _, s := range old.LiveStages() {
			if hd, ok := old.LiveAt(s); ok {
				e.SetLive(s, hd)
			}
		}
	}
	h.content = loaded
	h.reconciler = reconcile.New(loaded, h.world)
	return OutcomeOK, []any{loaded.Len(), loaded.Circuit().Len(), loaded.Cable().Len()}, nil
}

// liveOps returns the world operation log.
func (h *Harness) liveOps() []string {
	return slices.Clone(h.world.Ops())
}
