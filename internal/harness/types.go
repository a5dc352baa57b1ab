package harness

// TraceEvent records one setup add or step and its outcome.
type TraceEvent struct {
	Op      string `json:"op"`
	Entity  string `json:"entity,omitempty"`
	Outcome string `json:"outcome"`

	// Detail holds op-specific data (reconcile classifications).
	Detail []any `json:"detail,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect and assertion matched.
	Pass bool

	// Trace contains every add and step in order.
	Trace []TraceEvent

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string

	// Snapshot is the canonical final state for golden comparison.
	Snapshot map[string]any
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a trace event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
