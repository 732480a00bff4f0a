package harness

// FaultEvent is one denial observed while a step ran.
type FaultEvent struct {
	Op   string `json:"op"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// TraceEvent records one executed step.
type TraceEvent struct {
	Step   int    `json:"step"`
	Op     string `json:"op"`
	Target string `json:"target,omitempty"`
	Name   string `json:"name,omitempty"`

	// Result is the rendered step result; nil when the step failed.
	Result any `json:"result,omitempty"`

	// Error is the error code of a failed step.
	Error string `json:"error,omitempty"`

	Faults []FaultEvent `json:"faults,omitempty"`
	Seq    int64        `json:"seq"`
}

// canonical converts e for ir.MarshalCanonical, which only handles IR
// types and primitives.
func (e TraceEvent) canonical() map[string]any {
	m := map[string]any{
		"step": e.Step,
		"op":   e.Op,
		"seq":  e.Seq,
	}
	if e.Target != "" {
		m["target"] = e.Target
	}
	if e.Name != "" {
		m["name"] = e.Name
	}
	if e.Result != nil {
		m["result"] = e.Result
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	if len(e.Faults) > 0 {
		faults := make([]any, len(e.Faults))
		for i, f := range e.Faults {
			faults[i] = map[string]any{"op": f.Op, "name": f.Name, "code": f.Code}
		}
		m["faults"] = faults
	}
	return m
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Session is the session id the audit rows were written under.
	Session string `json:"session"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(session string) *Result {
	return &Result{
		Pass:    true,
		Session: session,
		Trace:   []TraceEvent{},
		Errors:  []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
