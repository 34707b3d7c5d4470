package harness

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Seq     int            `json:"seq"`
	Op      string         `json:"op"`
	Caller  string         `json:"caller,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome string         `json:"outcome"`
	Result  map[string]any `json:"result,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions hold.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
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

// AddTrace appends a step to the trace and returns it.
func (r *Result) AddTrace(event TraceEvent) *TraceEvent {
	event.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, event)
	return &r.Trace[len(r.Trace)-1]
}
