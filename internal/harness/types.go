package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int      `json:"seq"`
	Action  string   `json:"action"`
	Dates   []string `json:"dates,omitempty"`
	Outcome string   `json:"outcome"`

	// Balance is the spendable balance after the step.
	Balance float64 `json:"balance"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step had its expected outcome and every
	// assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
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

// AddTrace appends a step to the trace, numbering it.
func (r *Result) AddTrace(e TraceEvent) {
	e.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, e)
}
