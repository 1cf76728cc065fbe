package harness

// OutcomeTrace is the recorded verdict for one class.
type OutcomeTrace struct {
	Class   string   `json:"class"`
	Status  string   `json:"status"`
	Passes  []string `json:"passes,omitempty"`
	Changed bool     `json:"changed"`
}

// RunTrace is everything observable about one run. Paths under the
// scenario's work directory are replaced by "$WORK".
type RunTrace struct {
	RunID        string         `json:"run_id"`
	Status       string         `json:"status"`
	Inputs       int            `json:"inputs"`
	Working      int            `json:"working"`
	Considered   int            `json:"considered"`
	Packages     []string       `json:"packages,omitempty"`
	Outcomes     []OutcomeTrace `json:"outcomes"`
	Skipped      int            `json:"skipped,omitempty"`
	FallbackHits int64          `json:"fallback_hits"`
	Diagnostics  []string       `json:"diagnostics"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause matched.
	Pass bool `json:"pass"`

	// Runs holds one trace per run step, in order.
	Runs []RunTrace `json:"runs"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Runs:   []RunTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
