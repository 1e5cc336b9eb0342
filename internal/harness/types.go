package harness

import "github.com/roach88/dmut/internal/runner"

// StepTrace records what one step planned and ran.
type StepTrace struct {
	Retract []string `json:"retract"`
	Apply   []string `json:"apply"`

	// UnitErrors lists structural errors as "unit: message".
	UnitErrors []string `json:"unit_errors,omitempty"`

	// Run is nil when the step stopped at planning.
	Run   *runner.Result `json:"run,omitempty"`
	Error string         `json:"error,omitempty"`

	policy bool
}

// Committed reports whether the step's run committed.
func (s StepTrace) Committed() bool {
	return s.Run != nil && s.Run.Committed
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Steps []StepTrace `json:"steps"`

	// Errors contains failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
