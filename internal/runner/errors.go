package runner

import (
	"errors"
	"fmt"
)

// ErrPlanHasErrors is returned when asked to run a plan with structural
// errors.
var ErrPlanHasErrors = errors.New("plan has structural errors")

// ErrorCode categorizes run failures.
type ErrorCode string

const (
	// ErrCodeExecutionFailed indicates a statement or audit write failed
	// during retract or apply.
	ErrCodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// ErrCodeReversibilityFailed indicates the down/up replay of an applied
	// unit did not complete.
	ErrCodeReversibilityFailed ErrorCode = "REVERSIBILITY_FAILED"
)

// RunError is a failure that rolled the run back.
type RunError struct {
	Code  ErrorCode
	Phase Phase
	Unit  string

	// Statement is the statement that failed, when one did.
	Statement string

	// Sequence is the replay attempted by a reversibility test.
	Sequence []Step

	Err error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("%s: %s %s: %q: %v", e.Code, e.Phase, e.Unit, e.Statement, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Code, e.Phase, e.Unit, e.Err)
}

// Unwrap returns the underlying database error.
func (e *RunError) Unwrap() error {
	return e.Err
}

// IsExecutionError returns true if the error is an execution failure.
// Uses errors.As to handle wrapped and joined errors.
func IsExecutionError(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeExecutionFailed
	}
	return false
}

// IsReversibilityError returns true if the error is a reversibility failure.
// Uses errors.As to handle wrapped and joined errors.
func IsReversibilityError(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeReversibilityFailed
	}
	return false
}

// ReversibilityErrors extracts every reversibility failure from err.
func ReversibilityErrors(err error) []*RunError {
	var out []*RunError
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
			return
		}
		var re *RunError
		if errors.As(err, &re) && re.Code == ErrCodeReversibilityFailed {
			out = append(out, re)
		}
	}
	walk(err)
	return out
}
