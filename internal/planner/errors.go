package planner

import (
	"errors"
	"fmt"
	"strings"
)

// Side names the collection a unit comes from.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// UnitError is a structural problem recorded on one unit.
type UnitError struct {
	Unit    string `json:"unit"`
	Side    Side   `json:"side"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e UnitError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Unit, e.Side, e.Message)
}

// PolicyError reports serial units whose source changed after they were
// applied. Serial units are append-only history.
type PolicyError struct {
	Units []string
}

// Error implements the error interface.
func (e *PolicyError) Error() string {
	return fmt.Sprintf("serial mutations cannot be edited in place: %s", strings.Join(e.Units, ", "))
}

// IsPolicyError returns true if the error is a serial policy violation.
// Uses errors.As to handle wrapped errors.
func IsPolicyError(err error) bool {
	var pe *PolicyError
	return errors.As(err, &pe)
}
