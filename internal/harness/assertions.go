package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dmut/internal/store"
)

// AssertionContext provides what assertions need to inspect the database.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertAuditRows:
		return assertAuditRows(actx, a, false)
	case AssertGhostRows:
		return assertAuditRows(actx, a, true)
	case AssertAuditSource:
		return assertAuditSource(actx, a)
	case AssertObjectExists:
		return assertObject(actx, a, true)
	case AssertObjectMissing:
		return assertObject(actx, a, false)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertAuditRows compares the audit names, in record order, with the
// expected list. With ghostOnly only ghost records are considered.
func assertAuditRows(actx *AssertionContext, a Assertion, ghostOnly bool) error {
	records, err := actx.Store.Records(actx.Ctx, actx.Store.DB())
	if err != nil {
		return fmt.Errorf("read audit table: %w", err)
	}

	got := []string{}
	for _, rec := range records {
		if !ghostOnly || rec.Ghost {
			got = append(got, rec.Name)
		}
	}
	want := a.Names
	if want == nil {
		want = []string{}
	}

	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertAuditSource checks the recorded source of one audit row.
func assertAuditSource(actx *AssertionContext, a Assertion) error {
	records, err := actx.Store.Records(actx.Ctx, actx.Store.DB())
	if err != nil {
		return fmt.Errorf("read audit table: %w", err)
	}

	for _, rec := range records {
		if rec.Name != a.Name {
			continue
		}
		if rec.Source != a.Source {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s source %q", a.Name, a.Source),
				Actual:   fmt.Sprintf("%q", rec.Source),
			}
		}
		return nil
	}

	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("audit row %s", a.Name),
		Actual:   "row not found",
	}
}

// assertObject checks whether a table, view, index or trigger exists.
func assertObject(actx *AssertionContext, a Assertion, exists bool) error {
	if !validIdentifier.MatchString(a.Object) {
		return fmt.Errorf("invalid object name %q: must match pattern %s", a.Object, validIdentifier.String())
	}

	var count int
	row := actx.Store.DB().QueryRowContext(actx.Ctx, "SELECT count(*) FROM sqlite_master WHERE name = ?", a.Object)
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("query schema: %w", err)
	}

	if (count > 0) != exists {
		expected, actual := "present", "missing"
		if !exists {
			expected, actual = actual, expected
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s %s", a.Object, expected),
			Actual:   actual,
		}
	}
	return nil
}
