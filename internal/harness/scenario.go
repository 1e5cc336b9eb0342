package harness

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultModule is the module of units that do not name one.
const DefaultModule = "m"

// validIdentifier matches schema object names accepted by object assertions.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Scenario defines a sequence of reconciliations and the state they must
// leave behind.
type Scenario struct {
	// Name uniquely identifies this scenario and its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Module is the default module of step units. Defaults to "m".
	Module string `yaml:"module,omitempty"`

	// RunID is the fixed run id. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Records are written to the audit table before the first step, without
	// executing anything.
	Records []RecordSeed `yaml:"records,omitempty"`

	// Steps are reconciled in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the database after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// RecordSeed is an audit row planted before the scenario runs.
type RecordSeed struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Ghost  bool   `yaml:"ghost,omitempty"`
}

// Step is one reconciliation.
type Step struct {
	// Units are the local units, in load order.
	Units []UnitSpec `yaml:"units"`

	Options StepOptions `yaml:"options,omitempty"`

	// Expect validates the plan and the run. Nil skips validation.
	Expect *Expect `yaml:"expect,omitempty"`
}

// UnitSpec declares a local unit.
type UnitSpec struct {
	Name   string `yaml:"name"`
	Module string `yaml:"module,omitempty"`
	Source string `yaml:"source"`
}

// StepOptions mirror the apply command flags.
type StepOptions struct {
	Ghost           bool `yaml:"ghost,omitempty"`
	DryRun          bool `yaml:"dry_run,omitempty"`
	SkipTest        bool `yaml:"skip_test,omitempty"`
	SkipLeafTests   bool `yaml:"skip_leaf_tests,omitempty"`
	AllowSerialEdit bool `yaml:"allow_serial_edit,omitempty"`
}

// Expect specifies the expected outcome of a step. Nil lists are not
// checked; an empty list must match an empty plan list.
type Expect struct {
	RetractOrder  []string `yaml:"retract_order,omitempty"`
	ApplyOrder    []string `yaml:"apply_order,omitempty"`
	Committed     *bool    `yaml:"committed,omitempty"`
	ErrorContains string   `yaml:"error_contains,omitempty"`
	PolicyError   bool     `yaml:"policy_error,omitempty"`
	UnitErrors    []string `yaml:"unit_errors,omitempty"`
}

// Assertion validates the final database state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Names are the expected audit names (audit_rows, ghost_rows).
	Names []string `yaml:"names,omitempty"`

	// Object is a schema object name (object_exists, object_missing).
	Object string `yaml:"object,omitempty"`

	// Name and Source identify an audit row (audit_source).
	Name   string `yaml:"name,omitempty"`
	Source string `yaml:"source,omitempty"`
}

// Assertion type constants.
const (
	AssertAuditRows     = "audit_rows"
	AssertGhostRows     = "ghost_rows"
	AssertAuditSource   = "audit_source"
	AssertObjectExists  = "object_exists"
	AssertObjectMissing = "object_missing"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.Module == "" {
		scenario.Module = DefaultModule
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, rec := range s.Records {
		if !strings.Contains(rec.Name, ":") {
			return fmt.Errorf("records[%d]: name %q must be a full name (module:name)", i, rec.Name)
		}
	}

	for i, step := range s.Steps {
		for j, unit := range step.Units {
			if unit.Name == "" {
				return fmt.Errorf("steps[%d].units[%d]: name is required", i, j)
			}
			if strings.Contains(unit.Name, ":") {
				return fmt.Errorf("steps[%d].units[%d]: name %q must not contain a module, use the module field", i, j, unit.Name)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAuditRows, AssertGhostRows:
		if a.Object != "" {
			return fmt.Errorf("assertions[%d]: object is not allowed for %s", index, a.Type)
		}
	case AssertAuditSource:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for audit_source", index)
		}
	case AssertObjectExists, AssertObjectMissing:
		if !validIdentifier.MatchString(a.Object) {
			return fmt.Errorf("assertions[%d]: invalid object name %q for %s", index, a.Object, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
