package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/dmut/internal/mutation"
	"github.com/roach88/dmut/internal/planner"
	"github.com/roach88/dmut/internal/runner"
	"github.com/roach88/dmut/internal/store"
	"github.com/roach88/dmut/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs steps with a deterministic clock and run id.
type Harness struct {
	store   *store.Store
	planner *planner.Planner
	runner  *runner.Runner
	clock   *testutil.DeterministicClock
	module  string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Create the database and the audit table
//  2. Plant the seed records
//  3. Plan and run every step, checking its expectations
//  4. Evaluate the final assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(ctx, store.DriverSQLite3, ":memory:", "")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("failed to bootstrap audit table: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewDeterministicClock()
	h := &Harness{
		store:   st,
		planner: planner.New(logger),
		runner: runner.New(st,
			runner.WithLogger(logger),
			runner.WithClock(clock),
			runner.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.RunID)),
		),
		clock:  clock,
		module: scenario.Module,
	}
	if h.module == "" {
		h.module = DefaultModule
	}

	if err := h.seed(ctx, scenario.Records); err != nil {
		return nil, fmt.Errorf("failed to seed records: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		trace, err := h.executeStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		result.Steps = append(result.Steps, trace)

		if step.Expect != nil {
			for _, msg := range checkExpect(trace, step.Expect) {
				result.AddError(fmt.Sprintf("step %d: %s", i+1, msg))
			}
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// seed writes audit records without executing them.
func (h *Harness) seed(ctx context.Context, records []RecordSeed) error {
	for _, rec := range records {
		err := h.store.Upsert(ctx, h.store.DB(), store.Record{
			Name:        rec.Name,
			Source:      rec.Source,
			Ghost:       rec.Ghost,
			DateApplied: h.clock.Now(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// executeStep plans one step and runs it when the plan allows.
// Plan and run failures are part of the trace; only harness failures are
// returned.
func (h *Harness) executeStep(ctx context.Context, step Step) (StepTrace, error) {
	trace := StepTrace{Retract: []string{}, Apply: []string{}}

	local, err := h.localUnits(step.Units)
	if err != nil {
		return trace, err
	}
	remote, err := h.store.Collection(ctx)
	if err != nil {
		return trace, err
	}

	plan, err := h.planner.Plan(local, remote, planner.Options{AllowSerialEdit: step.Options.AllowSerialEdit})
	if err != nil {
		if !planner.IsPolicyError(err) {
			return trace, err
		}
		trace.Error = err.Error()
		trace.policy = true
		return trace, nil
	}

	trace.Retract = names(plan.Retract)
	trace.Apply = names(plan.Apply)
	for _, e := range plan.Errors {
		trace.UnitErrors = append(trace.UnitErrors, fmt.Sprintf("%s: %s", e.Unit, e.Message))
	}
	if plan.HasErrors() {
		trace.Error = runner.ErrPlanHasErrors.Error()
		return trace, nil
	}
	if plan.Empty() {
		return trace, nil
	}

	res, err := h.runner.Run(ctx, plan, runner.Options{
		Ghost:         step.Options.Ghost,
		DryRun:        step.Options.DryRun,
		SkipTest:      step.Options.SkipTest,
		SkipLeafTests: step.Options.SkipLeafTests,
	})
	trace.Run = res
	if err != nil {
		var runErr *runner.RunError
		if !errors.As(err, &runErr) {
			return trace, err
		}
		trace.Error = err.Error()
	}
	return trace, nil
}

func (h *Harness) localUnits(units []UnitSpec) (*mutation.Collection, error) {
	local, err := mutation.NewCollection()
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		module := u.Module
		if module == "" {
			module = h.module
		}
		if err := local.Add(mutation.New(u.Name, module, u.Source)); err != nil {
			return nil, err
		}
	}
	return local, nil
}

// checkExpect compares a step trace with its expectations.
func checkExpect(trace StepTrace, expect *Expect) []string {
	var errs []string

	if expect.RetractOrder != nil && !slices.Equal(trace.Retract, expect.RetractOrder) {
		errs = append(errs, fmt.Sprintf("retract_order: expected %v, got %v", expect.RetractOrder, trace.Retract))
	}
	if expect.ApplyOrder != nil && !slices.Equal(trace.Apply, expect.ApplyOrder) {
		errs = append(errs, fmt.Sprintf("apply_order: expected %v, got %v", expect.ApplyOrder, trace.Apply))
	}
	if expect.Committed != nil && trace.Committed() != *expect.Committed {
		errs = append(errs, fmt.Sprintf("committed: expected %t, got %t (error: %s)", *expect.Committed, trace.Committed(), trace.Error))
	}
	if expect.PolicyError != trace.policy {
		errs = append(errs, fmt.Sprintf("policy_error: expected %t, got %t", expect.PolicyError, trace.policy))
	}
	if expect.ErrorContains != "" && !strings.Contains(trace.Error, expect.ErrorContains) {
		errs = append(errs, fmt.Sprintf("error_contains: expected %q in %q", expect.ErrorContains, trace.Error))
	}
	if expect.UnitErrors != nil {
		var got []string
		for _, e := range trace.UnitErrors {
			unit, _, _ := strings.Cut(e, ": ")
			if !slices.Contains(got, unit) {
				got = append(got, unit)
			}
		}
		if !slices.Equal(got, expect.UnitErrors) {
			errs = append(errs, fmt.Sprintf("unit_errors: expected %v, got %v", expect.UnitErrors, got))
		}
	}

	return errs
}

func names(units []*mutation.Mutation) []string {
	out := make([]string, len(units))
	for i, m := range units {
		out[i] = m.FullName()
	}
	return out
}
