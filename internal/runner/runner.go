package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/dmut/internal/mutation"
	"github.com/roach88/dmut/internal/planner"
	"github.com/roach88/dmut/internal/store"
)

// AuditStore is the audit table as seen by the runner.
type AuditStore interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	Upsert(ctx context.Context, q store.Executor, rec store.Record) error
	Delete(ctx context.Context, q store.Executor, name string) error
}

// Recorder observes finished runs.
type Recorder interface {
	RecordRun(res *Result, elapsed time.Duration, err error)
}

// Options controls a single run.
type Options struct {
	// Ghost records applied units in the audit table without executing
	// their up statements, and skips the test phase.
	Ghost bool
	// DryRun executes everything and rolls back instead of committing.
	DryRun bool
	// SkipTest disables the reversibility test phase.
	SkipTest bool
	// SkipLeafTests skips testing units with parents and no children.
	SkipLeafTests bool
}

// Runner executes plans against one audit store.
type Runner struct {
	store    AuditStore
	logger   *slog.Logger
	clock    Clock
	ids      IDGenerator
	recorder Recorder
}

// RunnerOption allows configuration of the runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger. Each run logs with its run id attached.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClock sets the clock used for date_applied and run timing.
func WithClock(clock Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithIDGenerator sets the run id generator.
func WithIDGenerator(ids IDGenerator) RunnerOption {
	return func(r *Runner) {
		r.ids = ids
	}
}

// WithRecorder sets a recorder notified after every run.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// New creates a runner. Defaults: discard logger, system clock, UUIDv7 ids.
func New(s AuditStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:  s,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run holds the state of one execution.
type run struct {
	*Runner
	ctx    context.Context
	tx     *sql.Tx
	opts   Options
	plan   *planner.Plan
	res    *Result
	log    *slog.Logger
	closed bool
}

// Run executes plan. The returned Result is never nil once a transaction
// was opened; it describes the run even when it rolled back.
//
// Execution failures return a *RunError with ErrCodeExecutionFailed.
// Reversibility failures are joined with errors.Join, one *RunError each.
func (r *Runner) Run(ctx context.Context, plan *planner.Plan, opts Options) (*Result, error) {
	if plan.HasErrors() {
		return nil, fmt.Errorf("%w: %d error(s)", ErrPlanHasErrors, len(plan.Errors))
	}

	start := r.clock.Now()
	res := &Result{RunID: r.ids.Generate()}
	x := &run{
		Runner: r,
		ctx:    ctx,
		opts:   opts,
		plan:   plan,
		res:    res,
		log:    r.logger.With("run", res.RunID),
	}

	err := x.execute()

	if r.recorder != nil {
		r.recorder.RecordRun(res, r.clock.Now().Sub(start), err)
	}
	return res, err
}

func (x *run) execute() error {
	x.enter(PhaseBegin, "")
	tx, err := x.store.BeginTx(x.ctx)
	if err != nil {
		return &RunError{Code: ErrCodeExecutionFailed, Phase: PhaseBegin, Err: err}
	}
	x.tx = tx
	defer func() {
		if !x.closed {
			x.rollback("aborted")
		}
	}()

	if err := x.retract(); err != nil {
		x.rollback(err.Error())
		return err
	}

	if err := x.apply(); err != nil {
		x.rollback(err.Error())
		return err
	}

	if err := x.test(); err != nil {
		x.rollback("reversibility test failed")
		return err
	}

	if x.opts.DryRun {
		x.rollback("dry run")
		return nil
	}

	x.enter(PhaseCommit, "")
	x.closed = true
	if err := x.tx.Commit(); err != nil {
		return &RunError{Code: ErrCodeExecutionFailed, Phase: PhaseCommit, Err: err}
	}
	x.res.Committed = true
	return nil
}

func (x *run) retract() error {
	x.enter(PhaseRetract, fmt.Sprintf("%d unit(s)", len(x.plan.Retract)))

	done := make(map[string]bool)
	for _, m := range x.plan.Retract {
		name := m.FullName()
		if done[name] {
			continue
		}
		done[name] = true

		// Ghost records were never executed, so there is nothing to undo.
		if !m.Ghost {
			for _, stmt := range m.DownStatements() {
				if err := x.exec(PhaseRetract, Step{Unit: name, Direction: Down, Statement: stmt}); err != nil {
					return &RunError{Code: ErrCodeExecutionFailed, Phase: PhaseRetract, Unit: name, Statement: stmt, Err: err}
				}
			}
		}

		if err := x.store.Delete(x.ctx, x.tx, name); err != nil {
			return &RunError{Code: ErrCodeExecutionFailed, Phase: PhaseRetract, Unit: name, Err: err}
		}
		x.res.Retracted = append(x.res.Retracted, name)
	}
	return nil
}

func (x *run) apply() error {
	x.enter(PhaseApply, fmt.Sprintf("%d unit(s)", len(x.plan.Apply)))

	done := make(map[string]bool)
	for _, m := range x.plan.Apply {
		name := m.FullName()
		if done[name] {
			continue
		}
		done[name] = true

		if !x.opts.Ghost {
			for _, stmt := range m.UpStatements() {
				if err := x.exec(PhaseApply, Step{Unit: name, Direction: Up, Statement: stmt}); err != nil {
					return &RunError{Code: ErrCodeExecutionFailed, Phase: PhaseApply, Unit: name, Statement: stmt, Err: err}
				}
			}
		}

		rec := store.Record{
			Name:        name,
			Source:      m.Source,
			Ghost:       x.opts.Ghost,
			DateApplied: x.clock.Now(),
		}
		if err := x.store.Upsert(x.ctx, x.tx, rec); err != nil {
			return &RunError{Code: ErrCodeExecutionFailed, Phase: PhaseApply, Unit: name, Err: err}
		}
		x.res.Applied = append(x.res.Applied, name)
	}
	return nil
}

func (x *run) test() error {
	if x.opts.Ghost || x.opts.SkipTest {
		x.log.Debug("test phase skipped", "ghost", x.opts.Ghost, "skip_test", x.opts.SkipTest)
		return nil
	}
	x.enter(PhaseTest, "")

	applied := make(map[*mutation.Mutation]bool, len(x.plan.Apply))
	for _, m := range x.plan.Apply {
		applied[m] = true
	}

	var errs []error
	for i, m := range x.plan.Apply {
		if x.opts.SkipLeafTests && x.isLeaf(m) {
			continue
		}

		var descendants []*mutation.Mutation
		for _, d := range x.plan.Local.Descendants(m) {
			if applied[d] {
				descendants = append(descendants, d)
			}
		}

		seq := replaySequence(m, descendants)
		if err := x.replay(fmt.Sprintf("dmut_test_%d", i), m.FullName(), seq); err != nil {
			if !IsReversibilityError(err) {
				return err
			}
			errs = append(errs, err)
		}
		x.res.Tested = append(x.res.Tested, m.FullName())
	}

	return errors.Join(errs...)
}

// isLeaf reports whether m has parents and no children locally.
func (x *run) isLeaf(m *mutation.Mutation) bool {
	return len(x.plan.Local.Parents(m)) > 0 && x.plan.Local.IsLeaf(m)
}

// replaySequence lists the descendants' downs (children first), the unit's
// downs and ups, then the descendants' ups (parents first).
func replaySequence(m *mutation.Mutation, descendants []*mutation.Mutation) []Step {
	var seq []Step
	reversed := slices.Clone(descendants)
	slices.Reverse(reversed)

	for _, d := range reversed {
		seq = append(seq, steps(d, Down)...)
	}
	seq = append(seq, steps(m, Down)...)
	seq = append(seq, steps(m, Up)...)
	for _, d := range descendants {
		seq = append(seq, steps(d, Up)...)
	}
	return seq
}

func steps(m *mutation.Mutation, dir Direction) []Step {
	stmts := m.UpStatements()
	if dir == Down {
		stmts = m.DownStatements()
	}
	out := make([]Step, len(stmts))
	for i, stmt := range stmts {
		out[i] = Step{Unit: m.FullName(), Direction: dir, Statement: stmt}
	}
	return out
}

// replay runs seq under a savepoint and always rolls it back. A failing
// statement yields a reversibility error; a failing savepoint command is an
// execution error since the transaction can no longer be trusted.
func (x *run) replay(savepoint, unit string, seq []Step) error {
	if _, err := x.tx.ExecContext(x.ctx, "SAVEPOINT "+savepoint); err != nil {
		return &RunError{Code: ErrCodeExecutionFailed, Phase: PhaseTest, Unit: unit, Statement: "SAVEPOINT " + savepoint, Err: err}
	}

	var failure *RunError
	for _, s := range seq {
		if err := x.exec(PhaseTest, s); err != nil {
			failure = &RunError{
				Code:      ErrCodeReversibilityFailed,
				Phase:     PhaseTest,
				Unit:      unit,
				Statement: s.Statement,
				Sequence:  seq,
				Err:       err,
			}
			x.log.Warn("reversibility test failed", "unit", unit, "statement", s.Statement, "error", err)
			break
		}
	}

	for _, stmt := range []string{"ROLLBACK TO SAVEPOINT " + savepoint, "RELEASE SAVEPOINT " + savepoint} {
		if _, err := x.tx.ExecContext(x.ctx, stmt); err != nil {
			return &RunError{Code: ErrCodeExecutionFailed, Phase: PhaseTest, Unit: unit, Statement: stmt, Err: err}
		}
	}

	if failure != nil {
		return failure
	}
	return nil
}

func (x *run) exec(phase Phase, s Step) error {
	x.res.step(phase, s)
	x.log.Debug("exec", "phase", phase, "unit", s.Unit, "direction", s.Direction, "statement", s.Statement)
	_, err := x.tx.ExecContext(x.ctx, s.Statement)
	return err
}

func (x *run) enter(phase Phase, msg string) {
	x.res.enter(phase, msg)
	x.log.Info("phase", "phase", phase, "detail", msg)
}

func (x *run) rollback(reason string) {
	x.closed = true
	x.enter(PhaseRollback, reason)
	if err := x.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		x.log.Error("rollback failed", "error", err)
	}
}
