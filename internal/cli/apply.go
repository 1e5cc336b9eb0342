package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dmut/internal/metrics"
	"github.com/roach88/dmut/internal/runner"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	DryRun          bool
	Ghost           bool
	AllowSerialEdit bool
	NoTest          bool
	SkipLeafTests   bool
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the database with the local mutations",
		Long: `Plan, then retract changed mutations, apply new ones and check that
every applied mutation can be reverted and replayed. Everything happens in
one transaction: any failure rolls the database back to where it was.

The audit table is created when missing.

Example:
  dmut apply
  dmut apply --dry-run -v
  dmut apply --ghost    # record mutations already present in the schema`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "run everything, then roll back")
	cmd.Flags().BoolVar(&opts.Ghost, "ghost", false, "record applied mutations without executing them")
	cmd.Flags().BoolVar(&opts.AllowSerialEdit, "allow-serial-edit", false, "allow re-applying edited serial mutations")
	cmd.Flags().BoolVar(&opts.NoTest, "no-test", false, "skip the reversibility test phase")
	cmd.Flags().BoolVar(&opts.SkipLeafTests, "skip-leaf-tests", false, "do not test mutations that nothing depends on")

	return cmd
}

func runApply(opts *ApplyOptions, cmd *cobra.Command) error {
	p, err := loadProject(cmd, opts.RootOptions)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	s, err := p.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Bootstrap(ctx); err != nil {
		return p.fail(ExitCommandError, ErrCodeDatabase, "failed to create audit table", err)
	}

	plan, err := p.plan(cmd, s, opts.AllowSerialEdit || p.cfg.AllowSerialEdit)
	if err != nil {
		return err
	}

	report := ApplyReport{Plan: newPlanReport(plan), DryRun: opts.DryRun, Ghost: opts.Ghost}
	if plan.HasErrors() {
		_ = p.out.Failure(ErrCodeStructural, fmt.Sprintf("%d structural error(s)", len(plan.Errors)), report)
		return NewExitError(ExitFailure, "mutations have structural errors")
	}
	if plan.Empty() {
		return p.out.Success(report)
	}

	m := metrics.New()
	r := runner.New(s, runner.WithLogger(p.logger), runner.WithRecorder(m))
	res, runErr := r.Run(ctx, plan, runner.Options{
		Ghost:         opts.Ghost,
		DryRun:        opts.DryRun,
		SkipTest:      opts.NoTest || !p.cfg.TestEnabled(),
		SkipLeafTests: opts.SkipLeafTests || p.cfg.Test.SkipLeaves,
	})
	report.Run = res

	if p.cfg.MetricsFile != "" {
		if err := m.WriteTextfile(p.cfg.MetricsFile); err != nil {
			p.logger.Warn("failed to write metrics", "path", p.cfg.MetricsFile, "error", err)
		}
	}

	if runErr != nil {
		return p.runFailure(report, runErr)
	}
	return p.out.Success(report)
}

// runFailure reports a rolled back run.
func (p *project) runFailure(report ApplyReport, err error) error {
	if failures := runner.ReversibilityErrors(err); len(failures) > 0 {
		_ = p.out.Failure(ErrCodeReversible, fmt.Sprintf("%d mutation(s) are not reversible", len(failures)), report)
		if p.out.Format != "json" {
			renderFailures(p.out.Writer, failures)
		}
		return WrapExitError(ExitFailure, "reversibility test failed", err)
	}

	var runErr *runner.RunError
	if errors.As(err, &runErr) {
		_ = p.out.Failure(ErrCodeExecution, runErr.Error(), report)
		return WrapExitError(ExitFailure, "run rolled back", err)
	}

	_ = p.out.Failure(ErrCodeGeneric, err.Error(), report)
	return WrapExitError(ExitCommandError, "run failed", err)
}
