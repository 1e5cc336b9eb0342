package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dmut/internal/planner"
	"github.com/roach88/dmut/internal/store"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	AllowSerialEdit bool
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would retract and apply",
		Long: `Diff the local mutations against the audit table and print the ordered
retract and apply lists. Nothing is executed.

Exits with code 1 when mutations carry structural errors or a serial
mutation was edited in place.

Example:
  dmut plan
  dmut plan --db postgres://localhost/shop --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AllowSerialEdit, "allow-serial-edit", false, "allow re-applying edited serial mutations")

	return cmd
}

func runPlan(opts *PlanOptions, cmd *cobra.Command) error {
	p, err := loadProject(cmd, opts.RootOptions)
	if err != nil {
		return err
	}

	s, err := p.openStore(commandContext(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	plan, err := p.plan(cmd, s, opts.AllowSerialEdit || p.cfg.AllowSerialEdit)
	if err != nil {
		return err
	}

	report := newPlanReport(plan)
	if plan.HasErrors() {
		_ = p.out.Failure(ErrCodeStructural, fmt.Sprintf("%d structural error(s)", len(plan.Errors)), report)
		return NewExitError(ExitFailure, "mutations have structural errors")
	}
	return p.out.Success(report)
}

// plan reads the audit table and reconciles it with the local units.
func (p *project) plan(cmd *cobra.Command, s *store.Store, allowSerialEdit bool) (*planner.Plan, error) {
	remote, err := s.Collection(commandContext(cmd))
	if err != nil {
		return nil, p.fail(ExitCommandError, ErrCodeDatabase, "failed to read audit table", err)
	}

	plan, err := planner.New(p.logger).Plan(p.local, remote, planner.Options{AllowSerialEdit: allowSerialEdit})
	if err != nil {
		if planner.IsPolicyError(err) {
			return nil, p.fail(ExitFailure, ErrCodePolicy, "policy violation", err)
		}
		return nil, p.fail(ExitCommandError, ErrCodeGeneric, "failed to plan", err)
	}
	return plan, nil
}
