package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/dmut/internal/graph"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Offline bool
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List local mutations",
		Long: `List the mutations of the project and its imports with their short
hash, requirements and structural errors. Serial mutations are shown in bold.
A mutation requiring a broken one is reported as blocked by it.

When a database is configured, each mutation also shows whether it is
applied, changed since it was applied, or pending.

Example:
  dmut status
  dmut status --offline --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "do not read the audit table")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	p, err := loadProject(cmd, opts.RootOptions)
	if err != nil {
		return err
	}

	g := graph.Build(p.local.All())
	units := g.Order()

	report := StatusReport{Module: p.cfg.Module, Units: make([]UnitStatus, len(units))}
	for i, m := range units {
		report.Units[i] = UnitStatus{
			Name:     m.FullName(),
			Hash:     m.ShortHash(8),
			Static:   m.IsStatic(),
			Requires: m.Requirements(),
			Errors:   m.Errors(),
		}
		for _, a := range g.Ancestors(m) {
			if a.HasErrors() {
				report.Units[i].BlockedBy = append(report.Units[i].BlockedBy, a.FullName())
			}
		}
	}

	if !opts.Offline && p.cfg.Database != "" {
		ctx := commandContext(cmd)
		s, err := p.openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		remote, err := s.Collection(ctx)
		if err != nil {
			return p.fail(ExitCommandError, ErrCodeDatabase, "failed to read audit table", err)
		}

		for i, m := range units {
			switch r, ok := remote.Get(m.FullName()); {
			case !ok:
				report.Units[i].State = StatePending
			case r.Hash() != m.Hash():
				report.Units[i].State = StateChanged
			default:
				report.Units[i].State = StateApplied
			}
		}
		for _, name := range remote.Names() {
			if !p.local.Has(name) {
				report.Orphans = append(report.Orphans, name)
			}
		}
	}

	return p.out.Success(report)
}
