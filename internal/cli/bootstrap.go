package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// BootstrapResult is the payload of the bootstrap command.
type BootstrapResult struct {
	Driver string `json:"driver"`
	Table  string `json:"table"`
}

// RenderText implements textRenderer.
func (r BootstrapResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s audit table %s (%s)\n", addStyle.Render("✓"), r.Table, r.Driver)
}

// NewBootstrapCommand creates the bootstrap command.
func NewBootstrapCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the audit table",
		Long: `Create the audit table and its index when they do not exist.
Running it again is harmless.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(rootOpts, cmd)
		},
	}
	return cmd
}

func runBootstrap(opts *RootOptions, cmd *cobra.Command) error {
	p := &project{
		logger: opts.logger(cmd.ErrOrStderr()),
		out:    opts.formatter(cmd),
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return p.fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	p.cfg = cfg

	ctx := commandContext(cmd)
	s, err := p.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Bootstrap(ctx); err != nil {
		return p.fail(ExitCommandError, ErrCodeDatabase, "failed to create audit table", err)
	}
	p.logger.Debug("audit table ready", "table", s.Table(), "driver", cfg.Driver)

	return p.out.Success(BootstrapResult{Driver: cfg.Driver, Table: s.Table()})
}
