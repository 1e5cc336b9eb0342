package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dmut/internal/config"
	"github.com/roach88/dmut/internal/mutation"
	"github.com/roach88/dmut/internal/source"
	"github.com/roach88/dmut/internal/store"
)

// project is the loaded state every command starts from.
type project struct {
	cfg    *config.Config
	units  []source.Unit
	local  *mutation.Collection
	logger *slog.Logger
	out    *OutputFormatter
}

// loadProject reads the config and the local mutation files. Failures are
// reported through the formatter and returned as command errors.
func loadProject(cmd *cobra.Command, opts *RootOptions) (*project, error) {
	p := &project{
		logger: opts.logger(cmd.ErrOrStderr()),
		out:    opts.formatter(cmd),
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, p.fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	p.cfg = cfg
	p.out.VerboseLog("Config: %s (module %s)", cfg.Path, cfg.Module)

	projects, err := cfg.Projects()
	if err != nil {
		return nil, p.fail(ExitCommandError, ErrCodeConfig, "failed to resolve imports", err)
	}

	units, err := source.Load(commandContext(cmd), projects)
	if source.IsNotExist(err) {
		return nil, p.fail(ExitCommandError, ErrCodeSource, "mutation directory missing", err)
	}
	if err != nil {
		return nil, p.fail(ExitCommandError, ErrCodeSource, "failed to read mutations", err)
	}
	p.units = units

	local, err := source.Collection(units)
	if err != nil {
		return nil, p.fail(ExitCommandError, ErrCodeSource, "failed to load mutations", err)
	}
	p.local = local
	p.out.VerboseLog("Loaded %d mutation(s) from %d project(s)", local.Len(), len(projects))

	return p, nil
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, wdErr
		}
		cfg, err = config.Discover(wd)
	}
	if err != nil {
		return nil, err
	}

	if opts.Database != "" {
		cfg.Database = opts.Database
		// A sqlite DSN keeps an explicitly configured sqlite driver.
		if inferred := store.InferDriver(opts.Database); inferred == store.DriverPgx || cfg.Driver == store.DriverPgx || cfg.Driver == "" {
			cfg.Driver = inferred
		}
	}
	return cfg, nil
}

// openStore connects to the configured database.
func (p *project) openStore(ctx context.Context) (*store.Store, error) {
	if p.cfg.Database == "" {
		return nil, p.fail(ExitCommandError, ErrCodeDatabase,
			fmt.Sprintf("no database configured: set database in %s, $%s or --db", p.cfg.Path, config.EnvDatabaseURL), nil)
	}
	s, err := store.Open(ctx, p.cfg.Driver, p.cfg.Database, p.cfg.Table)
	if err != nil {
		return nil, p.fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	return s, nil
}

// fail reports an error through the formatter and returns it as an
// ExitError.
func (p *project) fail(exitCode int, code, message string, err error) error {
	text := message
	if err != nil {
		text = fmt.Sprintf("%s: %v", message, err)
	}
	_ = p.out.Error(code, text, nil)
	if err != nil {
		return WrapExitError(exitCode, message, err)
	}
	return NewExitError(exitCode, message)
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
