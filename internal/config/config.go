// Package config loads dmut project configuration.
//
// A project is a directory holding dmut.yaml, dmut.yml or dmut.cue. YAML is
// decoded strictly (unknown fields are rejected); CUE files are unified with
// a closed schema, so the same rule applies. The DATABASE_URL environment
// variable overrides the configured database.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/dmut/internal/source"
	"github.com/roach88/dmut/internal/store"
)

// Config file names, in lookup order.
const (
	FileYAML = "dmut.yaml"
	FileYML  = "dmut.yml"
	FileCUE  = "dmut.cue"
)

// EnvDatabaseURL overrides Config.Database when set.
const EnvDatabaseURL = "DATABASE_URL"

// DefaultDir is the mutation directory used when none is configured.
const DefaultDir = "mutations"

var (
	// ErrNotFound is returned when no config file exists.
	ErrNotFound = errors.New("no dmut config found")

	// ErrInvalid is returned for configs that decode but make no sense.
	ErrInvalid = errors.New("invalid config")
)

// Config is the configuration of one project.
type Config struct {
	Module          string     `yaml:"module" json:"module,omitempty"`
	Dir             string     `yaml:"dir" json:"dir,omitempty"`
	Imports         []string   `yaml:"imports" json:"imports,omitempty"`
	Database        string     `yaml:"database" json:"database,omitempty"`
	Driver          string     `yaml:"driver" json:"driver,omitempty"`
	Table           string     `yaml:"table" json:"table,omitempty"`
	AllowSerialEdit bool       `yaml:"allow_serial_edit" json:"allow_serial_edit,omitempty"`
	Test            TestConfig `yaml:"test" json:"test,omitempty"`
	MetricsFile     string     `yaml:"metrics_file" json:"metrics_file,omitempty"`

	// Path is the file the config was read from.
	Path string `yaml:"-" json:"-"`
}

// TestConfig controls the reversibility test phase.
type TestConfig struct {
	Enabled    *bool `yaml:"enabled" json:"enabled,omitempty"`
	SkipLeaves bool  `yaml:"skip_leaves" json:"skip_leaves,omitempty"`
}

// Root returns the directory holding the config file.
func (c *Config) Root() string {
	return filepath.Dir(c.Path)
}

// MutationDir returns the absolute mutation directory.
func (c *Config) MutationDir() string {
	if filepath.IsAbs(c.Dir) {
		return c.Dir
	}
	return filepath.Join(c.Root(), c.Dir)
}

// TestEnabled reports whether the reversibility test runs. Default true.
func (c *Config) TestEnabled() bool {
	return c.Test.Enabled == nil || *c.Test.Enabled
}

// Find looks for a config file in dir and its parents.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	for {
		if path, ok := lookup(dir); ok {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// lookup returns the config file of exactly dir.
func lookup(dir string) (string, bool) {
	for _, name := range []string{FileYAML, FileYML, FileCUE} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Load reads a config file and applies defaults and the environment.
func Load(path string) (*Config, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg *Config
	if filepath.Ext(path) == ".cue" {
		cfg, err = parseCUE(path, data)
	} else {
		cfg, err = parseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path

	if url, ok := os.LookupEnv(EnvDatabaseURL); ok && url != "" {
		cfg.Database = url
	}

	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover finds and loads the config governing dir.
func Discover(dir string) (*Config, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func parseYAML(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

// schemaCUE closes the config struct so unknown fields fail unification.
const schemaCUE = `close({
	module?:            string
	dir?:               string
	imports?:           [...string]
	database?:          string
	driver?:            "" | "sqlite3" | "sqlite" | "pgx"
	table?:             string
	allow_serial_edit?: bool
	test?: close({
		enabled?:     bool
		skip_leaves?: bool
	})
	metrics_file?: string
})`

func parseCUE(path string, data []byte) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("parse cue: %w", err)
	}

	value = schema.Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate cue: %w", err)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode cue: %w", err)
	}
	return &cfg, nil
}

// normalize fills defaults and checks field values.
func (c *Config) normalize() error {
	if c.Module == "" {
		c.Module = filepath.Base(c.Root())
	}
	if strings.ContainsAny(c.Module, ": \t") {
		return fmt.Errorf("%w: module %q must not contain ':' or spaces", ErrInvalid, c.Module)
	}
	if c.Dir == "" {
		c.Dir = DefaultDir
	}
	if c.Table == "" {
		c.Table = store.DefaultTable
	}
	if c.Driver == "" && c.Database != "" {
		c.Driver = store.InferDriver(c.Database)
	}
	if c.Driver != "" {
		if _, err := store.DialectFor(c.Driver); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	if c.Driver != store.DriverPgx && isRelativePath(c.Database) {
		c.Database = filepath.Join(c.Root(), c.Database)
	}
	if c.MetricsFile != "" && !filepath.IsAbs(c.MetricsFile) {
		c.MetricsFile = filepath.Join(c.Root(), c.MetricsFile)
	}
	return nil
}

// isRelativePath reports whether a SQLite DSN is a plain relative file path.
func isRelativePath(dsn string) bool {
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, "://") {
		return false
	}
	return !filepath.IsAbs(dsn)
}

// Imports loads the configs of imported projects, depth first, so every
// import precedes the projects that import it. The receiver comes last.
// A project reachable through several paths is loaded once.
func (c *Config) Imports() ([]*Config, error) {
	var out []*Config
	seen := make(map[string]bool)

	var visit func(cfg *Config, chain []string) error
	visit = func(cfg *Config, chain []string) error {
		root := cfg.Root()
		if slices.Contains(chain, root) {
			return fmt.Errorf("%w: import cycle through %s", ErrInvalid, root)
		}
		if seen[root] {
			return nil
		}
		chain = append(chain, root)

		for _, imp := range cfg.Imports {
			dir := imp
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(root, dir)
			}
			path, ok := lookup(dir)
			if !ok {
				return fmt.Errorf("import %s: %w", imp, ErrNotFound)
			}
			child, err := Load(path)
			if err != nil {
				return fmt.Errorf("import %s: %w", imp, err)
			}
			if err := visit(child, chain); err != nil {
				return err
			}
		}

		seen[root] = true
		out = append(out, cfg)
		return nil
	}

	if err := visit(c, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// Projects returns the mutation projects to load, imports first.
func (c *Config) Projects() ([]source.Project, error) {
	cfgs, err := c.Imports()
	if err != nil {
		return nil, err
	}
	projects := make([]source.Project, len(cfgs))
	for i, cfg := range cfgs {
		projects[i] = source.Project{Module: cfg.Module, Dir: cfg.MutationDir()}
	}
	return projects, nil
}
