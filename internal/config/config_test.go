package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	dir := filepath.Join(t.TempDir(), "shop")
	path := writeConfig(t, dir, FileYAML, `
module: shop
dir: sql
database: postgres://localhost/shop
allow_serial_edit: true
test:
  enabled: false
  skip_leaves: true
metrics_file: out/dmut.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Module)
	assert.Equal(t, filepath.Join(dir, "sql"), cfg.MutationDir())
	assert.Equal(t, "postgres://localhost/shop", cfg.Database)
	assert.Equal(t, "pgx", cfg.Driver)
	assert.Equal(t, "dmut_mutations", cfg.Table)
	assert.True(t, cfg.AllowSerialEdit)
	assert.False(t, cfg.TestEnabled())
	assert.True(t, cfg.Test.SkipLeaves)
	assert.Equal(t, filepath.Join(dir, "out", "dmut.prom"), cfg.MetricsFile)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	dir := filepath.Join(t.TempDir(), "billing")
	path := writeConfig(t, dir, FileYAML, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "billing", cfg.Module)
	assert.Equal(t, DefaultDir, cfg.Dir)
	assert.True(t, cfg.TestEnabled())
	assert.Empty(t, cfg.Driver)
}

func TestLoad_RejectsUnknownYAMLField(t *testing.T) {
	path := writeConfig(t, t.TempDir(), FileYAML, "modul: shop\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modul")
}

func TestLoad_CUE(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	dir := t.TempDir()
	path := writeConfig(t, dir, FileCUE, `
module:   "shop"
database: "dev.db"
imports: ["../billing"]
test: skip_leaves: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Module)
	assert.Equal(t, []string{"../billing"}, cfg.Imports)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, filepath.Join(dir, "dev.db"), cfg.Database)
	assert.True(t, cfg.Test.SkipLeaves)
	assert.True(t, cfg.TestEnabled())
}

func TestLoad_CUERejectsUnknownField(t *testing.T) {
	path := writeConfig(t, t.TempDir(), FileCUE, `module: "shop"
colour: "blue"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_CUERejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, t.TempDir(), FileCUE, `driver: "oracle"`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_YAMLRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, t.TempDir(), FileYAML, "driver: oracle\n")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_RejectsModuleWithColon(t *testing.T) {
	path := writeConfig(t, t.TempDir(), FileYAML, "module: a:b\n")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_DatabaseURLOverrides(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://ci/db")
	path := writeConfig(t, t.TempDir(), FileYAML, "database: local.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://ci/db", cfg.Database)
	assert.Equal(t, "pgx", cfg.Driver)
}

func TestFind_WalksUpward(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, FileYML, "module: shop\n")
	nested := filepath.Join(root, "mutations", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestFind_PrefersYAML(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, FileCUE, `module: "cue"`)
	yamlPath := writeConfig(t, root, FileYAML, "module: yaml\n")

	found, err := Find(root)
	require.NoError(t, err)
	assert.Equal(t, yamlPath, found)
}

func TestFind_NotFound(t *testing.T) {
	// The temp dir has no config, but a parent might; only check the error
	// type when the search really fails.
	_, err := Find(t.TempDir())
	if err != nil {
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestProjects_ImportsFirst(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	root := t.TempDir()
	writeConfig(t, filepath.Join(root, "core"), FileYAML, "module: core\n")
	writeConfig(t, filepath.Join(root, "billing"), FileYAML, "module: billing\nimports: [../core]\n")
	shop := writeConfig(t, filepath.Join(root, "shop"), FileYAML, "module: shop\nimports: [../billing, ../core]\n")

	cfg, err := Load(shop)
	require.NoError(t, err)

	projects, err := cfg.Projects()
	require.NoError(t, err)

	var modules []string
	for _, p := range projects {
		modules = append(modules, p.Module)
	}
	assert.Equal(t, []string{"core", "billing", "shop"}, modules)
	assert.Equal(t, filepath.Join(root, "core", DefaultDir), projects[0].Dir)
}

func TestProjects_ImportCycle(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	root := t.TempDir()
	writeConfig(t, filepath.Join(root, "a"), FileYAML, "imports: [../b]\n")
	path := writeConfig(t, filepath.Join(root, "b"), FileYAML, "imports: [../a]\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = cfg.Projects()
	require.ErrorIs(t, err, ErrInvalid)
}

func TestProjects_MissingImport(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	path := writeConfig(t, t.TempDir(), FileYAML, "imports: [./nowhere]\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = cfg.Projects()
	require.ErrorIs(t, err, ErrNotFound)
}
