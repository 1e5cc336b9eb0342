package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dmut/internal/mutation"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestDiscover_LexicalOrderAndNames(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"users.sql":              "create table users (id int);",
		"billing/invoices.2.sql": "alter table invoices add column total int;",
		"billing/invoices.1.sql": "create table invoices (id int);",
		"README.md":              "not a mutation",
		"views/report.SQL":       "create view report as select 1;",
	})

	units, err := Discover(Project{Module: "shop", Dir: dir})
	require.NoError(t, err)

	var names []string
	for _, u := range units {
		names = append(names, u.Name)
		assert.Equal(t, "shop", u.Module)
		assert.Empty(t, u.Source)
	}
	assert.Equal(t, []string{"billing/invoices.1", "billing/invoices.2", "users", "views/report"}, names)
}

func TestDiscover_MissingDirectory(t *testing.T) {
	_, err := Discover(Project{Module: "shop", Dir: filepath.Join(t.TempDir(), "absent")})
	require.Error(t, err)
	assert.True(t, IsNotExist(err))
}

func TestLoad_ImportsFirst(t *testing.T) {
	root := t.TempDir()
	billing := filepath.Join(root, "billing")
	shop := filepath.Join(root, "shop")
	writeFiles(t, billing, map[string]string{"invoices.sql": "create table invoices (id int);"})
	writeFiles(t, shop, map[string]string{
		"a.sql": "-- !requires: billing:invoices\nselect 1;",
		"b.sql": "select 2;",
	})

	units, err := Load(context.Background(), []Project{
		{Module: "billing", Dir: billing},
		{Module: "shop", Dir: shop},
	})
	require.NoError(t, err)

	require.Len(t, units, 3)
	assert.Equal(t, "billing", units[0].Module)
	assert.Equal(t, "create table invoices (id int);", units[0].Source)
	assert.Equal(t, "a", units[1].Name)
	assert.Equal(t, "select 2;", units[2].Source)
}

func TestLoad_ManyFilesKeepOrder(t *testing.T) {
	dir := t.TempDir()
	files := make(map[string]string)
	for i := range 50 {
		files[filepath.Join("u", string(rune('a'+i%26))+string(rune('a'+i/26))+".sql")] = "select 1;"
	}
	writeFiles(t, dir, files)

	units, err := Load(context.Background(), []Project{{Module: "m", Dir: dir}})
	require.NoError(t, err)
	require.Len(t, units, 50)
	for i := 1; i < len(units); i++ {
		assert.Less(t, units[i-1].Name, units[i].Name)
	}
}

func TestCollection(t *testing.T) {
	coll, err := Collection([]Unit{
		{Name: "v.1", Module: "m", Source: "create table v (id int);"},
		{Name: "report", Module: "m", Source: "-- !requires: v\nselect 1;"},
	})
	require.NoError(t, err)

	m, ok := coll.Get("m:v.1")
	require.True(t, ok)
	assert.True(t, m.IsStatic())
	assert.Equal(t, []string{"m:v.1", "m:report"}, coll.Names())
}

func TestCollection_Duplicate(t *testing.T) {
	_, err := Collection([]Unit{
		{Name: "a", Module: "m", Path: "one/a.sql"},
		{Name: "a", Module: "m", Path: "two/a.sql"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, mutation.ErrDuplicate)
	assert.Contains(t, err.Error(), "two/a.sql")
}
