// Package source discovers mutation files on disk.
//
// A project contributes every *.sql file under its mutation directory. The
// unit name is the slash-separated path relative to that directory without
// the .sql extension, so mutations/billing/invoices.2.sql becomes the serial
// unit "billing/invoices.2".
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/dmut/internal/mutation"
)

// Ext is the extension of mutation files.
const Ext = ".sql"

// Project is one directory of mutation files sharing a module name.
type Project struct {
	Module string
	Dir    string
}

// Unit is a discovered mutation file.
type Unit struct {
	Name   string
	Module string
	Path   string
	Source string
}

// Discover lists the mutation files of a project in lexical name order
// without reading them.
func Discover(p Project) ([]Unit, error) {
	var units []Unit
	err := filepath.WalkDir(p.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), Ext) {
			return nil
		}
		rel, err := filepath.Rel(p.Dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
		units = append(units, Unit{Name: name, Module: p.Module, Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", p.Dir, err)
	}

	slices.SortFunc(units, func(a, b Unit) int { return strings.Compare(a.Name, b.Name) })
	return units, nil
}

// Load discovers and reads the units of every project. Projects are loaded
// in the given order, so imports must come first. Files are read
// concurrently; the result order does not depend on it.
func Load(ctx context.Context, projects []Project) ([]Unit, error) {
	var units []Unit
	for _, p := range projects {
		found, err := Discover(p)
		if err != nil {
			return nil, err
		}
		units = append(units, found...)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range units {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(units[i].Path)
			if err != nil {
				return fmt.Errorf("read %s: %w", units[i].Path, err)
			}
			units[i].Source = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return units, nil
}

// Collection builds the local mutation collection. A unit declared twice
// (same module and name) is an error.
func Collection(units []Unit) (*mutation.Collection, error) {
	coll, err := mutation.NewCollection()
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		if err := coll.Add(mutation.New(u.Name, u.Module, u.Source)); err != nil {
			return nil, fmt.Errorf("%s: %w", u.Path, err)
		}
	}
	return coll, nil
}

// IsNotExist reports whether err means a project directory is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
