package store

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Driver names accepted by Open.
const (
	DriverSQLite3 = "sqlite3"
	DriverSQLite  = "sqlite"
	DriverPgx     = "pgx"
)

// Dialect captures the SQL differences between supported drivers.
type Dialect struct {
	Driver string
	schema string
	pragma []string
	dollar bool
}

// DialectFor returns the dialect of a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverSQLite3, DriverSQLite:
		return Dialect{
			Driver: driver,
			schema: schemaSQLite,
			pragma: []string{
				"PRAGMA busy_timeout = 5000",
				"PRAGMA foreign_keys = ON",
			},
		}, nil
	case DriverPgx:
		return Dialect{Driver: driver, schema: schemaPostgres, dollar: true}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

// InferDriver picks a driver from the shape of a DSN.
func InferDriver(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPgx
	}
	return DriverSQLite3
}

// IsSQLite reports whether the dialect targets SQLite.
func (d Dialect) IsSQLite() bool {
	return !d.dollar
}

// Rebind rewrites "?" placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Schema returns the bootstrap statements for table.
func (d Dialect) Schema(table string) []string {
	var stmts []string
	for _, stmt := range strings.Split(strings.ReplaceAll(d.schema, "{{table}}", table), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
