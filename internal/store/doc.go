// Package store persists the mutation audit table.
//
// The audit table records every applied mutation unit:
//
//	name          TEXT PRIMARY KEY   -- module:name[.serie]
//	source        TEXT               -- source text as applied
//	ghost         BOOLEAN            -- logged without being executed
//	date_applied  TIMESTAMP          -- runner clock at apply time
//
// plus an index on date_applied.
//
// # Dialects
//
//   - sqlite3: github.com/mattn/go-sqlite3 (cgo)
//   - sqlite:  modernc.org/sqlite (pure Go)
//   - pgx:     github.com/jackc/pgx/v5/stdlib
//
// All writes go through an Executor so the runner can keep them inside its
// transaction. Records are read in date_applied order, ties broken by name.
package store
