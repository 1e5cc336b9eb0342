package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// DefaultTable is the audit table name used when none is configured.
const DefaultTable = "dmut_mutations"

var validTable = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalidTable is returned for table names that are not plain identifiers.
var ErrInvalidTable = errors.New("invalid audit table name")

// Record is one row of the audit table.
type Record struct {
	Name        string    `json:"name"`
	Source      string    `json:"source"`
	Ghost       bool      `json:"ghost"`
	DateApplied time.Time `json:"date_applied"`
}

// Executor runs statements. *sql.DB and *sql.Tx both satisfy it.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store provides access to the audit table of one database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

// Open connects to dsn with the given driver. An empty driver is inferred
// from the DSN and an empty table defaults to DefaultTable.
//
// SQLite connections are limited to one so the runner's transaction and
// savepoints always see the same connection.
func Open(ctx context.Context, driver, dsn, table string) (*Store, error) {
	if driver == "" {
		driver = InferDriver(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err := New(db, driver, table)
	if err != nil {
		db.Close()
		return nil, err
	}

	if s.dialect.IsSQLite() {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := s.applyPragmas(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return s, nil
}

// New wraps an open database handle.
func New(db *sql.DB, driver, table string) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTable.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return &Store{db: db, dialect: dialect, table: table}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect of the store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Table returns the audit table name.
func (s *Store) Table() string {
	return s.table
}

// BeginTx starts the transaction a run executes in.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// Bootstrap creates the audit table and its index. It is idempotent.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *Store) applyPragmas(ctx context.Context) error {
	for _, pragma := range s.dialect.pragma {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}
