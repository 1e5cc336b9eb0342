package store

import (
	"context"
	"fmt"
)

// Upsert inserts a record, or replaces source, ghost and date_applied of
// the existing record with the same name.
func (s *Store) Upsert(ctx context.Context, q Executor, rec Record) error {
	query := s.dialect.Rebind(fmt.Sprintf(`
		INSERT INTO %s (name, source, ghost, date_applied)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source = excluded.source,
			ghost = excluded.ghost,
			date_applied = excluded.date_applied
	`, s.table))

	if _, err := q.ExecContext(ctx, query, rec.Name, rec.Source, rec.Ghost, rec.DateApplied.UTC()); err != nil {
		return fmt.Errorf("upsert %s: %w", rec.Name, err)
	}
	return nil
}

// Delete removes the record of a unit. Deleting a missing record is not an
// error.
func (s *Store) Delete(ctx context.Context, q Executor, name string) error {
	query := s.dialect.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, s.table))
	if _, err := q.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}
