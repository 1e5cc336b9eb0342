package store

import (
	"context"
	"fmt"

	"github.com/roach88/dmut/internal/mutation"
)

// Records returns every audit record ordered by date_applied, then name.
func (s *Store) Records(ctx context.Context, q Executor) ([]Record, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT name, source, ghost, date_applied
		FROM %s
		ORDER BY date_applied ASC, name ASC
	`, s.table))
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Name, &rec.Source, &rec.Ghost, &rec.DateApplied); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// Collection loads the audit records as the remote mutation collection.
func (s *Store) Collection(ctx context.Context) (*mutation.Collection, error) {
	records, err := s.Records(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return CollectionFromRecords(records)
}

// CollectionFromRecords rebuilds mutation units from audit records,
// keeping record order.
func CollectionFromRecords(records []Record) (*mutation.Collection, error) {
	coll, err := mutation.NewCollection()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		m, err := mutation.FromRecord(rec.Name, rec.Source, rec.Ghost)
		if err != nil {
			return nil, fmt.Errorf("load record: %w", err)
		}
		if err := coll.Add(m); err != nil {
			return nil, fmt.Errorf("load record: %w", err)
		}
	}
	return coll, nil
}
