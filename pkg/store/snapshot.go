package store

import (
	"relcore/pkg/primitives"
	"relcore/pkg/row"
)

// Snapshot is an immutable view of committed state as of a point in time.
// It is safe for concurrent readers and survives later commits unchanged.
type Snapshot struct {
	tables map[string]map[primitives.RowKey]*row.Versioned
}

// Get returns the committed row for table/key as of the snapshot.
func (s *Snapshot) Get(table string, key primitives.RowKey) (*row.Versioned, bool) {
	rows, ok := s.tables[table]
	if !ok {
		return nil, false
	}
	vr, ok := rows[key]
	return vr, ok
}

// Scan visits the snapshot's rows of the table in ascending key order.
func (s *Snapshot) Scan(table string, fn func(*row.Versioned) bool) {
	scanOrdered(s.tables[table], fn)
}

// Count returns the number of rows the snapshot holds for the table.
func (s *Snapshot) Count(table string) int {
	return len(s.tables[table])
}
