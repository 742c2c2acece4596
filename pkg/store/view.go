package store

import (
	"relcore/pkg/primitives"
	"relcore/pkg/row"
)

// View is read access to row state. It is implemented by committed snapshots
// and by transaction views that overlay a buffer on top of a snapshot.
//
// Scan visits rows in ascending key order and stops early when fn returns
// false, which keeps validation deterministic for a given state.
type View interface {
	Get(table string, key primitives.RowKey) (*row.Versioned, bool)
	Scan(table string, fn func(*row.Versioned) bool)
}
