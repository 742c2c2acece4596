package row

import "relcore/pkg/primitives"

// Versioned pairs a committed row with its version stamp. Committed rows are
// immutable values; every committed write produces a fresh Versioned with the
// stamp advanced, which is what makes snapshots cheap to take.
type Versioned struct {
	Key     primitives.RowKey
	Row     *Row
	Version primitives.Version
}

// NewVersioned wraps a row with its key and version stamp.
func NewVersioned(key primitives.RowKey, r *Row, version primitives.Version) *Versioned {
	return &Versioned{Key: key, Row: r, Version: version}
}
