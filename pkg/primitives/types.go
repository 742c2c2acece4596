package primitives

// RowKey is a surrogate primary key value identifying a row within a table.
// Keys are allocated monotonically per table and are never reused, even after
// the row they identified has been deleted.
type RowKey int64

// Version is a per-row version stamp used for optimistic concurrency control.
// It increases monotonically on every committed write of the row. When a
// version is recorded as an expectation, ZeroVersion means "row absent".
type Version uint64

// ColumnIndex identifies a column position within a table definition.
type ColumnIndex int

// Sentinel values for invalid/unset identifiers
const (
	// InvalidRowKey represents an invalid or unset row key.
	// Valid surrogate keys are strictly positive.
	InvalidRowKey RowKey = 0

	// ZeroVersion is the version stamp of a row that does not exist.
	ZeroVersion Version = 0
)
