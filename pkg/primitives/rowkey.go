package primitives

import "fmt"

// RowKey Methods
// =============================================================================

// IsValid checks if the RowKey is a valid positive identifier.
// A RowKey of 0 or below is considered invalid or uninitialized.
func (k RowKey) IsValid() bool {
	return k > 0
}

// AsInt64 returns the RowKey as an int64 for storage in integer columns.
func (k RowKey) AsInt64() int64 {
	return int64(k)
}

// String returns a string representation of the RowKey.
func (k RowKey) String() string {
	return fmt.Sprintf("RowKey(%d)", int64(k))
}

// Version Methods
// =============================================================================

// Next returns the version stamp that follows v.
func (v Version) Next() Version {
	return v + 1
}

// String returns a string representation of the Version.
func (v Version) String() string {
	return fmt.Sprintf("v%d", uint64(v))
}
