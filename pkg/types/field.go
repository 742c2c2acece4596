package types

import "relcore/pkg/primitives"

// Field is a single typed column value.
//
// Implementations are immutable: constructors copy the value in and no method
// mutates the receiver, so fields may be shared freely between snapshots.
type Field interface {
	// Compare evaluates the predicate between this field and other.
	// Comparing fields of different concrete types yields false, never an error.
	Compare(op primitives.Predicate, other Field) (bool, error)

	// Type returns the data type of this field.
	Type() Type

	// String returns the display representation of the value.
	String() string

	// Equals reports whether other holds the same type and value.
	Equals(other Field) bool
}
