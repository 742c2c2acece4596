package types

import (
	"strconv"

	"relcore/pkg/primitives"
)

// Int64Field represents a 64-bit signed integer field.
// Surrogate keys, counts and money amounts (integer cents) all use it.
type Int64Field struct {
	Value int64
}

func NewInt64Field(value int64) *Int64Field {
	return &Int64Field{Value: value}
}

// NewKeyField wraps a RowKey in its column representation.
func NewKeyField(key primitives.RowKey) *Int64Field {
	return &Int64Field{Value: key.AsInt64()}
}

func (f *Int64Field) Compare(op primitives.Predicate, other Field) (bool, error) {
	otherField, ok := other.(*Int64Field)
	if !ok {
		return false, nil
	}
	return compareOrdered(f.Value, otherField.Value, op), nil
}

func (f *Int64Field) Type() Type {
	return IntType
}

func (f *Int64Field) String() string {
	return strconv.FormatInt(f.Value, 10)
}

func (f *Int64Field) Equals(other Field) bool {
	otherField, ok := other.(*Int64Field)
	if !ok {
		return false
	}
	return f.Value == otherField.Value
}

// Key returns the field value as a RowKey.
func (f *Int64Field) Key() primitives.RowKey {
	return primitives.RowKey(f.Value)
}
