package types

import (
	"strconv"

	"relcore/pkg/primitives"
)

// BoolField represents a boolean field. For ordering predicates false sorts
// before true.
type BoolField struct {
	Value bool
}

func NewBoolField(value bool) *BoolField {
	return &BoolField{Value: value}
}

func (f *BoolField) Compare(op primitives.Predicate, other Field) (bool, error) {
	otherField, ok := other.(*BoolField)
	if !ok {
		return false, nil
	}
	return compareOrdered(boolToInt(f.Value), boolToInt(otherField.Value), op), nil
}

func (f *BoolField) Type() Type {
	return BoolType
}

func (f *BoolField) String() string {
	return strconv.FormatBool(f.Value)
}

func (f *BoolField) Equals(other Field) bool {
	otherField, ok := other.(*BoolField)
	if !ok {
		return false
	}
	return f.Value == otherField.Value
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
