package types

import "relcore/pkg/primitives"

// DateField represents a day-granular calendar date field.
type DateField struct {
	Value primitives.Date
}

func NewDateField(value primitives.Date) *DateField {
	return &DateField{Value: value}
}

func (f *DateField) Compare(op primitives.Predicate, other Field) (bool, error) {
	otherField, ok := other.(*DateField)
	if !ok {
		return false, nil
	}
	return compareOrdered(f.Value, otherField.Value, op), nil
}

func (f *DateField) Type() Type {
	return DateType
}

func (f *DateField) String() string {
	return f.Value.String()
}

func (f *DateField) Equals(other Field) bool {
	otherField, ok := other.(*DateField)
	if !ok {
		return false
	}
	return f.Value == otherField.Value
}
