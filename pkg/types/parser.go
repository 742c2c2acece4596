package types

import (
	"fmt"
	"strconv"

	"relcore/pkg/primitives"
)

// ParseField parses the textual representation of a value into a Field of the
// given type. It is the inverse of Field.String and is used when loading seed
// rows from schema definition files.
func ParseField(t Type, s string) (Field, error) {
	switch t {
	case IntType:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid INT value %q: %w", s, err)
		}
		return NewInt64Field(v), nil

	case StringType:
		return NewStringField(s), nil

	case BoolType:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid BOOL value %q: %w", s, err)
		}
		return NewBoolField(v), nil

	case DateType:
		d, err := primitives.ParseDate(s)
		if err != nil {
			return nil, err
		}
		return NewDateField(d), nil

	default:
		return nil, fmt.Errorf("cannot parse value for unknown type %d", t)
	}
}
