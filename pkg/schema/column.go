package schema

import (
	"fmt"

	"relcore/pkg/types"
)

// CheckKind identifies a per-column domain constraint.
type CheckKind int

const (
	// CheckNone means the column carries no domain constraint.
	CheckNone CheckKind = iota

	// CheckNonNegative requires an INT column value >= 0 (prices, budgets, stock).
	CheckNonNegative

	// CheckPositive requires an INT column value > 0 (order item quantities).
	CheckPositive

	// CheckEnum requires a TEXT column value to be one of a fixed set.
	CheckEnum
)

func (k CheckKind) String() string {
	switch k {
	case CheckNone:
		return "none"
	case CheckNonNegative:
		return "non_negative"
	case CheckPositive:
		return "positive"
	case CheckEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Column defines a single table column: its name, type and domain constraint.
type Column struct {
	Name  string
	Type  types.Type
	Check CheckKind

	// EnumValues lists the admissible values when Check is CheckEnum.
	EnumValues []string
}

// validate reports construction-time problems with the column definition.
func (c Column) validate() error {
	if c.Name == "" {
		return fmt.Errorf("column name cannot be empty")
	}
	if !types.IsValidType(c.Type) {
		return fmt.Errorf("column %q has invalid type", c.Name)
	}

	switch c.Check {
	case CheckNone:
	case CheckNonNegative, CheckPositive:
		if c.Type != types.IntType {
			return fmt.Errorf("column %q: %s check requires an INT column", c.Name, c.Check)
		}
	case CheckEnum:
		if c.Type != types.StringType {
			return fmt.Errorf("column %q: enum check requires a TEXT column", c.Name)
		}
		if len(c.EnumValues) == 0 {
			return fmt.Errorf("column %q: enum check requires at least one value", c.Name)
		}
	default:
		return fmt.Errorf("column %q has unknown check kind %d", c.Name, c.Check)
	}
	return nil
}

// AllowsEnumValue reports whether v is an admissible enum value for the column.
func (c Column) AllowsEnumValue(v string) bool {
	for _, allowed := range c.EnumValues {
		if v == allowed {
			return true
		}
	}
	return false
}
