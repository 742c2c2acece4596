package types

// Type identifies the data type of a column or field value.
type Type int

const (
	IntType Type = iota
	StringType
	BoolType
	DateType
)

// String returns a string representation of the type
func (t Type) String() string {
	switch t {
	case IntType:
		return "INT"
	case StringType:
		return "TEXT"
	case BoolType:
		return "BOOL"
	case DateType:
		return "DATE"
	default:
		return "UNKNOWN"
	}
}

// IsValidType reports whether t is one of the supported column types.
func IsValidType(t Type) bool {
	switch t {
	case IntType, StringType, BoolType, DateType:
		return true
	default:
		return false
	}
}

// TypeFromName resolves a type from its textual name, as used in schema
// definition files. The second return value is false for unknown names.
func TypeFromName(name string) (Type, bool) {
	switch name {
	case "INT", "int", "integer":
		return IntType, true
	case "TEXT", "text", "string":
		return StringType, true
	case "BOOL", "bool", "boolean":
		return BoolType, true
	case "DATE", "date":
		return DateType, true
	default:
		return IntType, false
	}
}
