package row

import (
	"fmt"
	"strings"

	"relcore/pkg/types"
)

// Descriptor describes the shape of a row: ordered column names and types.
// Descriptors are immutable after construction and shared between every row
// of a table.
type Descriptor struct {
	columnNames []string
	columnTypes []types.Type
	nameToIndex map[string]int
}

// NewDescriptor creates a descriptor from parallel name and type slices.
func NewDescriptor(names []string, typs []types.Type) (*Descriptor, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("descriptor must have at least one column")
	}
	if len(names) != len(typs) {
		return nil, fmt.Errorf("descriptor has %d names but %d types", len(names), len(typs))
	}

	nameToIndex := make(map[string]int, len(names))
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := nameToIndex[name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", name)
		}
		if !types.IsValidType(typs[i]) {
			return nil, fmt.Errorf("column %q has invalid type %d", name, typs[i])
		}
		nameToIndex[name] = i
	}

	return &Descriptor{
		columnNames: append([]string(nil), names...),
		columnTypes: append([]types.Type(nil), typs...),
		nameToIndex: nameToIndex,
	}, nil
}

// NumColumns returns the number of columns in the descriptor.
func (d *Descriptor) NumColumns() int {
	return len(d.columnNames)
}

// NameAt returns the column name at index i.
func (d *Descriptor) NameAt(i int) (string, error) {
	if i < 0 || i >= len(d.columnNames) {
		return "", fmt.Errorf("column index %d out of bounds [0, %d)", i, len(d.columnNames))
	}
	return d.columnNames[i], nil
}

// TypeAt returns the column type at index i.
func (d *Descriptor) TypeAt(i int) (types.Type, error) {
	if i < 0 || i >= len(d.columnTypes) {
		return 0, fmt.Errorf("column index %d out of bounds [0, %d)", i, len(d.columnTypes))
	}
	return d.columnTypes[i], nil
}

// IndexOf returns the index of the named column, or -1 if absent.
func (d *Descriptor) IndexOf(name string) int {
	if idx, ok := d.nameToIndex[name]; ok {
		return idx
	}
	return -1
}

// HasColumn reports whether the descriptor contains the named column.
func (d *Descriptor) HasColumn(name string) bool {
	_, ok := d.nameToIndex[name]
	return ok
}

// ColumnNames returns the column names in declaration order.
func (d *Descriptor) ColumnNames() []string {
	return append([]string(nil), d.columnNames...)
}

// String returns a human-readable form like "id INT, name TEXT".
func (d *Descriptor) String() string {
	parts := make([]string, len(d.columnNames))
	for i, name := range d.columnNames {
		parts[i] = fmt.Sprintf("%s %s", name, d.columnTypes[i])
	}
	return strings.Join(parts, ", ")
}

// Combine concatenates two descriptors, prefixing column names with the given
// qualifiers ("table.column"). Used when joining rows across tables.
func Combine(leftQualifier string, left *Descriptor, rightQualifier string, right *Descriptor) (*Descriptor, error) {
	names := make([]string, 0, left.NumColumns()+right.NumColumns())
	typs := make([]types.Type, 0, left.NumColumns()+right.NumColumns())

	for i, name := range left.columnNames {
		qualified := name
		if leftQualifier != "" && !strings.Contains(name, ".") {
			qualified = leftQualifier + "." + name
		}
		names = append(names, qualified)
		typs = append(typs, left.columnTypes[i])
	}
	for i, name := range right.columnNames {
		names = append(names, rightQualifier+"."+name)
		typs = append(typs, right.columnTypes[i])
	}

	return NewDescriptor(names, typs)
}
