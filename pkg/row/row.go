package row

import (
	"fmt"
	"strings"

	"relcore/pkg/primitives"
	"relcore/pkg/types"
)

// Row represents a single table row: a descriptor plus one field per column.
type Row struct {
	desc   *Descriptor
	fields []types.Field
}

// NewRow creates an empty row with the given shape. Fields start nil and are
// populated with SetField / SetNamed.
func NewRow(desc *Descriptor) *Row {
	return &Row{
		desc:   desc,
		fields: make([]types.Field, desc.NumColumns()),
	}
}

// Descriptor returns the shape of this row.
func (r *Row) Descriptor() *Descriptor {
	return r.desc
}

// SetField sets the ith field, enforcing the declared column type.
func (r *Row) SetField(i int, field types.Field) error {
	if i < 0 || i >= len(r.fields) {
		return fmt.Errorf("field index %d out of bounds [0, %d)", i, len(r.fields))
	}
	if field == nil {
		return fmt.Errorf("field %d cannot be nil", i)
	}

	expected, _ := r.desc.TypeAt(i)
	if field.Type() != expected {
		name, _ := r.desc.NameAt(i)
		return fmt.Errorf("column %q expects %s, got %s", name, expected, field.Type())
	}

	r.fields[i] = field
	return nil
}

// SetNamed sets a field by column name.
func (r *Row) SetNamed(name string, field types.Field) error {
	idx := r.desc.IndexOf(name)
	if idx < 0 {
		return fmt.Errorf("no column %q in row", name)
	}
	return r.SetField(idx, field)
}

// Field returns the ith field value.
func (r *Row) Field(i int) (types.Field, error) {
	if i < 0 || i >= len(r.fields) {
		return nil, fmt.Errorf("field index %d out of bounds [0, %d)", i, len(r.fields))
	}
	return r.fields[i], nil
}

// Named returns a field by column name, or nil if the column is absent or unset.
func (r *Row) Named(name string) types.Field {
	idx := r.desc.IndexOf(name)
	if idx < 0 {
		return nil
	}
	return r.fields[idx]
}

// KeyAt reads the named column as a surrogate key. Returns InvalidRowKey when
// the column is absent, unset, or not an integer.
func (r *Row) KeyAt(name string) primitives.RowKey {
	field, ok := r.Named(name).(*types.Int64Field)
	if !ok {
		return primitives.InvalidRowKey
	}
	return field.Key()
}

// Complete reports whether every column has been assigned a value.
func (r *Row) Complete() bool {
	for _, f := range r.fields {
		if f == nil {
			return false
		}
	}
	return true
}

// Clone creates a copy of this row. Field values are immutable and shared.
func (r *Row) Clone() *Row {
	clone := NewRow(r.desc)
	copy(clone.fields, r.fields)
	return clone
}

// WithUpdatedFields returns a new row with the named columns replaced.
// The original row is unchanged.
func (r *Row) WithUpdatedFields(updates map[string]types.Field) (*Row, error) {
	clone := r.Clone()
	for name, field := range updates {
		if err := clone.SetNamed(name, field); err != nil {
			return nil, fmt.Errorf("failed to update column %q: %w", name, err)
		}
	}
	return clone, nil
}

// String returns a tab-separated rendering of the field values.
func (r *Row) String() string {
	parts := make([]string, len(r.fields))
	for i, f := range r.fields {
		if f != nil {
			parts[i] = f.String()
		} else {
			parts[i] = "null"
		}
	}
	return strings.Join(parts, "\t")
}

// CombineRows concatenates two rows under a combined descriptor. Used by the
// query router when following a foreign-key edge.
func CombineRows(leftQualifier string, left *Row, rightQualifier string, right *Row) (*Row, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("cannot combine nil rows")
	}

	desc, err := Combine(leftQualifier, left.desc, rightQualifier, right.desc)
	if err != nil {
		return nil, err
	}

	combined := NewRow(desc)
	copy(combined.fields, left.fields)
	copy(combined.fields[left.desc.NumColumns():], right.fields)
	return combined, nil
}
