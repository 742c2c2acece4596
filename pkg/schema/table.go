package schema

import (
	"fmt"

	"relcore/pkg/row"
	"relcore/pkg/types"
)

// DeletePolicy controls what happens to dependent rows when their referenced
// row is deleted.
type DeletePolicy int

const (
	// DeleteRestrict blocks the delete while live dependents exist. This is
	// the default for every edge.
	DeleteRestrict DeletePolicy = iota

	// DeleteCascade deletes dependents within the same transaction.
	DeleteCascade
)

func (p DeletePolicy) String() string {
	switch p {
	case DeleteRestrict:
		return "restrict"
	case DeleteCascade:
		return "cascade"
	default:
		return "unknown"
	}
}

// ForeignKey declares that a column references another table's primary key.
type ForeignKey struct {
	Column   string
	RefTable string
	OnDelete DeletePolicy
}

// DateRange declares that one date column must not exceed another
// (start_date <= end_date).
type DateRange struct {
	StartColumn string
	EndColumn   string
}

// Table holds the complete definition of one table: typed columns, primary
// key, foreign-key edges, composite unique keys and date-range constraints.
// Tables are immutable once the registry is built.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  string
	ForeignKeys []ForeignKey
	UniqueKeys  [][]string
	DateRanges  []DateRange

	desc    *row.Descriptor
	pkIndex int
}

// newTable validates the definition and precomputes the row descriptor.
func newTable(name string, columns []Column, primaryKey string, fks []ForeignKey, uniques [][]string, ranges []DateRange) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("table name cannot be empty")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q must have at least one column", name)
	}

	names := make([]string, len(columns))
	typs := make([]types.Type, len(columns))
	for i, col := range columns {
		if err := col.validate(); err != nil {
			return nil, fmt.Errorf("table %q: %w", name, err)
		}
		names[i] = col.Name
		typs[i] = col.Type
	}

	desc, err := row.NewDescriptor(names, typs)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", name, err)
	}

	pkIndex := desc.IndexOf(primaryKey)
	if pkIndex < 0 {
		return nil, fmt.Errorf("table %q: primary key column %q not defined", name, primaryKey)
	}
	if typs[pkIndex] != types.IntType {
		return nil, fmt.Errorf("table %q: primary key %q must be an INT surrogate key", name, primaryKey)
	}

	for _, fk := range fks {
		idx := desc.IndexOf(fk.Column)
		if idx < 0 {
			return nil, fmt.Errorf("table %q: foreign key column %q not defined", name, fk.Column)
		}
		if typs[idx] != types.IntType {
			return nil, fmt.Errorf("table %q: foreign key column %q must be INT", name, fk.Column)
		}
	}

	for _, unique := range uniques {
		if len(unique) == 0 {
			return nil, fmt.Errorf("table %q: unique key must name at least one column", name)
		}
		for _, col := range unique {
			if !desc.HasColumn(col) {
				return nil, fmt.Errorf("table %q: unique key column %q not defined", name, col)
			}
		}
	}

	for _, dr := range ranges {
		for _, col := range []string{dr.StartColumn, dr.EndColumn} {
			idx := desc.IndexOf(col)
			if idx < 0 {
				return nil, fmt.Errorf("table %q: date range column %q not defined", name, col)
			}
			if typs[idx] != types.DateType {
				return nil, fmt.Errorf("table %q: date range column %q must be DATE", name, col)
			}
		}
	}

	return &Table{
		Name:        name,
		Columns:     columns,
		PrimaryKey:  primaryKey,
		ForeignKeys: fks,
		UniqueKeys:  uniques,
		DateRanges:  ranges,
		desc:        desc,
		pkIndex:     pkIndex,
	}, nil
}

// Descriptor returns the table's row shape.
func (t *Table) Descriptor() *row.Descriptor {
	return t.desc
}

// NewRow allocates an empty row shaped for this table.
func (t *Table) NewRow() *row.Row {
	return row.NewRow(t.desc)
}

// PrimaryKeyIndex returns the column index of the primary key.
func (t *Table) PrimaryKeyIndex() int {
	return t.pkIndex
}

// ColumnNamed returns the named column definition, or nil if absent.
func (t *Table) ColumnNamed(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// BuildRow constructs a complete row from a column-name-to-value map.
// Every column must be supplied with a value of the declared type.
func (t *Table) BuildRow(values map[string]types.Field) (*row.Row, error) {
	r := t.NewRow()
	for name, field := range values {
		if err := r.SetNamed(name, field); err != nil {
			return nil, fmt.Errorf("table %q: %w", t.Name, err)
		}
	}
	if !r.Complete() {
		return nil, fmt.Errorf("table %q: row is missing values (%s)", t.Name, t.desc)
	}
	return r, nil
}

// ForeignKeyOn returns the foreign-key edge declared on the given column,
// or nil if the column carries none.
func (t *Table) ForeignKeyOn(column string) *ForeignKey {
	for i := range t.ForeignKeys {
		if t.ForeignKeys[i].Column == column {
			return &t.ForeignKeys[i]
		}
	}
	return nil
}
