package schema

import "relcore/pkg/cerr"

// ReverseEdge is a foreign-key edge seen from the referenced table's side:
// "rows of FromTable point at me through Column".
type ReverseEdge struct {
	FromTable string
	Column    string
	OnDelete  DeletePolicy
}

// Registry is the immutable, process-wide catalog of table definitions,
// foreign-key edges and derived-aggregate rules.
//
// A Registry is built once at startup and never mutated afterwards, so every
// component may read it concurrently without synchronization.
type Registry struct {
	tables     map[string]*Table
	tableOrder []string

	// Aggregate rules keyed by their item table.
	totals     map[string]*TotalRule
	depletions map[string]*DepletionRule

	// Reverse FK index: referenced table -> edges pointing at it.
	dependents map[string][]ReverseEdge
}

// Describe returns the definition of the named table.
func (r *Registry) Describe(table string) (*Table, error) {
	t, ok := r.tables[table]
	if !ok {
		return nil, cerr.Newf(cerr.CategoryUser, cerr.CodeUnknownTable,
			"table is not registered", "no table named %q", table).
			WithComponent("SchemaRegistry")
	}
	return t, nil
}

// HasTable reports whether the named table is registered.
func (r *Registry) HasTable(table string) bool {
	_, ok := r.tables[table]
	return ok
}

// Tables returns all table names in registration order.
func (r *Registry) Tables() []string {
	return append([]string(nil), r.tableOrder...)
}

// DependentsOf returns the foreign-key edges pointing at the given table.
// Deleting a row of that table must consult every returned edge.
func (r *Registry) DependentsOf(table string) []ReverseEdge {
	return r.dependents[table]
}

// EdgeFrom resolves the foreign-key edge declared on table.column, as used by
// the query router to follow join paths.
func (r *Registry) EdgeFrom(table, column string) (*ForeignKey, error) {
	t, err := r.Describe(table)
	if err != nil {
		return nil, err
	}

	fk := t.ForeignKeyOn(column)
	if fk == nil {
		return nil, cerr.Newf(cerr.CategoryUser, cerr.CodeNoSuchEdge,
			"no foreign-key edge on column", "%s.%s is not a declared foreign key", table, column).
			WithComponent("SchemaRegistry")
	}
	return fk, nil
}

// TotalRuleFor returns the derived-total rule whose item table is the given
// table, or nil when none is declared.
func (r *Registry) TotalRuleFor(itemTable string) *TotalRule {
	return r.totals[itemTable]
}

// DepletionRuleFor returns the stock-depletion rule whose item table is the
// given table, or nil when none is declared.
func (r *Registry) DepletionRuleFor(itemTable string) *DepletionRule {
	return r.depletions[itemTable]
}

// Builder accumulates table and aggregate definitions and validates them as a
// whole. All cross-table checks (FK targets exist, rule columns exist) happen
// in Build so that definition order does not matter.
type Builder struct {
	defs       []tableDef
	totals     []TotalRule
	depletions []DepletionRule
}

type tableDef struct {
	name       string
	columns    []Column
	primaryKey string
	fks        []ForeignKey
	uniques    [][]string
	ranges     []DateRange
}

// NewBuilder creates an empty registry builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddTable registers a table definition.
func (b *Builder) AddTable(name string, columns []Column, primaryKey string, fks []ForeignKey, uniques [][]string, ranges []DateRange) *Builder {
	b.defs = append(b.defs, tableDef{
		name:       name,
		columns:    columns,
		primaryKey: primaryKey,
		fks:        fks,
		uniques:    uniques,
		ranges:     ranges,
	})
	return b
}

// AddTotalRule registers a derived-total aggregate rule.
func (b *Builder) AddTotalRule(rule TotalRule) *Builder {
	b.totals = append(b.totals, rule)
	return b
}

// AddDepletionRule registers a stock-depletion aggregate rule.
func (b *Builder) AddDepletionRule(rule DepletionRule) *Builder {
	b.depletions = append(b.depletions, rule)
	return b
}

// Build validates all definitions and returns the immutable registry.
// A failure here is the startup-fatal condition: nothing can run without a
// well-formed catalog.
func (b *Builder) Build() (*Registry, error) {
	reg := &Registry{
		tables:     make(map[string]*Table, len(b.defs)),
		totals:     make(map[string]*TotalRule),
		depletions: make(map[string]*DepletionRule),
		dependents: make(map[string][]ReverseEdge),
	}

	for _, def := range b.defs {
		if _, dup := reg.tables[def.name]; dup {
			return nil, invalidSchema("duplicate table %q", def.name)
		}
		t, err := newTable(def.name, def.columns, def.primaryKey, def.fks, def.uniques, def.ranges)
		if err != nil {
			return nil, cerr.Wrap(err, cerr.CodeInvalidSchema, "Build", "SchemaRegistry")
		}
		reg.tables[def.name] = t
		reg.tableOrder = append(reg.tableOrder, def.name)
	}

	for _, t := range reg.tables {
		for _, fk := range t.ForeignKeys {
			target, ok := reg.tables[fk.RefTable]
			if !ok {
				return nil, invalidSchema("table %q: foreign key %q references unknown table %q",
					t.Name, fk.Column, fk.RefTable)
			}
			reg.dependents[target.Name] = append(reg.dependents[target.Name], ReverseEdge{
				FromTable: t.Name,
				Column:    fk.Column,
				OnDelete:  fk.OnDelete,
			})
		}
	}

	for i := range b.totals {
		rule := b.totals[i]
		if err := reg.checkTotalRule(rule); err != nil {
			return nil, err
		}
		if _, dup := reg.totals[rule.ItemTable]; dup {
			return nil, invalidSchema("duplicate total rule for item table %q", rule.ItemTable)
		}
		reg.totals[rule.ItemTable] = &b.totals[i]
	}

	for i := range b.depletions {
		rule := b.depletions[i]
		if err := reg.checkDepletionRule(rule); err != nil {
			return nil, err
		}
		if _, dup := reg.depletions[rule.ItemTable]; dup {
			return nil, invalidSchema("duplicate depletion rule for item table %q", rule.ItemTable)
		}
		reg.depletions[rule.ItemTable] = &b.depletions[i]
	}

	return reg, nil
}

func (r *Registry) checkTotalRule(rule TotalRule) error {
	item, ok := r.tables[rule.ItemTable]
	if !ok {
		return invalidSchema("total rule: unknown item table %q", rule.ItemTable)
	}
	parent, ok := r.tables[rule.ParentTable]
	if !ok {
		return invalidSchema("total rule: unknown parent table %q", rule.ParentTable)
	}

	for _, col := range []string{rule.ParentKeyColumn, rule.PriceColumn, rule.QuantityColumn} {
		if !item.Descriptor().HasColumn(col) {
			return invalidSchema("total rule: item table %q has no column %q", rule.ItemTable, col)
		}
	}
	if !parent.Descriptor().HasColumn(rule.TotalColumn) {
		return invalidSchema("total rule: parent table %q has no column %q", rule.ParentTable, rule.TotalColumn)
	}
	if item.ForeignKeyOn(rule.ParentKeyColumn) == nil {
		return invalidSchema("total rule: %s.%s must be a declared foreign key",
			rule.ItemTable, rule.ParentKeyColumn)
	}
	return nil
}

func (r *Registry) checkDepletionRule(rule DepletionRule) error {
	item, ok := r.tables[rule.ItemTable]
	if !ok {
		return invalidSchema("depletion rule: unknown item table %q", rule.ItemTable)
	}
	stock, ok := r.tables[rule.StockTable]
	if !ok {
		return invalidSchema("depletion rule: unknown stock table %q", rule.StockTable)
	}

	for _, col := range []string{rule.ItemProductColumn, rule.ItemQuantityColumn} {
		if !item.Descriptor().HasColumn(col) {
			return invalidSchema("depletion rule: item table %q has no column %q", rule.ItemTable, col)
		}
	}
	for _, col := range []string{rule.StockProductColumn, rule.StockStoreColumn, rule.StockQuantityColumn} {
		if !stock.Descriptor().HasColumn(col) {
			return invalidSchema("depletion rule: stock table %q has no column %q", rule.StockTable, col)
		}
	}
	return nil
}

func invalidSchema(format string, args ...any) error {
	return cerr.New(cerr.CategorySystem, cerr.CodeInvalidSchema, "malformed schema definition").
		WithDetail(format, args...).
		WithComponent("SchemaRegistry")
}
