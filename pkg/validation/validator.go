package validation

import (
	"relcore/pkg/cerr"
	"relcore/pkg/mutation"
	"relcore/pkg/primitives"
	"relcore/pkg/row"
	"relcore/pkg/schema"
	"relcore/pkg/store"
	"relcore/pkg/types"
)

const component = "ConstraintValidator"

// Validator checks proposed mutations against the schema registry and a view
// of row state. Validation is pure: it never modifies the view it is given,
// and the outcome is deterministic for a given (view, batch) pair.
type Validator struct {
	reg *schema.Registry
}

// NewValidator creates a validator over the given registry.
func NewValidator(reg *schema.Registry) *Validator {
	return &Validator{reg: reg}
}

// CheckShape performs the staging-time checks on a single mutation: the table
// must be registered, insert/update rows must be complete and well-typed for
// it, and keys must be valid. Cross-row checks wait until commit.
func (v *Validator) CheckShape(m mutation.Mutation) error {
	table, err := v.reg.Describe(m.Table)
	if err != nil {
		return err
	}

	switch m.Op {
	case mutation.OpInsert, mutation.OpUpdate:
		if m.Row == nil {
			return invalidMutation("%s on %s carries no row", m.Op, m.Table)
		}
		if m.Row.Descriptor() != table.Descriptor() {
			return invalidMutation("row for %s was built against a different table shape", m.Table)
		}
		if !m.Row.Complete() {
			return invalidMutation("row for %s is missing column values", m.Table)
		}
		if key := m.Row.KeyAt(table.PrimaryKey); !key.IsValid() {
			return invalidMutation("row for %s has no valid primary key value", m.Table)
		}
		if m.Op == mutation.OpUpdate && !m.Key.IsValid() {
			return invalidMutation("update on %s names no target key", m.Table)
		}

	case mutation.OpDelete:
		if !m.Key.IsValid() {
			return invalidMutation("delete on %s names no target key", m.Table)
		}

	default:
		return invalidMutation("unknown mutation op %d", m.Op)
	}
	return nil
}

// ValidateBatch checks the full buffered mutation set against the base view
// (committed state). Mutations are checked in order, each one seeing the
// committed state plus all previously accepted mutations of the batch.
// Cascade-delete expansion happens here: deletes over cascade edges enqueue
// dependent deletes into the same batch, transitively; deletes over restrict
// edges fail while live dependents remain.
//
// On success it returns the expanded mutation list (staged order preserved,
// cascade deletes appended) and the overlay holding the batch's effects over
// the base view.
func (v *Validator) ValidateBatch(base store.View, batch *mutation.Batch) ([]mutation.Mutation, *store.Overlay, error) {
	overlay := store.NewOverlay(base)
	accepted := make([]mutation.Mutation, 0, len(batch.Mutations))

	// Worklist: staged mutations first, cascade deletes appended as they are
	// discovered.
	work := append([]mutation.Mutation(nil), batch.Mutations...)
	queuedDeletes := make(map[string]map[primitives.RowKey]bool)

	for i := 0; i < len(work); i++ {
		m := work[i]
		if err := v.CheckShape(m); err != nil {
			return nil, nil, err
		}

		table, err := v.reg.Describe(m.Table)
		if err != nil {
			return nil, nil, err
		}

		switch m.Op {
		case mutation.OpInsert:
			m.Key = m.Row.KeyAt(table.PrimaryKey)
			if err := v.checkInsert(overlay, table, m); err != nil {
				return nil, nil, err
			}

		case mutation.OpUpdate:
			if err := v.checkUpdate(overlay, table, m); err != nil {
				return nil, nil, err
			}

		case mutation.OpDelete:
			queued := queuedDeletes[m.Table][m.Key]
			if _, visible := overlay.Get(m.Table, m.Key); !visible {
				if queued {
					// Already deleted by an earlier cascade step.
					continue
				}
				return nil, nil, invalidMutation("delete on %s: no row with key %d", m.Table, m.Key)
			}

			cascades, err := v.checkDelete(overlay, table, m)
			if err != nil {
				return nil, nil, err
			}
			for _, c := range cascades {
				if queuedDeletes[c.Table] == nil {
					queuedDeletes[c.Table] = make(map[primitives.RowKey]bool)
				}
				if !queuedDeletes[c.Table][c.Key] {
					queuedDeletes[c.Table][c.Key] = true
					work = append(work, c)
				}
			}
		}

		overlay.Apply(m)
		accepted = append(accepted, m)
	}

	return accepted, overlay, nil
}

// checkInsert enforces PK uniqueness, composite unique keys, domain
// constraints and foreign-key existence for a new row.
func (v *Validator) checkInsert(view store.View, table *schema.Table, m mutation.Mutation) error {
	if _, exists := view.Get(m.Table, m.Key); exists {
		return cerr.Newf(cerr.CategoryUser, cerr.CodeUniqueConstraint,
			"primary key already in use", "%s key=%d", m.Table, m.Key).
			WithComponent(component)
	}

	if err := v.checkDomain(table, m.Row); err != nil {
		return err
	}
	if err := v.checkForeignKeys(view, table, m.Row); err != nil {
		return err
	}
	return v.checkUniqueKeys(view, table, m.Row, m.Key)
}

// checkUpdate enforces target existence, primary-key immutability, domain
// constraints, foreign keys and composite unique keys for a replaced row.
func (v *Validator) checkUpdate(view store.View, table *schema.Table, m mutation.Mutation) error {
	if _, exists := view.Get(m.Table, m.Key); !exists {
		return invalidMutation("update on %s: no row with key %d", m.Table, m.Key)
	}

	if newKey := m.Row.KeyAt(table.PrimaryKey); newKey != m.Key {
		return invalidMutation("update on %s: primary key is immutable (key %d, row says %d)",
			m.Table, m.Key, newKey)
	}

	if err := v.checkDomain(table, m.Row); err != nil {
		return err
	}
	if err := v.checkForeignKeys(view, table, m.Row); err != nil {
		return err
	}
	return v.checkUniqueKeys(view, table, m.Row, m.Key)
}

// checkDelete enforces referential integrity for a delete. It returns the
// dependent deletes to enqueue for cascade edges; restrict edges with live
// dependents fail the batch.
func (v *Validator) checkDelete(view store.View, table *schema.Table, m mutation.Mutation) ([]mutation.Mutation, error) {
	var cascades []mutation.Mutation

	for _, edge := range v.reg.DependentsOf(m.Table) {
		var blocking *row.Versioned
		view.Scan(edge.FromTable, func(vr *row.Versioned) bool {
			if vr.Row.KeyAt(edge.Column) != m.Key {
				return true
			}
			if edge.OnDelete == schema.DeleteCascade {
				cascades = append(cascades, mutation.NewDelete(edge.FromTable, vr.Key))
				return true
			}
			blocking = vr
			return false
		})

		if blocking != nil {
			return nil, cerr.Newf(cerr.CategoryUser, cerr.CodeReferentialIntegrity,
				"delete is blocked by live dependent rows",
				"%s key=%d is referenced by %s.%s (key=%d)",
				m.Table, m.Key, edge.FromTable, edge.Column, blocking.Key).
				WithComponent(component)
		}
	}

	return cascades, nil
}

// checkDomain enforces per-column checks and date-range constraints.
func (v *Validator) checkDomain(table *schema.Table, r *row.Row) error {
	for _, col := range table.Columns {
		field := r.Named(col.Name)

		switch col.Check {
		case schema.CheckNonNegative:
			if intValue(field) < 0 {
				return domainViolation("%s.%s must be non-negative, got %s", table.Name, col.Name, field)
			}
		case schema.CheckPositive:
			if intValue(field) <= 0 {
				return domainViolation("%s.%s must be positive, got %s", table.Name, col.Name, field)
			}
		case schema.CheckEnum:
			if !col.AllowsEnumValue(field.String()) {
				return domainViolation("%s.%s: %q is not one of %v", table.Name, col.Name, field.String(), col.EnumValues)
			}
		}
	}

	for _, dr := range table.DateRanges {
		start, startOK := r.Named(dr.StartColumn).(*types.DateField)
		end, endOK := r.Named(dr.EndColumn).(*types.DateField)
		if !startOK || !endOK {
			return domainViolation("%s: date range columns %s..%s are unset", table.Name, dr.StartColumn, dr.EndColumn)
		}
		if start.Value.After(end.Value) {
			return domainViolation("%s: %s (%s) must not exceed %s (%s)",
				table.Name, dr.StartColumn, start, dr.EndColumn, end)
		}
	}
	return nil
}

// checkForeignKeys enforces that every FK column references a row visible in
// the view (committed state plus the batch's earlier mutations).
func (v *Validator) checkForeignKeys(view store.View, table *schema.Table, r *row.Row) error {
	for _, fk := range table.ForeignKeys {
		ref := r.KeyAt(fk.Column)
		if _, exists := view.Get(fk.RefTable, ref); !exists {
			return cerr.Newf(cerr.CategoryUser, cerr.CodeForeignKeyNotFound,
				"referenced row does not exist",
				"%s.%s=%d has no matching row in %s", table.Name, fk.Column, ref, fk.RefTable).
				WithComponent(component)
		}
	}
	return nil
}

// checkUniqueKeys enforces composite unique keys, ignoring the row's own key.
func (v *Validator) checkUniqueKeys(view store.View, table *schema.Table, r *row.Row, selfKey primitives.RowKey) error {
	for _, unique := range table.UniqueKeys {
		var clash *row.Versioned
		view.Scan(table.Name, func(vr *row.Versioned) bool {
			if vr.Key == selfKey {
				return true
			}
			for _, col := range unique {
				if !fieldsEqual(vr.Row.Named(col), r.Named(col)) {
					return true
				}
			}
			clash = vr
			return false
		})

		if clash != nil {
			return cerr.Newf(cerr.CategoryUser, cerr.CodeUniqueConstraint,
				"unique key already in use",
				"%s%v clashes with existing key=%d", table.Name, unique, clash.Key).
				WithComponent(component)
		}
	}
	return nil
}

func fieldsEqual(a, b types.Field) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Equals(b)
}

func intValue(f types.Field) int64 {
	if intField, ok := f.(*types.Int64Field); ok {
		return intField.Value
	}
	return 0
}

func invalidMutation(format string, args ...any) error {
	return cerr.New(cerr.CategoryUser, cerr.CodeInvalidMutation, "mutation is not applicable").
		WithDetail(format, args...).
		WithComponent(component)
}

func domainViolation(format string, args ...any) error {
	return cerr.New(cerr.CategoryUser, cerr.CodeDomainConstraint, "domain constraint violated").
		WithDetail(format, args...).
		WithComponent(component)
}
