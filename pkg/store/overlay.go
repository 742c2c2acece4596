package store

import (
	"slices"

	"relcore/pkg/mutation"
	"relcore/pkg/primitives"
	"relcore/pkg/row"
)

// Overlay layers a set of uncommitted changes on top of a base view. It is
// what a transaction reads through: its own staged writes shadow the
// committed snapshot, and staged deletes hide committed rows.
type Overlay struct {
	base View

	// changes[table][key] holds the staged row, or nil for a staged delete.
	changes map[string]map[primitives.RowKey]*row.Row
}

// NewOverlay creates an empty overlay over the base view.
func NewOverlay(base View) *Overlay {
	return &Overlay{
		base:    base,
		changes: make(map[string]map[primitives.RowKey]*row.Row),
	}
}

// Put stages a row value for table/key, shadowing the base.
func (o *Overlay) Put(table string, key primitives.RowKey, r *row.Row) {
	o.tableChanges(table)[key] = r
}

// Delete stages a delete for table/key.
func (o *Overlay) Delete(table string, key primitives.RowKey) {
	o.tableChanges(table)[key] = nil
}

// Apply stages a single mutation.
func (o *Overlay) Apply(m mutation.Mutation) {
	switch m.Op {
	case mutation.OpInsert, mutation.OpUpdate:
		o.Put(m.Table, m.Key, m.Row)
	case mutation.OpDelete:
		o.Delete(m.Table, m.Key)
	}
}

// ApplyAll stages every mutation in order.
func (o *Overlay) ApplyAll(ms []mutation.Mutation) {
	for _, m := range ms {
		o.Apply(m)
	}
}

// Get returns the visible row for table/key: the staged value if present
// (absent when staged deleted), otherwise the base's. Staged rows report the
// base row's version stamp, or ZeroVersion for rows new in this overlay.
func (o *Overlay) Get(table string, key primitives.RowKey) (*row.Versioned, bool) {
	if changes, ok := o.changes[table]; ok {
		if staged, ok := changes[key]; ok {
			if staged == nil {
				return nil, false
			}
			version := primitives.ZeroVersion
			if base, ok := o.base.Get(table, key); ok {
				version = base.Version
			}
			return row.NewVersioned(key, staged, version), true
		}
	}
	return o.base.Get(table, key)
}

// Scan visits the visible rows of the table in ascending key order.
func (o *Overlay) Scan(table string, fn func(*row.Versioned) bool) {
	changes := o.changes[table]
	if len(changes) == 0 {
		o.base.Scan(table, fn)
		return
	}

	keySet := make(map[primitives.RowKey]bool)
	o.base.Scan(table, func(vr *row.Versioned) bool {
		keySet[vr.Key] = true
		return true
	})
	for key := range changes {
		keySet[key] = true
	}

	keys := make([]primitives.RowKey, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		vr, ok := o.Get(table, key)
		if !ok {
			continue
		}
		if !fn(vr) {
			return
		}
	}
}

func (o *Overlay) tableChanges(table string) map[primitives.RowKey]*row.Row {
	changes, ok := o.changes[table]
	if !ok {
		changes = make(map[primitives.RowKey]*row.Row)
		o.changes[table] = changes
	}
	return changes
}
