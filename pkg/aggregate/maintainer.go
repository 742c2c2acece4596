package aggregate

import (
	"slices"

	"relcore/pkg/cerr"
	"relcore/pkg/mutation"
	"relcore/pkg/primitives"
	"relcore/pkg/row"
	"relcore/pkg/schema"
	"relcore/pkg/store"
	"relcore/pkg/types"
)

const component = "AggregateMaintainer"

// Maintainer keeps derived fields consistent with their sources. It runs
// strictly after constraint validation and strictly before commit: it reads
// the transaction's effects through the overlay the validator produced and
// emits the extra mutations that bring derived state in line. A failure here
// aborts the transaction exactly like a validation failure.
type Maintainer struct {
	reg *schema.Registry
}

// NewMaintainer creates a maintainer over the given registry.
func NewMaintainer(reg *schema.Registry) *Maintainer {
	return &Maintainer{reg: reg}
}

// Maintain computes the derived-state mutations for a validated batch.
//
// base is the committed state the batch was validated against; overlay holds
// base plus the batch's effects. accepted is the validated mutation list
// (cascades included). The returned mutations are already applied to the
// overlay so later rules observe earlier results.
func (m *Maintainer) Maintain(base store.View, overlay *store.Overlay, accepted []mutation.Mutation, fulfillments []mutation.Fulfillment) ([]mutation.Mutation, error) {
	var derived []mutation.Mutation

	totals, err := m.recomputeTotals(base, overlay, accepted)
	if err != nil {
		return nil, err
	}
	for _, d := range totals {
		overlay.Apply(d)
		derived = append(derived, d)
	}

	depletions, err := m.depleteStock(overlay, fulfillments)
	if err != nil {
		return nil, err
	}
	for _, d := range depletions {
		overlay.Apply(d)
		derived = append(derived, d)
	}

	return derived, nil
}

// recomputeTotals recalculates the derived total column for every parent row
// the batch touches, summing price*quantity over the parent's full item set
// as visible through the overlay. Recomputing from scratch, rather than
// applying deltas, keeps the total immune to drift and lost updates.
func (m *Maintainer) recomputeTotals(base store.View, overlay *store.Overlay, accepted []mutation.Mutation) ([]mutation.Mutation, error) {
	affected := make(map[string]map[primitives.RowKey]bool)
	mark := func(table string, key primitives.RowKey) {
		if !key.IsValid() {
			return
		}
		if affected[table] == nil {
			affected[table] = make(map[primitives.RowKey]bool)
		}
		affected[table][key] = true
	}

	for _, mut := range accepted {
		// Item mutations affect the parent they point at now and, for
		// updates and deletes, the parent the committed row pointed at.
		if rule := m.reg.TotalRuleFor(mut.Table); rule != nil {
			if mut.Row != nil {
				mark(rule.ParentTable, mut.Row.KeyAt(rule.ParentKeyColumn))
			}
			if mut.Op != mutation.OpInsert {
				if prev, ok := base.Get(mut.Table, mut.Key); ok {
					mark(rule.ParentTable, prev.Row.KeyAt(rule.ParentKeyColumn))
				}
			}
		}

		// Freshly written parent rows get their total recomputed as well, so
		// a parent inserted with a stale total is corrected immediately.
		for _, name := range m.reg.Tables() {
			rule := m.reg.TotalRuleFor(name)
			if rule != nil && rule.ParentTable == mut.Table && mut.Op != mutation.OpDelete {
				mark(mut.Table, mut.Key)
			}
		}
	}

	var derived []mutation.Mutation
	for _, itemTable := range m.reg.Tables() {
		rule := m.reg.TotalRuleFor(itemTable)
		if rule == nil {
			continue
		}

		keys := sortedKeys(affected[rule.ParentTable])
		for _, parentKey := range keys {
			parent, ok := overlay.Get(rule.ParentTable, parentKey)
			if !ok {
				// Parent deleted in the same batch; nothing to maintain.
				continue
			}

			total := int64(0)
			overlay.Scan(rule.ItemTable, func(vr *row.Versioned) bool {
				if vr.Row.KeyAt(rule.ParentKeyColumn) != parentKey {
					return true
				}
				total += intValue(vr.Row.Named(rule.PriceColumn)) * intValue(vr.Row.Named(rule.QuantityColumn))
				return true
			})

			current := intValue(parent.Row.Named(rule.TotalColumn))
			if current == total {
				continue
			}

			updated, err := parent.Row.WithUpdatedFields(map[string]types.Field{
				rule.TotalColumn: types.NewInt64Field(total),
			})
			if err != nil {
				return nil, cerr.Wrap(err, cerr.CodeInvalidMutation, "Maintain", component)
			}
			derived = append(derived, mutation.NewUpdate(rule.ParentTable, parentKey, updated))
		}
	}

	return derived, nil
}

// depleteStock applies fulfillment events: each one decrements the stock row
// matching the fulfilled item's product at the named store. Missing stock
// rows and decrements below zero abort with InsufficientStock; partial
// fulfillment is never applied.
func (m *Maintainer) depleteStock(overlay *store.Overlay, fulfillments []mutation.Fulfillment) ([]mutation.Mutation, error) {
	var derived []mutation.Mutation

	for _, f := range fulfillments {
		rule := m.reg.DepletionRuleFor(f.ItemTable)
		if rule == nil {
			return nil, cerr.Newf(cerr.CategoryUser, cerr.CodeInvalidMutation,
				"mutation is not applicable", "no depletion rule for table %q", f.ItemTable).
				WithComponent(component)
		}

		item, ok := overlay.Get(f.ItemTable, f.ItemKey)
		if !ok {
			return nil, cerr.Newf(cerr.CategoryUser, cerr.CodeInvalidMutation,
				"mutation is not applicable", "fulfillment names missing %s key=%d", f.ItemTable, f.ItemKey).
				WithComponent(component)
		}

		productKey := item.Row.KeyAt(rule.ItemProductColumn)
		need := intValue(item.Row.Named(rule.ItemQuantityColumn))

		stock := findStock(overlay, rule, productKey, f.StoreKey)
		if stock == nil {
			return nil, insufficientStock("no stock record for product=%d store=%d", productKey, f.StoreKey)
		}

		have := intValue(stock.Row.Named(rule.StockQuantityColumn))
		if have < need {
			return nil, insufficientStock("product=%d store=%d has %d, fulfillment needs %d",
				productKey, f.StoreKey, have, need)
		}

		updated, err := stock.Row.WithUpdatedFields(map[string]types.Field{
			rule.StockQuantityColumn: types.NewInt64Field(have - need),
		})
		if err != nil {
			return nil, cerr.Wrap(err, cerr.CodeInvalidMutation, "Maintain", component)
		}

		d := mutation.NewUpdate(rule.StockTable, stock.Key, updated)
		overlay.Apply(d)
		derived = append(derived, d)
	}

	return derived, nil
}

// FindStockRow locates the stock row for a product/store pair as visible in
// the view. Used by the coordinator to record the version stamp a
// fulfillment depends on.
func (m *Maintainer) FindStockRow(view store.View, itemTable string, productKey, storeKey primitives.RowKey) *row.Versioned {
	rule := m.reg.DepletionRuleFor(itemTable)
	if rule == nil {
		return nil
	}
	return findStock(view, rule, productKey, storeKey)
}

func findStock(view store.View, rule *schema.DepletionRule, productKey, storeKey primitives.RowKey) *row.Versioned {
	var found *row.Versioned
	view.Scan(rule.StockTable, func(vr *row.Versioned) bool {
		if vr.Row.KeyAt(rule.StockProductColumn) == productKey &&
			vr.Row.KeyAt(rule.StockStoreColumn) == storeKey {
			found = vr
			return false
		}
		return true
	})
	return found
}

func sortedKeys(set map[primitives.RowKey]bool) []primitives.RowKey {
	keys := make([]primitives.RowKey, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func intValue(f types.Field) int64 {
	if intField, ok := f.(*types.Int64Field); ok {
		return intField.Value
	}
	return 0
}

func insufficientStock(format string, args ...any) error {
	return cerr.New(cerr.CategoryUser, cerr.CodeInsufficientStock, "insufficient stock to fulfill item").
		WithDetail(format, args...).
		WithComponent(component)
}
