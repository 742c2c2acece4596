package txn

import (
	"sync"

	"github.com/google/uuid"

	"relcore/pkg/aggregate"
	"relcore/pkg/cerr"
	"relcore/pkg/mutation"
	"relcore/pkg/primitives"
	"relcore/pkg/row"
	"relcore/pkg/schema"
	"relcore/pkg/store"
	"relcore/pkg/validation"
)

const txnComponent = "Transaction"

// Transaction buffers staged mutations against a committed-state snapshot
// taken at Begin. Nothing touches the store until Commit; reads through the
// transaction see the snapshot overlaid with its own staged changes.
//
// For every row a staged update or delete targets, and for every stock row a
// staged fulfillment will deplete, the transaction records the version stamp
// it observed. Commit refuses to proceed when any recorded stamp has moved.
type Transaction struct {
	mu     sync.Mutex
	id     uuid.UUID
	status Status

	reg        *schema.Registry
	validator  *validation.Validator
	maintainer *aggregate.Maintainer

	snapshot *store.Snapshot
	overlay  *store.Overlay
	batch    *mutation.Batch

	expectations []store.Expectation
	stamped      map[string]map[primitives.RowKey]bool
}

func newTransaction(reg *schema.Registry, v *validation.Validator, m *aggregate.Maintainer, snap *store.Snapshot) *Transaction {
	return &Transaction{
		id:         uuid.New(),
		status:     StatusOpen,
		reg:        reg,
		validator:  v,
		maintainer: m,
		snapshot:   snap,
		overlay:    store.NewOverlay(snap),
		batch:      &mutation.Batch{},
		stamped:    make(map[string]map[primitives.RowKey]bool),
	}
}

// ID returns the transaction's opaque handle.
func (tx *Transaction) ID() uuid.UUID {
	return tx.id
}

// Status returns the current lifecycle state.
func (tx *Transaction) Status() Status {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.status
}

// Stage buffers a mutation for commit. Shape problems (unknown table, wrong
// descriptor, missing fields, invalid keys) are rejected here; constraint
// checks run against the committed state at commit time.
func (tx *Transaction) Stage(m mutation.Mutation) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.status != StatusOpen {
		return tx.notActive("Stage")
	}
	if err := tx.validator.CheckShape(m); err != nil {
		return err
	}

	switch m.Op {
	case mutation.OpInsert:
		def, err := tx.reg.Describe(m.Table)
		if err != nil {
			return err
		}
		m.Key = m.Row.KeyAt(def.PrimaryKey)
	case mutation.OpUpdate, mutation.OpDelete:
		tx.stamp(m.Table, m.Key)
	}

	tx.batch.Mutations = append(tx.batch.Mutations, m)
	tx.overlay.Apply(m)
	return nil
}

// StageFulfillment marks a staged line item for stock depletion at a store.
// The stock row's version stamp, as of the transaction's snapshot, is
// recorded so that two transactions racing for the last units cannot both
// commit.
func (tx *Transaction) StageFulfillment(f mutation.Fulfillment) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.status != StatusOpen {
		return tx.notActive("StageFulfillment")
	}

	rule := tx.reg.DepletionRuleFor(f.ItemTable)
	if rule == nil {
		return cerr.Newf(cerr.CategoryUser, cerr.CodeInvalidMutation,
			"table has no stock depletion rule", "table %q", f.ItemTable).
			WithOperation("StageFulfillment").WithComponent(txnComponent)
	}
	if !f.ItemKey.IsValid() || !f.StoreKey.IsValid() {
		return cerr.Newf(cerr.CategoryUser, cerr.CodeInvalidMutation,
			"fulfillment keys must be valid", "item=%d store=%d", f.ItemKey, f.StoreKey).
			WithOperation("StageFulfillment").WithComponent(txnComponent)
	}

	item, ok := tx.overlay.Get(f.ItemTable, f.ItemKey)
	if !ok {
		return cerr.Newf(cerr.CategoryUser, cerr.CodeInvalidMutation,
			"fulfillment references an unknown line item", "%s key=%d", f.ItemTable, f.ItemKey).
			WithOperation("StageFulfillment").WithComponent(txnComponent)
	}

	productKey := item.Row.KeyAt(rule.ItemProductColumn)
	if stock := tx.maintainer.FindStockRow(tx.snapshot, f.ItemTable, productKey, f.StoreKey); stock != nil {
		tx.stamp(rule.StockTable, stock.Key)
	}

	tx.batch.Fulfillments = append(tx.batch.Fulfillments, f)
	return nil
}

// Get reads a row as the transaction sees it: committed state as of Begin
// plus this transaction's own staged changes.
func (tx *Transaction) Get(table string, key primitives.RowKey) (*row.Versioned, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.overlay.Get(table, key)
}

// Scan visits the transaction's view of a table in ascending key order.
func (tx *Transaction) Scan(table string, fn func(*row.Versioned) bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.overlay.Scan(table, fn)
}

// View exposes the transaction's read view for query resolution.
func (tx *Transaction) View() store.View {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.overlay
}

// Pending returns how many mutations and fulfillments are staged.
func (tx *Transaction) Pending() (mutations, fulfillments int) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.batch.Mutations), len(tx.batch.Fulfillments)
}

// stamp records the version a row had in the snapshot, once per row. A row
// absent from the snapshot is stamped at the zero version, which makes the
// commit fail if anyone has created it since.
func (tx *Transaction) stamp(table string, key primitives.RowKey) {
	if tx.stamped[table] == nil {
		tx.stamped[table] = make(map[primitives.RowKey]bool)
	}
	if tx.stamped[table][key] {
		return
	}
	tx.stamped[table][key] = true

	version := primitives.ZeroVersion
	if vr, ok := tx.snapshot.Get(table, key); ok {
		version = vr.Version
	}
	tx.expectations = append(tx.expectations, store.Expectation{
		Table: table, Key: key, Version: version,
	})
}

func (tx *Transaction) notActive(op string) error {
	return cerr.Newf(cerr.CategoryUser, cerr.CodeTransactionNotActive,
		"transaction is no longer open", "transaction %s is %s", tx.id, tx.status).
		WithOperation(op).WithComponent(txnComponent)
}

// transition moves the status forward under the transaction lock.
func (tx *Transaction) transition(to Status) {
	tx.mu.Lock()
	tx.status = to
	tx.mu.Unlock()
}
