package txn

import (
	"sync"

	"github.com/google/uuid"

	"relcore/pkg/aggregate"
	"relcore/pkg/cerr"
	"relcore/pkg/mutation"
	"relcore/pkg/schema"
	"relcore/pkg/store"
	"relcore/pkg/validation"
)

const coordComponent = "Coordinator"

// Coordinator owns the transaction lifecycle: it hands out snapshots at
// Begin, tracks active transactions by handle, and drives the commit
// pipeline. Validation and aggregate maintenance both run inside the store's
// commit latch against the current committed state, so a transaction that
// passes them is consistent with everything that committed before it.
type Coordinator struct {
	mu     sync.Mutex
	active map[uuid.UUID]*Transaction

	reg        *schema.Registry
	store      *store.Store
	validator  *validation.Validator
	maintainer *aggregate.Maintainer
}

func NewCoordinator(reg *schema.Registry, st *store.Store) *Coordinator {
	return &Coordinator{
		active:     make(map[uuid.UUID]*Transaction),
		reg:        reg,
		store:      st,
		validator:  validation.NewValidator(reg),
		maintainer: aggregate.NewMaintainer(reg),
	}
}

// Begin opens a transaction over a snapshot of the committed state.
func (c *Coordinator) Begin() *Transaction {
	tx := newTransaction(c.reg, c.validator, c.maintainer, c.store.Snapshot())

	c.mu.Lock()
	c.active[tx.id] = tx
	c.mu.Unlock()
	return tx
}

// Get returns the active transaction with the given handle.
func (c *Coordinator) Get(id uuid.UUID) (*Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, ok := c.active[id]
	if !ok {
		return nil, cerr.Newf(cerr.CategoryUser, cerr.CodeTransactionNotFound,
			"no active transaction with that handle", "transaction %s", id).
			WithOperation("Get").WithComponent(coordComponent)
	}
	return tx, nil
}

// ActiveCount reports how many transactions are open.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Commit runs the full pipeline for a transaction: version stamp checks,
// ordered constraint validation with cascade expansion, then aggregate
// maintenance, all atomically against the current committed state. On any
// error the transaction is aborted and the committed state is untouched.
// Only a CONCURRENCY_CONFLICT is worth retrying; the retry must start over
// with a fresh transaction.
func (c *Coordinator) Commit(tx *Transaction) error {
	if err := c.claim(tx, StatusValidating, "Commit"); err != nil {
		return err
	}

	err := c.store.Commit(tx.expectations, func(current store.View) ([]store.Write, error) {
		accepted, overlay, err := c.validator.ValidateBatch(current, tx.batch)
		if err != nil {
			return nil, err
		}

		tx.transition(StatusAggregating)
		derived, err := c.maintainer.Maintain(current, overlay, accepted, tx.batch.Fulfillments)
		if err != nil {
			return nil, err
		}

		writes := make([]store.Write, 0, len(accepted)+len(derived))
		for _, m := range accepted {
			writes = append(writes, store.Write{Table: m.Table, Key: m.Key, Row: m.Row})
		}
		for _, m := range derived {
			writes = append(writes, store.Write{Table: m.Table, Key: m.Key, Row: m.Row})
		}
		return writes, nil
	})

	if err != nil {
		c.finish(tx, StatusAborted)
		return err
	}
	c.finish(tx, StatusCommitted)
	return nil
}

// Abort discards a transaction's staged work.
func (c *Coordinator) Abort(tx *Transaction) error {
	if err := c.claim(tx, StatusAborted, "Abort"); err != nil {
		return err
	}
	c.remove(tx.id)
	return nil
}

// claim atomically takes an open transaction into the given state. Two
// goroutines racing to commit the same handle resolve here: one proceeds,
// the other gets TRANSACTION_NOT_ACTIVE.
func (c *Coordinator) claim(tx *Transaction, to Status, op string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.status != StatusOpen {
		return cerr.Newf(cerr.CategoryUser, cerr.CodeTransactionNotActive,
			"transaction is no longer open", "transaction %s is %s", tx.id, tx.status).
			WithOperation(op).WithComponent(coordComponent)
	}
	tx.status = to
	return nil
}

func (c *Coordinator) finish(tx *Transaction, to Status) {
	tx.transition(to)
	c.remove(tx.id)
}

func (c *Coordinator) remove(id uuid.UUID) {
	c.mu.Lock()
	delete(c.active, id)
	c.mu.Unlock()
}

// StagedWrites is a convenience for tests and diagnostics: the mutations a
// transaction has buffered, in staging order.
func (c *Coordinator) StagedWrites(tx *Transaction) []mutation.Mutation {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	out := make([]mutation.Mutation, len(tx.batch.Mutations))
	copy(out, tx.batch.Mutations)
	return out
}
