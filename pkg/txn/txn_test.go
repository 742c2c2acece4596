package txn

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"relcore/pkg/cerr"
	"relcore/pkg/mutation"
	"relcore/pkg/primitives"
	"relcore/pkg/row"
	"relcore/pkg/schema"
	"relcore/pkg/store"
	"relcore/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type env struct {
	reg   *schema.Registry
	store *store.Store
	coord *Coordinator
}

func newEnv(t *testing.T) *env {
	t.Helper()

	reg, err := schema.DemoRegistry()
	require.NoError(t, err)

	st := store.NewStore(reg)
	e := &env{reg: reg, store: st, coord: NewCoordinator(reg, st)}

	e.commit(t, "customers", 1, map[string]types.Field{
		"id": types.NewInt64Field(1), "full_name": types.NewStringField("Ana Gomes"),
		"email": types.NewStringField("ana@example.com"), "city": types.NewStringField("Lisbon"),
	})
	e.commit(t, "products", 1, map[string]types.Field{
		"id": types.NewInt64Field(1), "name": types.NewStringField("Dark Chocolate"),
		"category": types.NewStringField("sweets"), "price_cents": types.NewInt64Field(500),
	})
	e.commit(t, "orders", 10, map[string]types.Field{
		"id": types.NewInt64Field(10), "customer_id": types.NewInt64Field(1),
		"total_price_cents": types.NewInt64Field(0),
	})
	e.commit(t, "regions", 1, map[string]types.Field{
		"id": types.NewInt64Field(1), "country": types.NewStringField("PT"),
		"state": types.NewStringField("Lisboa"), "city": types.NewStringField("Lisbon"),
	})
	e.commit(t, "stores", 7, map[string]types.Field{
		"id": types.NewInt64Field(7), "region_id": types.NewInt64Field(1),
		"active": types.NewBoolField(true),
	})
	e.commit(t, "inventory", 1000, map[string]types.Field{
		"id": types.NewInt64Field(1000), "product_id": types.NewInt64Field(1),
		"store_id": types.NewInt64Field(7), "quantity": types.NewInt64Field(2),
	})
	return e
}

func (e *env) buildRow(t *testing.T, table string, values map[string]types.Field) *row.Row {
	t.Helper()
	def, err := e.reg.Describe(table)
	require.NoError(t, err)
	r, err := def.BuildRow(values)
	require.NoError(t, err)
	return r
}

func (e *env) commit(t *testing.T, table string, key primitives.RowKey, values map[string]types.Field) {
	t.Helper()
	r := e.buildRow(t, table, values)
	err := e.store.Commit(nil, func(store.View) ([]store.Write, error) {
		return []store.Write{{Table: table, Key: key, Row: r}}, nil
	})
	require.NoError(t, err)
}

func (e *env) itemRow(t *testing.T, id, orderID, qty int64) *row.Row {
	t.Helper()
	return e.buildRow(t, "order_items", map[string]types.Field{
		"id": types.NewInt64Field(id), "order_id": types.NewInt64Field(orderID),
		"product_id": types.NewInt64Field(1), "quantity": types.NewInt64Field(qty),
		"price_cents": types.NewInt64Field(500),
	})
}

func TestCoordinator_BeginGetAbort(t *testing.T) {
	e := newEnv(t)

	tx := e.coord.Begin()
	require.Equal(t, StatusOpen, tx.Status())
	require.Equal(t, 1, e.coord.ActiveCount())

	got, err := e.coord.Get(tx.ID())
	require.NoError(t, err)
	require.Same(t, tx, got)

	require.NoError(t, e.coord.Abort(tx))
	require.Equal(t, StatusAborted, tx.Status())
	require.Equal(t, 0, e.coord.ActiveCount())

	_, err = e.coord.Get(tx.ID())
	require.True(t, cerr.HasCode(err, cerr.CodeTransactionNotFound))
}

func TestCommit_AppliesMutationsAndTotals(t *testing.T) {
	e := newEnv(t)

	tx := e.coord.Begin()
	require.NoError(t, tx.Stage(mutation.NewInsert("order_items", e.itemRow(t, 100, 10, 3))))
	require.NoError(t, e.coord.Commit(tx))
	require.Equal(t, StatusCommitted, tx.Status())

	snap := e.store.Snapshot()
	item, ok := snap.Get("order_items", 100)
	require.True(t, ok)
	require.Equal(t, "3", item.Row.Named("quantity").String())

	order, ok := snap.Get("orders", 10)
	require.True(t, ok)
	require.Equal(t, "1500", order.Row.Named("total_price_cents").String())
}

func TestCommit_ValidationFailureAborts(t *testing.T) {
	e := newEnv(t)

	tx := e.coord.Begin()
	orphan := e.buildRow(t, "order_items", map[string]types.Field{
		"id": types.NewInt64Field(100), "order_id": types.NewInt64Field(999),
		"product_id": types.NewInt64Field(1), "quantity": types.NewInt64Field(1),
		"price_cents": types.NewInt64Field(500),
	})
	require.NoError(t, tx.Stage(mutation.NewInsert("order_items", orphan)))

	err := e.coord.Commit(tx)
	require.True(t, cerr.HasCode(err, cerr.CodeForeignKeyNotFound), "got %v", err)
	require.Equal(t, StatusAborted, tx.Status())

	_, ok := e.store.Snapshot().Get("order_items", 100)
	require.False(t, ok, "nothing from an aborted transaction may commit")
}

func TestStage_AfterTerminalState(t *testing.T) {
	e := newEnv(t)

	tx := e.coord.Begin()
	require.NoError(t, e.coord.Abort(tx))

	err := tx.Stage(mutation.NewInsert("order_items", e.itemRow(t, 100, 10, 1)))
	require.True(t, cerr.HasCode(err, cerr.CodeTransactionNotActive))

	err = e.coord.Commit(tx)
	require.True(t, cerr.HasCode(err, cerr.CodeTransactionNotActive))
}

func TestTransaction_ReadsSeeOwnStagedWrites(t *testing.T) {
	e := newEnv(t)

	tx := e.coord.Begin()
	require.NoError(t, tx.Stage(mutation.NewInsert("order_items", e.itemRow(t, 100, 10, 1))))

	staged, ok := tx.Get("order_items", 100)
	require.True(t, ok)
	require.Equal(t, "1", staged.Row.Named("quantity").String())

	other := e.coord.Begin()
	_, ok = other.Get("order_items", 100)
	require.False(t, ok, "staged rows must stay private to their transaction")

	require.NoError(t, e.coord.Abort(tx))
	require.NoError(t, e.coord.Abort(other))
}

func TestCommit_StaleUpdateConflicts(t *testing.T) {
	e := newEnv(t)

	stale := e.coord.Begin()

	// Another transaction touches the product after stale's snapshot.
	winner := e.coord.Begin()
	repriced := e.buildRow(t, "products", map[string]types.Field{
		"id": types.NewInt64Field(1), "name": types.NewStringField("Dark Chocolate"),
		"category": types.NewStringField("sweets"), "price_cents": types.NewInt64Field(600),
	})
	require.NoError(t, winner.Stage(mutation.NewUpdate("products", 1, repriced)))
	require.NoError(t, e.coord.Commit(winner))

	again := e.buildRow(t, "products", map[string]types.Field{
		"id": types.NewInt64Field(1), "name": types.NewStringField("Dark Chocolate"),
		"category": types.NewStringField("sweets"), "price_cents": types.NewInt64Field(700),
	})
	require.NoError(t, stale.Stage(mutation.NewUpdate("products", 1, again)))

	err := e.coord.Commit(stale)
	require.True(t, cerr.HasCode(err, cerr.CodeConcurrencyConflict), "got %v", err)
	require.True(t, cerr.IsRetryable(err))

	current, ok := e.store.Snapshot().Get("products", 1)
	require.True(t, ok)
	require.Equal(t, "600", current.Row.Named("price_cents").String())
}

func TestCommit_LastUnitsRace(t *testing.T) {
	e := newEnv(t)

	// Both transactions snapshot a stock of 2 and try to take all of it.
	txA := e.coord.Begin()
	txB := e.coord.Begin()

	stageAll := func(tx *Transaction, itemID int64) {
		require.NoError(t, tx.Stage(mutation.NewInsert("order_items", e.itemRow(t, itemID, 10, 2))))
		require.NoError(t, tx.StageFulfillment(mutation.Fulfillment{
			ItemTable: "order_items", ItemKey: primitives.RowKey(itemID), StoreKey: 7,
		}))
	}
	stageAll(txA, 100)
	stageAll(txB, 101)

	var conflicts, commits atomic.Int64
	var g errgroup.Group
	for _, tx := range []*Transaction{txA, txB} {
		tx := tx
		g.Go(func() error {
			err := e.coord.Commit(tx)
			switch {
			case err == nil:
				commits.Add(1)
			case cerr.HasCode(err, cerr.CodeConcurrencyConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int64(1), commits.Load(), "exactly one transaction may take the last units")
	require.Equal(t, int64(1), conflicts.Load())

	stock, ok := e.store.Snapshot().Get("inventory", 1000)
	require.True(t, ok)
	require.Equal(t, "0", stock.Row.Named("quantity").String())
}

func TestStageFulfillment_Validation(t *testing.T) {
	e := newEnv(t)
	tx := e.coord.Begin()

	err := tx.StageFulfillment(mutation.Fulfillment{ItemTable: "products", ItemKey: 1, StoreKey: 7})
	require.True(t, cerr.HasCode(err, cerr.CodeInvalidMutation), "no depletion rule: got %v", err)

	err = tx.StageFulfillment(mutation.Fulfillment{ItemTable: "order_items", ItemKey: 404, StoreKey: 7})
	require.True(t, cerr.HasCode(err, cerr.CodeInvalidMutation), "unknown item: got %v", err)

	require.NoError(t, e.coord.Abort(tx))
}

func TestCommit_CascadeDeleteOrder(t *testing.T) {
	e := newEnv(t)

	setup := e.coord.Begin()
	require.NoError(t, setup.Stage(mutation.NewInsert("order_items", e.itemRow(t, 100, 10, 2))))
	require.NoError(t, e.coord.Commit(setup))

	tx := e.coord.Begin()
	require.NoError(t, tx.Stage(mutation.NewDelete("orders", 10)))
	require.NoError(t, e.coord.Commit(tx))

	snap := e.store.Snapshot()
	_, ok := snap.Get("orders", 10)
	require.False(t, ok)
	_, ok = snap.Get("order_items", 100)
	require.False(t, ok, "line items follow their order")
}
