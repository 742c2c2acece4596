package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"relcore/pkg/cerr"
	"relcore/pkg/mutation"
	"relcore/pkg/primitives"
	"relcore/pkg/row"
	"relcore/pkg/schema"
	"relcore/pkg/store"
	"relcore/pkg/types"
)

// fixture builds a committed state with one customer, one product, one order
// with one item, one region/store pair and one inventory row.
type fixture struct {
	reg  *schema.Registry
	st   *store.Store
	snap *store.Snapshot
	v    *Validator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg, err := schema.DemoRegistry()
	require.NoError(t, err)

	st := store.NewStore(reg)
	f := &fixture{reg: reg, st: st, v: NewValidator(reg)}

	f.commit(t, "customers", 1, f.buildRow(t, "customers", map[string]types.Field{
		"id": types.NewInt64Field(1), "full_name": types.NewStringField("Ana Gomes"),
		"email": types.NewStringField("ana@example.com"), "city": types.NewStringField("Lisbon"),
	}))
	f.commit(t, "products", 1, f.buildRow(t, "products", map[string]types.Field{
		"id": types.NewInt64Field(1), "name": types.NewStringField("Dark Chocolate"),
		"category": types.NewStringField("sweets"), "price_cents": types.NewInt64Field(500),
	}))
	f.commit(t, "orders", 10, f.buildRow(t, "orders", map[string]types.Field{
		"id": types.NewInt64Field(10), "customer_id": types.NewInt64Field(1),
		"total_price_cents": types.NewInt64Field(1000),
	}))
	f.commit(t, "order_items", 100, f.buildRow(t, "order_items", map[string]types.Field{
		"id": types.NewInt64Field(100), "order_id": types.NewInt64Field(10),
		"product_id": types.NewInt64Field(1), "quantity": types.NewInt64Field(2),
		"price_cents": types.NewInt64Field(500),
	}))
	f.commit(t, "regions", 1, f.buildRow(t, "regions", map[string]types.Field{
		"id": types.NewInt64Field(1), "country": types.NewStringField("PT"),
		"state": types.NewStringField("Lisboa"), "city": types.NewStringField("Lisbon"),
	}))
	f.commit(t, "stores", 7, f.buildRow(t, "stores", map[string]types.Field{
		"id": types.NewInt64Field(7), "region_id": types.NewInt64Field(1),
		"active": types.NewBoolField(true),
	}))
	f.commit(t, "inventory", 1000, f.buildRow(t, "inventory", map[string]types.Field{
		"id": types.NewInt64Field(1000), "product_id": types.NewInt64Field(1),
		"store_id": types.NewInt64Field(7), "quantity": types.NewInt64Field(2),
	}))

	f.snap = st.Snapshot()
	return f
}

func (f *fixture) buildRow(t *testing.T, table string, values map[string]types.Field) *row.Row {
	t.Helper()
	def, err := f.reg.Describe(table)
	require.NoError(t, err)
	r, err := def.BuildRow(values)
	require.NoError(t, err)
	return r
}

func (f *fixture) commit(t *testing.T, table string, key primitives.RowKey, r *row.Row) {
	t.Helper()
	err := f.st.Commit(nil, func(store.View) ([]store.Write, error) {
		return []store.Write{{Table: table, Key: key, Row: r}}, nil
	})
	require.NoError(t, err)
}

func (f *fixture) validate(ms ...mutation.Mutation) ([]mutation.Mutation, error) {
	accepted, _, err := f.v.ValidateBatch(f.snap, &mutation.Batch{Mutations: ms})
	return accepted, err
}

func TestValidate_InsertForeignKeyNotFound(t *testing.T) {
	f := newFixture(t)

	item := f.buildRow(t, "order_items", map[string]types.Field{
		"id": types.NewInt64Field(101), "order_id": types.NewInt64Field(10),
		"product_id": types.NewInt64Field(99), "quantity": types.NewInt64Field(1),
		"price_cents": types.NewInt64Field(500),
	})

	_, err := f.validate(mutation.NewInsert("order_items", item))
	require.True(t, cerr.HasCode(err, cerr.CodeForeignKeyNotFound), "got %v", err)
}

func TestValidate_ForeignKeySatisfiedWithinBatch(t *testing.T) {
	f := newFixture(t)

	product := f.buildRow(t, "products", map[string]types.Field{
		"id": types.NewInt64Field(2), "name": types.NewStringField("Espresso Beans"),
		"category": types.NewStringField("coffee"), "price_cents": types.NewInt64Field(1200),
	})
	item := f.buildRow(t, "order_items", map[string]types.Field{
		"id": types.NewInt64Field(101), "order_id": types.NewInt64Field(10),
		"product_id": types.NewInt64Field(2), "quantity": types.NewInt64Field(1),
		"price_cents": types.NewInt64Field(1200),
	})

	// The insert of the product earlier in the same batch satisfies the FK.
	_, err := f.validate(mutation.NewInsert("products", product), mutation.NewInsert("order_items", item))
	require.NoError(t, err)

	// Reversed order: the item is validated before the product exists.
	_, err = f.validate(mutation.NewInsert("order_items", item), mutation.NewInsert("products", product))
	require.True(t, cerr.HasCode(err, cerr.CodeForeignKeyNotFound), "got %v", err)
}

func TestValidate_DomainConstraints(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		table  string
		values map[string]types.Field
	}{
		{
			"negative price", "products",
			map[string]types.Field{
				"id": types.NewInt64Field(2), "name": types.NewStringField("x"),
				"category": types.NewStringField("misc"), "price_cents": types.NewInt64Field(-1),
			},
		},
		{
			"zero quantity", "order_items",
			map[string]types.Field{
				"id": types.NewInt64Field(101), "order_id": types.NewInt64Field(10),
				"product_id": types.NewInt64Field(1), "quantity": types.NewInt64Field(0),
				"price_cents": types.NewInt64Field(500),
			},
		},
		{
			"invalid status", "campaigns",
			map[string]types.Field{
				"id": types.NewInt64Field(1), "status": types.NewStringField("archived"),
				"budget_cents": types.NewInt64Field(1000),
				"start_date":   mustDateField(t, "2024-01-01"),
				"end_date":     mustDateField(t, "2024-06-30"),
			},
		},
		{
			"start after end", "campaigns",
			map[string]types.Field{
				"id": types.NewInt64Field(1), "status": types.NewStringField("active"),
				"budget_cents": types.NewInt64Field(1000),
				"start_date":   mustDateField(t, "2024-06-30"),
				"end_date":     mustDateField(t, "2024-01-01"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.validate(mutation.NewInsert(tt.table, f.buildRow(t, tt.table, tt.values)))
			require.True(t, cerr.HasCode(err, cerr.CodeDomainConstraint), "got %v", err)
		})
	}
}

func TestValidate_PrimaryKeyUniqueness(t *testing.T) {
	f := newFixture(t)

	dup := f.buildRow(t, "products", map[string]types.Field{
		"id": types.NewInt64Field(1), "name": types.NewStringField("Shadow"),
		"category": types.NewStringField("misc"), "price_cents": types.NewInt64Field(100),
	})

	_, err := f.validate(mutation.NewInsert("products", dup))
	require.True(t, cerr.HasCode(err, cerr.CodeUniqueConstraint), "got %v", err)
}

func TestValidate_CompositeUniqueKey(t *testing.T) {
	f := newFixture(t)

	// Same (product_id, store_id) as the committed inventory row.
	clash := f.buildRow(t, "inventory", map[string]types.Field{
		"id": types.NewInt64Field(1001), "product_id": types.NewInt64Field(1),
		"store_id": types.NewInt64Field(7), "quantity": types.NewInt64Field(5),
	})
	_, err := f.validate(mutation.NewInsert("inventory", clash))
	require.True(t, cerr.HasCode(err, cerr.CodeUniqueConstraint), "got %v", err)

	// Updating the committed row itself is not a clash with itself.
	update := f.buildRow(t, "inventory", map[string]types.Field{
		"id": types.NewInt64Field(1000), "product_id": types.NewInt64Field(1),
		"store_id": types.NewInt64Field(7), "quantity": types.NewInt64Field(9),
	})
	_, err = f.validate(mutation.NewUpdate("inventory", 1000, update))
	require.NoError(t, err)
}

func TestValidate_UpdateRules(t *testing.T) {
	f := newFixture(t)

	moved := f.buildRow(t, "products", map[string]types.Field{
		"id": types.NewInt64Field(2), "name": types.NewStringField("Dark Chocolate"),
		"category": types.NewStringField("sweets"), "price_cents": types.NewInt64Field(500),
	})
	_, err := f.validate(mutation.NewUpdate("products", 1, moved))
	require.True(t, cerr.HasCode(err, cerr.CodeInvalidMutation), "primary keys are immutable, got %v", err)

	ghost := f.buildRow(t, "products", map[string]types.Field{
		"id": types.NewInt64Field(55), "name": types.NewStringField("Ghost"),
		"category": types.NewStringField("misc"), "price_cents": types.NewInt64Field(10),
	})
	_, err = f.validate(mutation.NewUpdate("products", 55, ghost))
	require.True(t, cerr.HasCode(err, cerr.CodeInvalidMutation), "got %v", err)
}

func TestValidate_DeleteRestricted(t *testing.T) {
	f := newFixture(t)

	// The customer owns an order over a restrict edge.
	_, err := f.validate(mutation.NewDelete("customers", 1))
	require.True(t, cerr.HasCode(err, cerr.CodeReferentialIntegrity), "got %v", err)

	// A customer with no orders deletes cleanly.
	solo := f.buildRow(t, "customers", map[string]types.Field{
		"id": types.NewInt64Field(2), "full_name": types.NewStringField("Rui Costa"),
		"email": types.NewStringField("rui@example.com"), "city": types.NewStringField("Porto"),
	})
	f.commit(t, "customers", 2, solo)
	f.snap = f.st.Snapshot()

	_, err = f.validate(mutation.NewDelete("customers", 2))
	require.NoError(t, err)
}

func TestValidate_DeleteCascadesToItems(t *testing.T) {
	f := newFixture(t)

	accepted, err := f.validate(mutation.NewDelete("orders", 10))
	require.NoError(t, err)

	// The order's item is queued for deletion within the same batch.
	require.Len(t, accepted, 2)
	require.Equal(t, mutation.OpDelete, accepted[1].Op)
	require.Equal(t, "order_items", accepted[1].Table)
	require.Equal(t, primitives.RowKey(100), accepted[1].Key)
}

func TestValidate_DeleteMissingRow(t *testing.T) {
	f := newFixture(t)

	_, err := f.validate(mutation.NewDelete("orders", 999))
	require.True(t, cerr.HasCode(err, cerr.CodeInvalidMutation), "got %v", err)
}

func TestValidate_UnknownTable(t *testing.T) {
	f := newFixture(t)

	_, err := f.validate(mutation.NewDelete("warehouses", 1))
	require.True(t, cerr.HasCode(err, cerr.CodeUnknownTable), "got %v", err)
}

func TestCheckShape(t *testing.T) {
	f := newFixture(t)

	incomplete, err := f.reg.Describe("products")
	require.NoError(t, err)
	r := incomplete.NewRow()
	require.NoError(t, r.SetNamed("id", types.NewInt64Field(3)))

	err = f.v.CheckShape(mutation.NewInsert("products", r))
	require.True(t, cerr.HasCode(err, cerr.CodeInvalidMutation), "got %v", err)

	err = f.v.CheckShape(mutation.Mutation{Table: "products", Op: mutation.OpInsert})
	require.True(t, cerr.HasCode(err, cerr.CodeInvalidMutation), "nil row, got %v", err)
}

func mustDateField(t *testing.T, s string) *types.DateField {
	t.Helper()
	d, err := primitives.ParseDate(s)
	require.NoError(t, err)
	return types.NewDateField(d)
}
