package schema

import (
	"testing"

	"relcore/pkg/cerr"
	"relcore/pkg/types"
)

func TestDemoRegistry_Builds(t *testing.T) {
	reg, err := DemoRegistry()
	if err != nil {
		t.Fatalf("DemoRegistry failed: %v", err)
	}

	expected := []string{
		"customers", "products", "orders", "order_items",
		"regions", "stores", "employees", "campaigns", "inventory",
	}
	for _, name := range expected {
		if !reg.HasTable(name) {
			t.Errorf("missing table %q", name)
		}
	}

	orders, err := reg.Describe("orders")
	if err != nil {
		t.Fatalf("Describe(orders) failed: %v", err)
	}
	if orders.PrimaryKey != "id" {
		t.Errorf("expected primary key id, got %q", orders.PrimaryKey)
	}
	if fk := orders.ForeignKeyOn("customer_id"); fk == nil || fk.RefTable != "customers" {
		t.Errorf("expected orders.customer_id -> customers, got %+v", fk)
	}
}

func TestDescribe_UnknownTable(t *testing.T) {
	reg, err := DemoRegistry()
	if err != nil {
		t.Fatalf("DemoRegistry failed: %v", err)
	}

	_, err = reg.Describe("warehouses")
	if !cerr.HasCode(err, cerr.CodeUnknownTable) {
		t.Errorf("expected UNKNOWN_TABLE, got %v", err)
	}
}

func TestEdgeFrom(t *testing.T) {
	reg, err := DemoRegistry()
	if err != nil {
		t.Fatalf("DemoRegistry failed: %v", err)
	}

	fk, err := reg.EdgeFrom("inventory", "store_id")
	if err != nil {
		t.Fatalf("EdgeFrom failed: %v", err)
	}
	if fk.RefTable != "stores" {
		t.Errorf("expected stores, got %q", fk.RefTable)
	}

	_, err = reg.EdgeFrom("inventory", "quantity")
	if !cerr.HasCode(err, cerr.CodeNoSuchEdge) {
		t.Errorf("expected NO_SUCH_EDGE, got %v", err)
	}

	_, err = reg.EdgeFrom("nowhere", "id")
	if !cerr.HasCode(err, cerr.CodeUnknownTable) {
		t.Errorf("expected UNKNOWN_TABLE, got %v", err)
	}
}

func TestDependentsOf(t *testing.T) {
	reg, err := DemoRegistry()
	if err != nil {
		t.Fatalf("DemoRegistry failed: %v", err)
	}

	deps := reg.DependentsOf("products")
	var fromTables []string
	for _, edge := range deps {
		fromTables = append(fromTables, edge.FromTable)
		if edge.OnDelete != DeleteRestrict {
			t.Errorf("edge %s.%s should restrict deletes", edge.FromTable, edge.Column)
		}
	}

	found := map[string]bool{}
	for _, name := range fromTables {
		found[name] = true
	}
	if !found["order_items"] || !found["inventory"] {
		t.Errorf("expected order_items and inventory to depend on products, got %v", fromTables)
	}
}

func TestCascadeEdge(t *testing.T) {
	reg, err := DemoRegistry()
	if err != nil {
		t.Fatalf("DemoRegistry failed: %v", err)
	}

	items, err := reg.Describe("order_items")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if fk := items.ForeignKeyOn("order_id"); fk == nil || fk.OnDelete != DeleteCascade {
		t.Errorf("expected order_items.order_id to cascade, got %+v", fk)
	}
}

func TestAggregateRules(t *testing.T) {
	reg, err := DemoRegistry()
	if err != nil {
		t.Fatalf("DemoRegistry failed: %v", err)
	}

	total := reg.TotalRuleFor("order_items")
	if total == nil {
		t.Fatal("expected a total rule for order_items")
	}
	if total.ParentTable != "orders" || total.TotalColumn != "total_price_cents" {
		t.Errorf("unexpected total rule: %+v", total)
	}

	depletion := reg.DepletionRuleFor("order_items")
	if depletion == nil {
		t.Fatal("expected a depletion rule for order_items")
	}
	if depletion.StockTable != "inventory" {
		t.Errorf("unexpected depletion rule: %+v", depletion)
	}

	if reg.TotalRuleFor("inventory") != nil {
		t.Error("inventory must carry no total rule")
	}
}

func TestBuild_RejectsDanglingForeignKey(t *testing.T) {
	_, err := NewBuilder().
		AddTable("orders",
			[]Column{{Name: "id", Type: types.IntType}, {Name: "customer_id", Type: types.IntType}},
			"id",
			[]ForeignKey{{Column: "customer_id", RefTable: "customers"}},
			nil, nil).
		Build()

	if !cerr.HasCode(err, cerr.CodeInvalidSchema) {
		t.Errorf("expected INVALID_SCHEMA, got %v", err)
	}
}

func TestBuild_RejectsBadPrimaryKey(t *testing.T) {
	_, err := NewBuilder().
		AddTable("customers",
			[]Column{{Name: "id", Type: types.IntType}},
			"uuid",
			nil, nil, nil).
		Build()

	if !cerr.HasCode(err, cerr.CodeInvalidSchema) {
		t.Errorf("expected INVALID_SCHEMA, got %v", err)
	}
}

func TestLoadYAML_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "tables: ["},
		{"unknown type", "tables:\n  - name: t\n    primary_key: id\n    columns:\n      - {name: id, type: BLOB}"},
		{"unknown check", "tables:\n  - name: t\n    primary_key: id\n    columns:\n      - {name: id, type: INT, check: prime}"},
		{"unknown policy", `
tables:
  - name: a
    primary_key: id
    columns:
      - {name: id, type: INT}
  - name: b
    primary_key: id
    columns:
      - {name: id, type: INT}
      - {name: a_id, type: INT}
    foreign_keys:
      - {column: a_id, references: a, on_delete: nullify}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML([]byte(tt.doc))
			if !cerr.HasCode(err, cerr.CodeInvalidSchema) {
				t.Errorf("expected INVALID_SCHEMA, got %v", err)
			}
		})
	}
}

func TestDumpYAML_RoundTrip(t *testing.T) {
	reg, err := DemoRegistry()
	if err != nil {
		t.Fatalf("DemoRegistry failed: %v", err)
	}

	data, err := DumpYAML(reg)
	if err != nil {
		t.Fatalf("DumpYAML failed: %v", err)
	}

	again, err := LoadYAML(data)
	if err != nil {
		t.Fatalf("reloading dumped schema failed: %v", err)
	}
	if len(again.Tables()) != len(reg.Tables()) {
		t.Errorf("expected %d tables after round trip, got %d", len(reg.Tables()), len(again.Tables()))
	}
}
