package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"relcore/pkg/cerr"
	"relcore/pkg/engine"
	"relcore/pkg/logging"
	"relcore/pkg/mutation"
	"relcore/pkg/query"
	"relcore/pkg/row"
	"relcore/pkg/schema"
	"relcore/pkg/types"
)

var (
	schemaPath string
	logLevel   string
	logFormat  string
)

func main() {
	root := &cobra.Command{
		Use:   "relcore",
		Short: "Relational consistency core over a declarative table schema",
		Long: "relcore enforces referential integrity, domain constraints and derived\n" +
			"aggregates over an in-memory table store, with optimistic transactions\n" +
			"and foreign-key path queries.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Init(logging.Config{
				Level:  logging.LogLevel(logLevel),
				Format: logFormat,
			})
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&schemaPath, "schema", "", "schema YAML file (embedded demo schema when empty)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "log level (DEBUG, INFO, WARN, ERROR)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")

	root.AddCommand(schemaCommand(), demoCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the registered schema as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			out, err := schema.DumpYAML(e.Registry())
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func demoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk the consistency core through its demo scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			return runDemo(e)
		},
	}
}

func openEngine() (*engine.Engine, error) {
	if schemaPath == "" {
		return engine.Open(nil)
	}
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, err
	}
	return engine.Open(data)
}

func runDemo(e *engine.Engine) error {
	if err := seed(e); err != nil {
		return err
	}
	fmt.Println("seeded demo data: 1 customer, 1 product, 1 order, 1 region, 1 store, 3 units in stock")

	if err := demoOrderTotal(e); err != nil {
		return err
	}
	if err := demoRestrictedDelete(e); err != nil {
		return err
	}
	if err := demoLastUnitsRace(e); err != nil {
		return err
	}
	if err := demoJoinPath(e); err != nil {
		return err
	}

	info := e.Info()
	fmt.Printf("done: %d commits, %d aborts, %d conflicts\n",
		info.Commits, info.Aborts, info.Conflicts)
	return nil
}

func seed(e *engine.Engine) error {
	batch := &mutation.Batch{}
	rows := []struct {
		table  string
		values map[string]types.Field
	}{
		{"customers", map[string]types.Field{
			"id": types.NewInt64Field(1), "full_name": types.NewStringField("Ana Gomes"),
			"email": types.NewStringField("ana@example.com"), "city": types.NewStringField("Lisbon"),
		}},
		{"products", map[string]types.Field{
			"id": types.NewInt64Field(1), "name": types.NewStringField("Dark Chocolate"),
			"category": types.NewStringField("sweets"), "price_cents": types.NewInt64Field(500),
		}},
		{"orders", map[string]types.Field{
			"id": types.NewInt64Field(10), "customer_id": types.NewInt64Field(1),
			"total_price_cents": types.NewInt64Field(0),
		}},
		{"regions", map[string]types.Field{
			"id": types.NewInt64Field(1), "country": types.NewStringField("PT"),
			"state": types.NewStringField("Lisboa"), "city": types.NewStringField("Lisbon"),
		}},
		{"stores", map[string]types.Field{
			"id": types.NewInt64Field(7), "region_id": types.NewInt64Field(1),
			"active": types.NewBoolField(true),
		}},
		{"inventory", map[string]types.Field{
			"id": types.NewInt64Field(1000), "product_id": types.NewInt64Field(1),
			"store_id": types.NewInt64Field(7), "quantity": types.NewInt64Field(3),
		}},
	}
	for _, r := range rows {
		built, err := buildRow(e, r.table, r.values)
		if err != nil {
			return err
		}
		batch.Mutations = append(batch.Mutations, mutation.NewInsert(r.table, built))
	}
	return e.Submit(batch)
}

func buildRow(e *engine.Engine, table string, values map[string]types.Field) (*row.Row, error) {
	def, err := e.Registry().Describe(table)
	if err != nil {
		return nil, err
	}
	return def.BuildRow(values)
}

func orderItem(e *engine.Engine, id, qty int64) (*row.Row, error) {
	return buildRow(e, "order_items", map[string]types.Field{
		"id": types.NewInt64Field(id), "order_id": types.NewInt64Field(10),
		"product_id": types.NewInt64Field(1), "quantity": types.NewInt64Field(qty),
		"price_cents": types.NewInt64Field(500),
	})
}

func demoOrderTotal(e *engine.Engine) error {
	item, err := orderItem(e, 100, 1)
	if err != nil {
		return err
	}
	tx := e.Begin()
	if err := tx.Stage(mutation.NewInsert("order_items", item)); err != nil {
		return err
	}
	if err := e.Commit(tx); err != nil {
		return err
	}

	confirm := e.Begin()
	defer e.Abort(confirm)
	order, ok := confirm.Get("orders", 10)
	if !ok {
		return fmt.Errorf("order 10 disappeared")
	}
	fmt.Printf("committed a line item; order total recomputed to %s cents\n",
		order.Row.Named("total_price_cents"))
	return nil
}

func demoRestrictedDelete(e *engine.Engine) error {
	tx := e.Begin()
	if err := tx.Stage(mutation.NewDelete("customers", 1)); err != nil {
		return err
	}
	err := e.Commit(tx)
	if !cerr.HasCode(err, cerr.CodeReferentialIntegrity) {
		return fmt.Errorf("expected a referential integrity rejection, got %v", err)
	}
	fmt.Printf("deleting the customer was rejected: %s\n", cerr.CodeOf(err))
	return nil
}

func demoLastUnitsRace(e *engine.Engine) error {
	// Two transactions snapshot 2 remaining units and both try to take them.
	itemA, err := orderItem(e, 101, 2)
	if err != nil {
		return err
	}
	itemB, err := orderItem(e, 102, 2)
	if err != nil {
		return err
	}

	txA, txB := e.Begin(), e.Begin()
	if err := txA.Stage(mutation.NewInsert("order_items", itemA)); err != nil {
		return err
	}
	if err := txA.StageFulfillment(mutation.Fulfillment{ItemTable: "order_items", ItemKey: 101, StoreKey: 7}); err != nil {
		return err
	}
	if err := txB.Stage(mutation.NewInsert("order_items", itemB)); err != nil {
		return err
	}
	if err := txB.StageFulfillment(mutation.Fulfillment{ItemTable: "order_items", ItemKey: 102, StoreKey: 7}); err != nil {
		return err
	}

	results := make(chan error, 2)
	var g errgroup.Group
	g.Go(func() error { results <- e.Commit(txA); return nil })
	g.Go(func() error { results <- e.Commit(txB); return nil })
	if err := g.Wait(); err != nil {
		return err
	}
	close(results)

	committed, conflicted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			committed++
		case cerr.HasCode(err, cerr.CodeConcurrencyConflict):
			conflicted++
		default:
			return err
		}
	}
	fmt.Printf("last-units race: %d transaction committed, %d hit %s\n",
		committed, conflicted, cerr.CodeConcurrencyConflict)
	return nil
}

func demoJoinPath(e *engine.Engine) error {
	it, err := e.Resolve(query.Path{
		From: "inventory",
		Hops: []query.Hop{{Edge: "store_id"}, {Edge: "region_id"}},
	})
	if err != nil {
		return err
	}
	if err := it.Open(); err != nil {
		return err
	}
	defer it.Close()

	fmt.Println("inventory joined through store to region:")
	for {
		hasNext, err := it.HasNext()
		if err != nil {
			return err
		}
		if !hasNext {
			return nil
		}
		joined, err := it.Next()
		if err != nil {
			return err
		}
		fmt.Printf("  product %s at store %s (%s): %s units\n",
			joined.Named("inventory.product_id"), joined.Named("stores.id"),
			joined.Named("regions.city"), joined.Named("inventory.quantity"))
	}
}
