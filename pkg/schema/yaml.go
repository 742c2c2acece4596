package schema

import (
	"os"

	"gopkg.in/yaml.v3"

	"relcore/pkg/cerr"
	"relcore/pkg/types"
)

// The YAML schema document. This is the declarative form the registry is
// built from at startup; see demo_schema.yaml for a complete example.

type yamlDoc struct {
	Tables     []yamlTable    `yaml:"tables"`
	Aggregates yamlAggregates `yaml:"aggregates"`
}

type yamlTable struct {
	Name        string          `yaml:"name"`
	PrimaryKey  string          `yaml:"primary_key"`
	Columns     []yamlColumn    `yaml:"columns"`
	ForeignKeys []yamlFK        `yaml:"foreign_keys,omitempty"`
	Unique      [][]string      `yaml:"unique,omitempty"`
	DateRanges  []yamlDateRange `yaml:"date_ranges,omitempty"`
}

type yamlColumn struct {
	Name   string   `yaml:"name"`
	Type   string   `yaml:"type"`
	Check  string   `yaml:"check,omitempty"`
	Values []string `yaml:"values,omitempty"`
}

type yamlFK struct {
	Column     string `yaml:"column"`
	References string `yaml:"references"`
	OnDelete   string `yaml:"on_delete,omitempty"`
}

type yamlDateRange struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type yamlAggregates struct {
	Totals     []yamlTotal     `yaml:"totals,omitempty"`
	Depletions []yamlDepletion `yaml:"depletions,omitempty"`
}

type yamlTotal struct {
	ItemTable       string `yaml:"item_table"`
	ParentKeyColumn string `yaml:"parent_key_column"`
	ParentTable     string `yaml:"parent_table"`
	TotalColumn     string `yaml:"total_column"`
	PriceColumn     string `yaml:"price_column"`
	QuantityColumn  string `yaml:"quantity_column"`
}

type yamlDepletion struct {
	ItemTable           string `yaml:"item_table"`
	StockTable          string `yaml:"stock_table"`
	ItemProductColumn   string `yaml:"item_product_column"`
	StockProductColumn  string `yaml:"stock_product_column"`
	StockStoreColumn    string `yaml:"stock_store_column"`
	ItemQuantityColumn  string `yaml:"item_quantity_column"`
	StockQuantityColumn string `yaml:"stock_quantity_column"`
}

// LoadYAML parses a schema document and builds the registry from it.
func LoadYAML(data []byte) (*Registry, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cerr.Wrap(err, cerr.CodeInvalidSchema, "LoadYAML", "SchemaRegistry")
	}

	builder := NewBuilder()

	for _, yt := range doc.Tables {
		columns := make([]Column, 0, len(yt.Columns))
		for _, yc := range yt.Columns {
			col, err := columnFromYAML(yt.Name, yc)
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
		}

		fks := make([]ForeignKey, 0, len(yt.ForeignKeys))
		for _, yfk := range yt.ForeignKeys {
			policy, err := policyFromYAML(yt.Name, yfk)
			if err != nil {
				return nil, err
			}
			fks = append(fks, ForeignKey{
				Column:   yfk.Column,
				RefTable: yfk.References,
				OnDelete: policy,
			})
		}

		ranges := make([]DateRange, 0, len(yt.DateRanges))
		for _, yr := range yt.DateRanges {
			ranges = append(ranges, DateRange{StartColumn: yr.Start, EndColumn: yr.End})
		}

		builder.AddTable(yt.Name, columns, yt.PrimaryKey, fks, yt.Unique, ranges)
	}

	for _, yt := range doc.Aggregates.Totals {
		builder.AddTotalRule(TotalRule{
			ItemTable:       yt.ItemTable,
			ParentKeyColumn: yt.ParentKeyColumn,
			ParentTable:     yt.ParentTable,
			TotalColumn:     yt.TotalColumn,
			PriceColumn:     yt.PriceColumn,
			QuantityColumn:  yt.QuantityColumn,
		})
	}
	for _, yd := range doc.Aggregates.Depletions {
		builder.AddDepletionRule(DepletionRule{
			ItemTable:           yd.ItemTable,
			StockTable:          yd.StockTable,
			ItemProductColumn:   yd.ItemProductColumn,
			StockProductColumn:  yd.StockProductColumn,
			StockStoreColumn:    yd.StockStoreColumn,
			ItemQuantityColumn:  yd.ItemQuantityColumn,
			StockQuantityColumn: yd.StockQuantityColumn,
		})
	}

	return builder.Build()
}

// LoadFile reads a schema document from disk and builds the registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.CodeInvalidSchema, "LoadFile", "SchemaRegistry")
	}
	return LoadYAML(data)
}

// DumpYAML renders the registry back into its YAML document form, as used by
// the schema inspection command.
func DumpYAML(r *Registry) ([]byte, error) {
	doc := yamlDoc{}

	for _, name := range r.Tables() {
		t := r.tables[name]

		yt := yamlTable{
			Name:       t.Name,
			PrimaryKey: t.PrimaryKey,
			Unique:     t.UniqueKeys,
		}
		for _, col := range t.Columns {
			yc := yamlColumn{Name: col.Name, Type: col.Type.String()}
			if col.Check != CheckNone {
				yc.Check = col.Check.String()
				yc.Values = col.EnumValues
			}
			yt.Columns = append(yt.Columns, yc)
		}
		for _, fk := range t.ForeignKeys {
			yt.ForeignKeys = append(yt.ForeignKeys, yamlFK{
				Column:     fk.Column,
				References: fk.RefTable,
				OnDelete:   fk.OnDelete.String(),
			})
		}
		for _, dr := range t.DateRanges {
			yt.DateRanges = append(yt.DateRanges, yamlDateRange{Start: dr.StartColumn, End: dr.EndColumn})
		}
		doc.Tables = append(doc.Tables, yt)
	}

	for _, rule := range r.totals {
		doc.Aggregates.Totals = append(doc.Aggregates.Totals, yamlTotal{
			ItemTable:       rule.ItemTable,
			ParentKeyColumn: rule.ParentKeyColumn,
			ParentTable:     rule.ParentTable,
			TotalColumn:     rule.TotalColumn,
			PriceColumn:     rule.PriceColumn,
			QuantityColumn:  rule.QuantityColumn,
		})
	}
	for _, rule := range r.depletions {
		doc.Aggregates.Depletions = append(doc.Aggregates.Depletions, yamlDepletion{
			ItemTable:           rule.ItemTable,
			StockTable:          rule.StockTable,
			ItemProductColumn:   rule.ItemProductColumn,
			StockProductColumn:  rule.StockProductColumn,
			StockStoreColumn:    rule.StockStoreColumn,
			ItemQuantityColumn:  rule.ItemQuantityColumn,
			StockQuantityColumn: rule.StockQuantityColumn,
		})
	}

	return yaml.Marshal(&doc)
}

func columnFromYAML(table string, yc yamlColumn) (Column, error) {
	typ, ok := types.TypeFromName(yc.Type)
	if !ok {
		return Column{}, invalidSchema("table %q: column %q has unknown type %q", table, yc.Name, yc.Type)
	}

	col := Column{Name: yc.Name, Type: typ}
	switch yc.Check {
	case "":
		col.Check = CheckNone
	case "non_negative":
		col.Check = CheckNonNegative
	case "positive":
		col.Check = CheckPositive
	case "enum":
		col.Check = CheckEnum
		col.EnumValues = yc.Values
	default:
		return Column{}, invalidSchema("table %q: column %q has unknown check %q", table, yc.Name, yc.Check)
	}
	return col, nil
}

func policyFromYAML(table string, yfk yamlFK) (DeletePolicy, error) {
	switch yfk.OnDelete {
	case "", "restrict":
		return DeleteRestrict, nil
	case "cascade":
		return DeleteCascade, nil
	default:
		return DeleteRestrict, invalidSchema("table %q: foreign key %q has unknown on_delete %q",
			table, yfk.Column, yfk.OnDelete)
	}
}
