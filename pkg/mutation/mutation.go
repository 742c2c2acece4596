package mutation

import (
	"fmt"

	"relcore/pkg/primitives"
	"relcore/pkg/row"
)

// Op identifies the kind of a table mutation.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "INSERT"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Mutation is a single proposed change to one row of one table.
//
//   - OpInsert carries the new Row; Key is the row's primary key value.
//   - OpUpdate carries the full replacement Row for the row identified by Key.
//   - OpDelete carries only Key.
type Mutation struct {
	Table string
	Op    Op
	Key   primitives.RowKey
	Row   *row.Row
}

// NewInsert builds an insert mutation. The key is read from the row's primary
// key column by the staging layer.
func NewInsert(table string, r *row.Row) Mutation {
	return Mutation{Table: table, Op: OpInsert, Row: r}
}

// NewUpdate builds an update mutation replacing the row identified by key.
func NewUpdate(table string, key primitives.RowKey, r *row.Row) Mutation {
	return Mutation{Table: table, Op: OpUpdate, Key: key, Row: r}
}

// NewDelete builds a delete mutation for the row identified by key.
func NewDelete(table string, key primitives.RowKey) Mutation {
	return Mutation{Table: table, Op: OpDelete, Key: key}
}

func (m Mutation) String() string {
	return fmt.Sprintf("%s %s key=%d", m.Op, m.Table, m.Key)
}

// Fulfillment is the logical "fulfill order item" event layered on top of raw
// table mutations: committing it depletes stock for the item's product at the
// given store.
type Fulfillment struct {
	ItemTable string
	ItemKey   primitives.RowKey
	StoreKey  primitives.RowKey
}

func (f Fulfillment) String() string {
	return fmt.Sprintf("FULFILL %s key=%d store=%d", f.ItemTable, f.ItemKey, f.StoreKey)
}

// Batch is the ordered set of mutations and fulfillment events staged by one
// transaction.
type Batch struct {
	Mutations    []Mutation
	Fulfillments []Fulfillment
}

// Empty reports whether the batch stages nothing.
func (b *Batch) Empty() bool {
	return len(b.Mutations) == 0 && len(b.Fulfillments) == 0
}
