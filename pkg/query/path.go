package query

import (
	"relcore/pkg/primitives"
	"relcore/pkg/types"
)

// Filter restricts one step of a path to rows whose column satisfies the
// predicate. Column names are the bare names of that step's table.
type Filter struct {
	Column string
	Op     primitives.Predicate
	Value  types.Field
}

// Hop follows the foreign-key edge declared on Edge, a column of the current
// table, into the table it references. Filters apply to the referenced row.
type Hop struct {
	Edge    string
	Filters []Filter
}

// Path describes a read-side join: start at From, optionally filtered, then
// follow each hop's foreign-key edge in order.
//
//	Path{From: "inventory", Hops: []Hop{{Edge: "store_id"}, {Edge: "region_id"}}}
//
// walks Inventory -> Store -> Region.
type Path struct {
	From    string
	Filters []Filter
	Hops    []Hop
}

// Equal is shorthand for an equality filter.
func Equal(column string, value types.Field) Filter {
	return Filter{Column: column, Op: primitives.Equals, Value: value}
}
