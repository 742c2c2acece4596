package query

import (
	"relcore/pkg/cerr"
	"relcore/pkg/row"
	"relcore/pkg/schema"
	"relcore/pkg/store"
)

const component = "QueryRouter"

// step is a resolved position along a path: the table at that position and
// the filters its rows must pass. Steps after the first also carry the edge
// column on the previous table that leads here.
type step struct {
	table   string
	desc    *row.Descriptor
	edge    string
	filters []Filter
}

// Router resolves join paths over committed state. It never participates in
// transactions; every Resolve call reads a fresh snapshot, so re-evaluating
// a path observes everything committed since the last evaluation.
type Router struct {
	reg   *schema.Registry
	store *store.Store
}

func NewRouter(reg *schema.Registry, st *store.Store) *Router {
	return &Router{reg: reg, store: st}
}

// Resolve checks the path against the registry and returns a lazy iterator
// of joined rows over the latest committed snapshot. The iterator is finite
// and restartable; Rewind replays the same snapshot, while a new Resolve
// call picks up later commits.
func (r *Router) Resolve(p Path) (*PathIterator, error) {
	steps, err := r.plan(p)
	if err != nil {
		return nil, err
	}

	desc, err := combinedDescriptor(steps)
	if err != nil {
		return nil, err
	}
	return newPathIterator(r.store.Snapshot(), steps, desc), nil
}

func (r *Router) plan(p Path) ([]step, error) {
	if p.From == "" {
		return nil, cerr.New(cerr.CategoryUser, cerr.CodeInvalidQuery,
			"path has no starting table").WithOperation("Resolve").WithComponent(component)
	}

	from, err := r.reg.Describe(p.From)
	if err != nil {
		return nil, err
	}

	steps := []step{{table: p.From, desc: from.Descriptor(), filters: p.Filters}}
	current := from
	for _, hop := range p.Hops {
		fk, err := r.reg.EdgeFrom(current.Name, hop.Edge)
		if err != nil {
			return nil, err
		}
		next, err := r.reg.Describe(fk.RefTable)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step{
			table: next.Name, desc: next.Descriptor(), edge: hop.Edge, filters: hop.Filters,
		})
		current = next
	}

	for _, s := range steps {
		if err := checkFilters(s); err != nil {
			return nil, err
		}
	}
	return steps, nil
}

func checkFilters(s step) error {
	for _, f := range s.filters {
		idx := s.desc.IndexOf(f.Column)
		if idx < 0 {
			return cerr.Newf(cerr.CategoryUser, cerr.CodeInvalidQuery,
				"filter references an unknown column", "%s.%s", s.table, f.Column).
				WithOperation("Resolve").WithComponent(component)
		}
		if f.Value == nil {
			return cerr.Newf(cerr.CategoryUser, cerr.CodeInvalidQuery,
				"filter has no comparison value", "%s.%s", s.table, f.Column).
				WithOperation("Resolve").WithComponent(component)
		}
		colType, err := s.desc.TypeAt(idx)
		if err != nil {
			return err
		}
		if f.Value.Type() != colType {
			return cerr.Newf(cerr.CategoryUser, cerr.CodeInvalidQuery,
				"filter value type does not match the column",
				"%s.%s is %s, filter value is %s", s.table, f.Column, colType, f.Value.Type()).
				WithOperation("Resolve").WithComponent(component)
		}
	}
	return nil
}

// combinedDescriptor qualifies column names with their table ("table.column")
// as soon as the path joins more than one table. A single-step path keeps the
// table's bare column names.
func combinedDescriptor(steps []step) (*row.Descriptor, error) {
	desc := steps[0].desc
	for i := 1; i < len(steps); i++ {
		combined, err := row.Combine(steps[0].table, desc, steps[i].table, steps[i].desc)
		if err != nil {
			return nil, err
		}
		desc = combined
	}
	return desc, nil
}
