package query

import (
	"fmt"

	"relcore/pkg/primitives"
	"relcore/pkg/row"
	"relcore/pkg/store"
)

// PathIterator walks a resolved path lazily, producing one combined row per
// starting row whose full chain of hops exists and passes every filter.
// Rows come out in ascending key order of the starting table.
//
// The usual lifecycle applies: Open before use, HasNext/Next to drain,
// Rewind to replay from the start, Close when done.
type PathIterator struct {
	view  store.View
	steps []step
	desc  *row.Descriptor

	keys   []primitives.RowKey
	pos    int
	next   *row.Row
	opened bool
}

func newPathIterator(view store.View, steps []step, desc *row.Descriptor) *PathIterator {
	return &PathIterator{view: view, steps: steps, desc: desc}
}

// Descriptor returns the shape of the rows this iterator produces. Columns
// are qualified "table.column" when the path joins more than one table.
func (it *PathIterator) Descriptor() *row.Descriptor {
	return it.desc
}

// Open materializes the starting table's keys from the snapshot. Opening an
// already open iterator is a no-op.
func (it *PathIterator) Open() error {
	if it.opened {
		return nil
	}

	it.keys = it.keys[:0]
	it.view.Scan(it.steps[0].table, func(vr *row.Versioned) bool {
		it.keys = append(it.keys, vr.Key)
		return true
	})
	it.pos = 0
	it.next = nil
	it.opened = true
	return nil
}

// HasNext reports whether another joined row is available, caching it for
// the following Next call.
func (it *PathIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, fmt.Errorf("iterator is not open")
	}
	if it.next != nil {
		return true, nil
	}

	for it.pos < len(it.keys) {
		key := it.keys[it.pos]
		it.pos++

		combined, ok, err := it.resolveRow(key)
		if err != nil {
			return false, err
		}
		if ok {
			it.next = combined
			return true, nil
		}
	}
	return false, nil
}

// Next returns the joined row cached by HasNext.
func (it *PathIterator) Next() (*row.Row, error) {
	hasNext, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !hasNext {
		return nil, fmt.Errorf("no more rows in path iterator")
	}

	out := it.next
	it.next = nil
	return out, nil
}

// Rewind replays the iterator over the same snapshot.
func (it *PathIterator) Rewind() error {
	if !it.opened {
		return fmt.Errorf("iterator is not open")
	}
	it.pos = 0
	it.next = nil
	return nil
}

// Close releases the iterator. It is safe to call more than once.
func (it *PathIterator) Close() error {
	it.opened = false
	it.keys = nil
	it.next = nil
	return nil
}

// resolveRow follows every hop from one starting key. A missing hop target
// or a failed filter drops the row.
func (it *PathIterator) resolveRow(key primitives.RowKey) (*row.Row, bool, error) {
	start, ok := it.view.Get(it.steps[0].table, key)
	if !ok {
		return nil, false, nil
	}

	raw := make([]*row.Row, len(it.steps))
	raw[0] = start.Row
	pass, err := matches(start.Row, it.steps[0].filters)
	if err != nil || !pass {
		return nil, false, err
	}

	for i := 1; i < len(it.steps); i++ {
		ref := raw[i-1].KeyAt(it.steps[i].edge)
		target, ok := it.view.Get(it.steps[i].table, ref)
		if !ok {
			return nil, false, nil
		}
		pass, err := matches(target.Row, it.steps[i].filters)
		if err != nil || !pass {
			return nil, false, err
		}
		raw[i] = target.Row
	}

	combined := raw[0]
	for i := 1; i < len(raw); i++ {
		joined, err := row.CombineRows(it.steps[0].table, combined, it.steps[i].table, raw[i])
		if err != nil {
			return nil, false, err
		}
		combined = joined
	}
	return combined, true, nil
}

func matches(r *row.Row, filters []Filter) (bool, error) {
	for _, f := range filters {
		field := r.Named(f.Column)
		if field == nil {
			return false, nil
		}
		ok, err := field.Compare(f.Op, f.Value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
