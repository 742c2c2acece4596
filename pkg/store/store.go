package store

import (
	"slices"
	"sync"

	"relcore/pkg/cerr"
	"relcore/pkg/primitives"
	"relcore/pkg/row"
	"relcore/pkg/schema"
)

// Store holds the committed state: one row set per registered table, keyed by
// primary key, with a version stamp per row. It stands in for the durable
// table store beneath the core; everything above it sees only snapshots and
// atomic batch commits.
//
// Committed rows are immutable values. A snapshot is therefore a shallow copy
// of the per-table maps, taken under the store lock, and stays consistent no
// matter what commits afterwards.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[primitives.RowKey]*row.Versioned

	// High-water mark per table for surrogate key allocation. Only ever
	// increases, so deleted keys are never handed out again.
	nextKey map[string]primitives.RowKey

	// Last version stamp of deleted rows, so a key explicitly re-inserted
	// after a delete continues its version sequence instead of restarting.
	tombstones map[string]map[primitives.RowKey]primitives.Version
}

// Write is one row change applied at commit. A nil Row deletes the key.
type Write struct {
	Table string
	Key   primitives.RowKey
	Row   *row.Row
}

// Expectation records the version stamp a transaction observed for a row.
// Commit fails with a concurrency conflict when the committed stamp differs.
type Expectation struct {
	Table   string
	Key     primitives.RowKey
	Version primitives.Version
}

// NewStore creates an empty committed store for the registry's tables.
func NewStore(reg *schema.Registry) *Store {
	tables := make(map[string]map[primitives.RowKey]*row.Versioned)
	nextKey := make(map[string]primitives.RowKey)
	for _, name := range reg.Tables() {
		tables[name] = make(map[primitives.RowKey]*row.Versioned)
		nextKey[name] = 1
	}
	return &Store{
		tables:     tables,
		nextKey:    nextKey,
		tombstones: make(map[string]map[primitives.RowKey]primitives.Version),
	}
}

// Snapshot returns a consistent view of the committed state as of now.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables := make(map[string]map[primitives.RowKey]*row.Versioned, len(s.tables))
	for name, rows := range s.tables {
		copied := make(map[primitives.RowKey]*row.Versioned, len(rows))
		for key, vr := range rows {
			copied[key] = vr
		}
		tables[name] = copied
	}
	return &Snapshot{tables: tables}
}

// NextKey allocates a fresh surrogate key for the table. Allocation is
// monotonic; keys of deleted rows are never reused.
func (s *Store) NextKey(table string) primitives.RowKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.nextKey[table]
	if key < 1 {
		key = 1
	}
	s.nextKey[table] = key + 1
	return key
}

// Commit applies a batch atomically under the store's exclusive lock.
//
// The sequence is: check every version expectation against the committed
// stamps, then hand the caller a view of the current committed state to
// finalize its writes (commit-time re-validation and aggregate maintenance
// happen there), then apply the returned writes with advanced version stamps.
// Any error leaves the committed state untouched.
func (s *Store) Commit(expectations []Expectation, finalize func(current View) ([]Write, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, exp := range expectations {
		current := primitives.ZeroVersion
		if rows, ok := s.tables[exp.Table]; ok {
			if vr, ok := rows[exp.Key]; ok {
				current = vr.Version
			}
		}
		if current != exp.Version {
			return cerr.Newf(cerr.CategoryConcurrency, cerr.CodeConcurrencyConflict,
				"row version stamp moved since the transaction began",
				"%s key=%d: read %s, committed is %s", exp.Table, exp.Key, exp.Version, current).
				WithOperation("Commit").WithComponent("Store")
		}
	}

	writes, err := finalize(lockedView{s})
	if err != nil {
		return err
	}

	for _, w := range writes {
		rows, ok := s.tables[w.Table]
		if !ok {
			return cerr.Newf(cerr.CategoryUser, cerr.CodeUnknownTable,
				"table is not registered", "no table named %q", w.Table).
				WithOperation("Commit").WithComponent("Store")
		}

		if w.Row == nil {
			if prev, ok := rows[w.Key]; ok {
				if s.tombstones[w.Table] == nil {
					s.tombstones[w.Table] = make(map[primitives.RowKey]primitives.Version)
				}
				s.tombstones[w.Table][w.Key] = prev.Version
			}
			delete(rows, w.Key)
			continue
		}

		version := primitives.ZeroVersion.Next()
		if prev, ok := rows[w.Key]; ok {
			version = prev.Version.Next()
		} else if buried, ok := s.tombstones[w.Table][w.Key]; ok {
			version = buried.Next()
		}
		rows[w.Key] = row.NewVersioned(w.Key, w.Row, version)

		if w.Key >= s.nextKey[w.Table] {
			s.nextKey[w.Table] = w.Key + 1
		}
	}
	return nil
}

// lockedView reads the live committed maps. Only valid while the store lock
// is held inside Commit.
type lockedView struct {
	s *Store
}

func (v lockedView) Get(table string, key primitives.RowKey) (*row.Versioned, bool) {
	rows, ok := v.s.tables[table]
	if !ok {
		return nil, false
	}
	vr, ok := rows[key]
	return vr, ok
}

func (v lockedView) Scan(table string, fn func(*row.Versioned) bool) {
	scanOrdered(v.s.tables[table], fn)
}

// scanOrdered visits rows in ascending key order.
func scanOrdered(rows map[primitives.RowKey]*row.Versioned, fn func(*row.Versioned) bool) {
	keys := make([]primitives.RowKey, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if !fn(rows[key]) {
			return
		}
	}
}
