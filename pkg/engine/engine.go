package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"relcore/pkg/cerr"
	"relcore/pkg/logging"
	"relcore/pkg/mutation"
	"relcore/pkg/query"
	"relcore/pkg/schema"
	"relcore/pkg/store"
	"relcore/pkg/txn"
)

// Engine wires the consistency core together: one schema registry, one
// committed store, the transaction coordinator driving the commit pipeline,
// and the read-side query router. It is the single entry point callers are
// expected to hold.
type Engine struct {
	reg    *schema.Registry
	store  *store.Store
	coord  *txn.Coordinator
	router *query.Router
	log    *slog.Logger

	stats *Stats
}

// Stats tracks engine-level counters.
type Stats struct {
	mu           sync.RWMutex
	Transactions int64
	Commits      int64
	Aborts       int64
	Conflicts    int64
	Queries      int64
}

// Info is a point-in-time summary of the engine's state.
type Info struct {
	Tables       []string
	RowCounts    map[string]int
	ActiveTxns   int
	Transactions int64
	Commits      int64
	Aborts       int64
	Conflicts    int64
	Queries      int64
}

// New builds an engine over an already validated registry.
func New(reg *schema.Registry) *Engine {
	st := store.NewStore(reg)
	return &Engine{
		reg:    reg,
		store:  st,
		coord:  txn.NewCoordinator(reg, st),
		router: query.NewRouter(reg, st),
		log:    logging.WithComponent("Engine"),
		stats:  &Stats{},
	}
}

// Open parses a YAML schema document and builds an engine for it. An empty
// document falls back to the embedded demo retail schema.
func Open(schemaYAML []byte) (*Engine, error) {
	if len(schemaYAML) == 0 {
		schemaYAML = schema.DemoSchemaYAML()
	}
	reg, err := schema.LoadYAML(schemaYAML)
	if err != nil {
		return nil, err
	}
	return New(reg), nil
}

// Registry exposes the engine's schema registry. It is immutable and safe to
// share.
func (e *Engine) Registry() *schema.Registry {
	return e.reg
}

// Begin opens a transaction against a snapshot of the committed state.
func (e *Engine) Begin() *txn.Transaction {
	tx := e.coord.Begin()
	e.stats.mu.Lock()
	e.stats.Transactions++
	e.stats.mu.Unlock()

	e.log.Debug("transaction opened", "txn", tx.ID().String())
	return tx
}

// Transaction looks up an active transaction by handle.
func (e *Engine) Transaction(id uuid.UUID) (*txn.Transaction, error) {
	return e.coord.Get(id)
}

// Commit runs the full commit pipeline for the transaction.
func (e *Engine) Commit(tx *txn.Transaction) error {
	mutations, fulfillments := tx.Pending()
	err := e.coord.Commit(tx)

	e.stats.mu.Lock()
	switch {
	case err == nil:
		e.stats.Commits++
	case cerr.HasCode(err, cerr.CodeConcurrencyConflict):
		e.stats.Conflicts++
		e.stats.Aborts++
	default:
		e.stats.Aborts++
	}
	e.stats.mu.Unlock()

	if err != nil {
		logging.WithError(err).Warn("transaction aborted",
			"txn", tx.ID().String(), "code", cerr.CodeOf(err))
		return err
	}
	e.log.Info("transaction committed",
		"txn", tx.ID().String(), "mutations", mutations, "fulfillments", fulfillments)
	return nil
}

// Abort discards a transaction's staged work.
func (e *Engine) Abort(tx *txn.Transaction) error {
	if err := e.coord.Abort(tx); err != nil {
		return err
	}
	e.stats.mu.Lock()
	e.stats.Aborts++
	e.stats.mu.Unlock()

	e.log.Debug("transaction aborted by caller", "txn", tx.ID().String())
	return nil
}

// Submit stages a whole batch in one transaction and commits it. Convenience
// for callers that have no interleaved reads.
func (e *Engine) Submit(batch *mutation.Batch) error {
	tx := e.Begin()
	for _, m := range batch.Mutations {
		if err := tx.Stage(m); err != nil {
			e.Abort(tx)
			return err
		}
	}
	for _, f := range batch.Fulfillments {
		if err := tx.StageFulfillment(f); err != nil {
			e.Abort(tx)
			return err
		}
	}
	return e.Commit(tx)
}

// Resolve evaluates a join path against the latest committed snapshot.
func (e *Engine) Resolve(p query.Path) (*query.PathIterator, error) {
	it, err := e.router.Resolve(p)
	if err != nil {
		return nil, err
	}
	e.stats.mu.Lock()
	e.stats.Queries++
	e.stats.mu.Unlock()
	return it, nil
}

// CommitWithRetry runs stage inside a fresh transaction and commits,
// retrying on concurrency conflicts with exponential backoff. Every retry
// starts over: new transaction, new snapshot, stage re-run. Any other error,
// a staging failure, or context cancellation stops the loop.
func (e *Engine) CommitWithRetry(ctx context.Context, attempts int, stage func(tx *txn.Transaction) error) error {
	if attempts < 1 {
		attempts = 1
	}

	backoff := 2 * time.Millisecond
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		tx := e.Begin()
		if stageErr := stage(tx); stageErr != nil {
			e.Abort(tx)
			return stageErr
		}

		err = e.Commit(tx)
		if err == nil || !cerr.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		e.log.Debug("retrying after conflict",
			"attempt", attempt, "backoff", backoff.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// Info reports table row counts and lifetime counters.
func (e *Engine) Info() Info {
	snap := e.store.Snapshot()
	counts := make(map[string]int)
	tables := e.reg.Tables()
	for _, name := range tables {
		counts[name] = snap.Count(name)
	}

	e.stats.mu.RLock()
	defer e.stats.mu.RUnlock()
	return Info{
		Tables:       tables,
		RowCounts:    counts,
		ActiveTxns:   e.coord.ActiveCount(),
		Transactions: e.stats.Transactions,
		Commits:      e.stats.Commits,
		Aborts:       e.stats.Aborts,
		Conflicts:    e.stats.Conflicts,
		Queries:      e.stats.Queries,
	}
}
