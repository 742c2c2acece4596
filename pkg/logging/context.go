package logging

import (
	"log/slog"

	"github.com/google/uuid"
)

// WithTxn returns a logger carrying the transaction handle.
//
//	log := logging.WithTxn(tx.ID())
//	log.Info("commit started", "mutations", n)
func WithTxn(id uuid.UUID) *slog.Logger {
	return GetLogger().With("txn", id.String())
}

// WithTable returns a logger carrying the table name. Use it for registry
// and validation operations scoped to one table.
func WithTable(table string) *slog.Logger {
	return GetLogger().With("table", table)
}

// WithComponent returns a logger carrying the subsystem name.
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithError returns a logger carrying the error in structured form.
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
