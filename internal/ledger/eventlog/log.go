package eventlog

import (
	"context"

	"github.com/agentledger/agentledger/internal/ledger/model"
)

// Log is the interface for the append-only hash-chained event log.
// Both MemoryLog and PostgresLog implement this interface.
type Log interface {
	// Append atomically appends the events of one state transition: either
	// every event receives a consecutive position, in argument order, or
	// nothing is stored.
	Append(ctx context.Context, events ...model.Event) ([]model.Record, error)

	// ReadRange returns the records with from <= position <= to, clipped to
	// the current tip. A window that is empty after clipping yields no
	// records and no error.
	ReadRange(ctx context.Context, from, to uint64) ([]model.Record, error)

	// CurrentTip returns the last assigned position, 0 when the log is empty.
	CurrentTip(ctx context.Context) (uint64, error)

	// Verify walks the entire chain and checks position density and hash
	// consistency. Returns nil if the chain is intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the most recent record, or GenesisHash when
	// the log is empty.
	Root(ctx context.Context) (string, error)
}
