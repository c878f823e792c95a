// Package indexer watches the append-only event log from the outside and
// republishes its records as typed events. A Monitor polls a Source for new
// positions, decodes each record, and hands it to the subscribers registered
// before Start; HistoricalQuery serves one-shot range reads over the same
// feed without touching the live cursor.
//
// The monitor holds no ledger state and never writes to the log. Several
// monitors may watch the same log independently; each keeps its own cursor.
package indexer

import (
	"context"
	"errors"

	"github.com/agentledger/agentledger/internal/ledger/model"
)

// ErrAlreadyRunning is returned by Start while the monitor is polling.
var ErrAlreadyRunning = errors.New("monitor already running")

// Source is the record feed a monitor polls. It is satisfied by the ledger's
// event log directly and by the HTTP client when the monitor runs as a
// separate process.
type Source interface {
	CurrentTip(ctx context.Context) (uint64, error)
	ReadRange(ctx context.Context, from, to uint64) ([]model.Record, error)
}

// State is the monitor's lifecycle state.
type State string

const (
	// StateIdle means the monitor is not polling.
	StateIdle State = "idle"
	// StatePolling means the poll loop is healthy.
	StatePolling State = "polling"
	// StateFaulted means the last poll failed; the loop retries with capped
	// backoff and returns to polling on the next success.
	StateFaulted State = "faulted"
)

// Start tells the monitor where to seed its cursor.
type Start struct {
	latest bool
	pos    uint64
}

// From seeds the cursor at pos, so delivery begins with position pos+1.
// From(0) replays the whole log.
func From(pos uint64) Start { return Start{pos: pos} }

// Latest seeds the cursor at the log's current tip, skipping history.
var Latest = Start{latest: true}
