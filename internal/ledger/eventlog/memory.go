package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentledger/agentledger/internal/ledger/model"
)

// MemoryLog is an in-memory, thread-safe Log implementation. It is primarily
// useful for testing and for single-process deployments that do not require
// durable persistence across restarts.
type MemoryLog struct {
	mu      sync.RWMutex
	records []model.Record
}

// NewMemoryLog creates an empty MemoryLog. The first appended record will
// receive position 1 and chain from GenesisHash.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append implements Log. The batch is hashed and staged before the slice is
// touched, so a marshal failure leaves the log unchanged.
func (l *MemoryLog) Append(_ context.Context, events ...model.Event) ([]model.Record, error) {
	if len(events) == 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := GenesisHash
	if n := len(l.records); n > 0 {
		prevHash = l.records[n-1].Hash
	}
	now := time.Now().UTC().Truncate(time.Microsecond)

	batch := make([]model.Record, 0, len(events))
	for i, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", ev.EventKind(), err)
		}
		rec := model.Record{
			Position:  uint64(len(l.records)+i) + 1,
			Kind:      ev.EventKind(),
			Timestamp: now,
			Payload:   payload,
			PrevHash:  prevHash,
		}
		rec.Hash = hashRecord(&rec)
		batch = append(batch, rec)
		prevHash = rec.Hash
	}

	l.records = append(l.records, batch...)
	return batch, nil
}

// ReadRange implements Log.
func (l *MemoryLog) ReadRange(_ context.Context, from, to uint64) ([]model.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if from == 0 {
		from = 1
	}
	if tip := uint64(len(l.records)); to > tip {
		to = tip
	}
	if from > to {
		return nil, nil
	}

	out := make([]model.Record, to-from+1)
	copy(out, l.records[from-1:to])
	return out, nil
}

// CurrentTip implements Log.
func (l *MemoryLog) CurrentTip(_ context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.records)), nil
}

// Verify implements Log. It walks the chain and checks that positions are
// dense from 1 and that every hash is consistent with its predecessor.
func (l *MemoryLog) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prevHash := GenesisHash
	for i := range l.records {
		curr := &l.records[i]
		if curr.Position != uint64(i)+1 {
			return fmt.Errorf("position gap: record %d has position %d", i+1, curr.Position)
		}
		if curr.PrevHash != prevHash {
			return fmt.Errorf("hash chain broken at position %d", curr.Position)
		}
		if curr.Hash != hashRecord(curr) {
			return fmt.Errorf("record %d has invalid hash", curr.Position)
		}
		prevHash = curr.Hash
	}
	return nil
}

// Root implements Log.
func (l *MemoryLog) Root(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) == 0 {
		return GenesisHash, nil
	}
	return l.records[len(l.records)-1].Hash, nil
}
