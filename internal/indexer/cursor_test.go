package indexer_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/agentledger/agentledger/internal/indexer"
	"github.com/agentledger/agentledger/internal/ledger/model"
	"go.uber.org/zap"
)

func openStore(t *testing.T, path string) *indexer.CursorStore {
	t.Helper()
	store, err := indexer.OpenCursorStore(path)
	if err != nil {
		t.Fatalf("open cursor store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCursorStore_loadMissing(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "cursors.db"))

	_, ok, err := store.Load(ctx, "monitor")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Error("expected no cursor for a fresh store")
	}
}

func TestCursorStore_saveAndLoad(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "cursors.db"))

	if err := store.Save(ctx, "monitor", 42); err != nil {
		t.Fatalf("save: %v", err)
	}
	pos, ok, err := store.Load(ctx, "monitor")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok || pos != 42 {
		t.Errorf("load: got (%d, %v), want (42, true)", pos, ok)
	}

	// Saving again overwrites.
	if err := store.Save(ctx, "monitor", 99); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	pos, _, err = store.Load(ctx, "monitor")
	if err != nil {
		t.Fatalf("load after overwrite: %v", err)
	}
	if pos != 99 {
		t.Errorf("overwritten cursor: got %d, want 99", pos)
	}
}

func TestCursorStore_namesAreIndependent(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "cursors.db"))

	if err := store.Save(ctx, "a", 10); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := store.Save(ctx, "b", 20); err != nil {
		t.Fatalf("save b: %v", err)
	}

	posA, _, _ := store.Load(ctx, "a")
	posB, _, _ := store.Load(ctx, "b")
	if posA != 10 || posB != 20 {
		t.Errorf("cursors: got a=%d b=%d, want 10 and 20", posA, posB)
	}
}

func TestCursorStore_survivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.db")

	store, err := indexer.OpenCursorStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Save(ctx, "monitor", 7); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openStore(t, path)
	pos, ok, err := reopened.Load(ctx, "monitor")
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if !ok || pos != 7 {
		t.Errorf("persisted cursor: got (%d, %v), want (7, true)", pos, ok)
	}
}

// A monitor wired to a store persists its cursor after each batch, and a
// replacement monitor seeded from the store resumes without redelivering.
func TestMonitor_cursorPersistenceRoundTrip(t *testing.T) {
	log := seedLog(t)
	store := openStore(t, filepath.Join(t.TempDir(), "cursors.db"))

	first := indexer.NewMonitor(log, zap.NewNop())
	first.SetCursorStore(store, "monitor")

	var col collector
	first.OnAny(col.collect)

	if err := first.Start(indexer.From(0), 5*time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitUntil(t, "backlog delivered", func() bool { return col.count() == 5 })
	waitUntil(t, "cursor persisted", func() bool {
		pos, ok, err := store.Load(ctx, "monitor")
		return err == nil && ok && pos == 5
	})
	first.Stop()

	if _, err := log.Append(ctx, model.MessageSent{MessageID: 1, SenderID: 0, ReceiverID: 1, Body: "after restart"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	pos, ok, err := store.Load(ctx, "monitor")
	if err != nil || !ok {
		t.Fatalf("load cursor: pos=%d ok=%v err=%v", pos, ok, err)
	}

	second := indexer.NewMonitor(log, zap.NewNop())
	second.SetCursorStore(store, "monitor")

	var tail collector
	second.OnAny(tail.collect)

	if err := second.Start(indexer.From(pos), 5*time.Millisecond); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer second.Stop()

	waitUntil(t, "only the tail delivered", func() bool { return tail.count() == 1 })
	if got := tail.records()[0].Position; got != 6 {
		t.Errorf("resumed delivery: position %d, want 6", got)
	}
}
