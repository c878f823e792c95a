package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentledger/agentledger/internal/ledger/eventlog"
	"github.com/agentledger/agentledger/internal/ledger/model"
	"github.com/agentledger/agentledger/internal/ledger/state"
	"go.uber.org/zap"
)

var ctx = context.Background()

func newMachine(t *testing.T) (*state.Machine, *eventlog.MemoryLog) {
	t.Helper()
	log := eventlog.NewMemoryLog()
	m, err := state.Replay(ctx, log, zap.NewNop())
	if err != nil {
		t.Fatalf("replay empty log: %v", err)
	}
	return m, log
}

func register(t *testing.T, m *state.Machine, name, role, submitter string) uint64 {
	t.Helper()
	id, err := m.Register(ctx, name, role, "", submitter)
	if err != nil {
		t.Fatalf("register %q: %v", name, err)
	}
	return id
}

func tip(t *testing.T, log *eventlog.MemoryLog) uint64 {
	t.Helper()
	n, err := log.CurrentTip(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestRegister_sequentialIDs(t *testing.T) {
	m, _ := newMachine(t)

	// Roles CHAT, GENERIC, and defaulted-to-GENERIC.
	for i, role := range []string{"CHAT", "GENERIC", ""} {
		prior := m.Count(ctx)
		id := register(t, m, "agent", role, "")
		if id != prior {
			t.Errorf("agent %d: id %d, want prior count %d", i, id, prior)
		}
		if got := m.Count(ctx); got != prior+1 {
			t.Errorf("agent %d: count %d, want %d", i, got, prior+1)
		}
	}

	agents := m.ListAll(ctx)
	if len(agents) != 3 {
		t.Fatalf("ListAll: got %d agents, want 3", len(agents))
	}
	if agents[1].Role != model.RoleGeneric {
		t.Errorf("agents[1].Role: got %s, want GENERIC", agents[1].Role)
	}
	for i, a := range agents {
		if a.ID != uint64(i) {
			t.Errorf("agents[%d].ID: got %d, want %d", i, a.ID, i)
		}
	}
}

func TestRegister_initialReputation(t *testing.T) {
	m, _ := newMachine(t)
	id := register(t, m, "fresh", "GENERIC", "alice")

	trust, total, positive, err := m.Reputation(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if trust != 100 || total != 0 || positive != 0 {
		t.Errorf("initial reputation: got (%d, %d, %d), want (100, 0, 0)", trust, total, positive)
	}
}

func TestRegister_invalidRole(t *testing.T) {
	m, log := newMachine(t)
	before := tip(t, log)

	_, err := m.Register(ctx, "bad", "OVERLORD", "", "alice")
	var valErr *model.ErrValidation
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if m.Count(ctx) != 0 {
		t.Errorf("count changed on failed register: %d", m.Count(ctx))
	}
	if got := tip(t, log); got != before {
		t.Errorf("log grew on failed register: tip %d, want %d", got, before)
	}
}

func TestRegister_rebindOrphansPreviousAgent(t *testing.T) {
	m, _ := newMachine(t)
	first := register(t, m, "old-self", "GENERIC", "alice")
	second := register(t, m, "new-self", "GENERIC", "alice")
	if first == second {
		t.Fatalf("expected distinct ids, got %d twice", first)
	}

	// The binding now points at the new agent; the old one survives as an
	// ownerless record.
	target := register(t, m, "receiver", "GENERIC", "bob")
	msgID, err := m.Send(ctx, target, "hello", "alice")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := m.Message(ctx, msgID)
	if err != nil {
		t.Fatal(err)
	}
	if msg.SenderID != second {
		t.Errorf("sender resolved to %d, want rebound agent %d", msg.SenderID, second)
	}
	if _, err := m.Get(ctx, first); err != nil {
		t.Errorf("orphaned agent should still exist: %v", err)
	}
}

func TestGet_notFound(t *testing.T) {
	m, _ := newMachine(t)
	register(t, m, "only", "GENERIC", "")

	if _, err := m.Get(ctx, 99); !errors.Is(err, model.ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestReplay_reproducesState(t *testing.T) {
	m, log := newMachine(t)

	a := register(t, m, "alice", "CHAT", "id:alice")
	b := register(t, m, "bob", "GENERIC", "id:bob")
	if _, err := m.Send(ctx, b, "hi bob", "id:alice"); err != nil {
		t.Fatal(err)
	}
	if err := m.Rate(ctx, b, true, "solid", "id:alice"); err != nil {
		t.Fatal(err)
	}
	if err := m.Rate(ctx, a, false, "", "id:bob"); err != nil {
		t.Fatal(err)
	}

	replayed, err := state.Replay(ctx, log, zap.NewNop())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	if got, want := replayed.Count(ctx), m.Count(ctx); got != want {
		t.Errorf("replayed count: got %d, want %d", got, want)
	}
	orig := m.ListAll(ctx)
	repl := replayed.ListAll(ctx)
	for i := range orig {
		if repl[i] != orig[i] {
			t.Errorf("agent %d diverged after replay:\n got %+v\nwant %+v", i, repl[i], orig[i])
		}
	}

	msg, err := replayed.Message(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if msg.SenderID != a || msg.ReceiverID != b || msg.Body != "hi bob" {
		t.Errorf("replayed message mismatch: %+v", msg)
	}

	// Bindings survive replay: the same submitter still acts as its agent.
	msgID, err := replayed.Send(ctx, a, "still me", "id:bob")
	if err != nil {
		t.Fatal(err)
	}
	msg, _ = replayed.Message(ctx, msgID)
	if msg.SenderID != b {
		t.Errorf("replayed binding: sender got %d, want %d", msg.SenderID, b)
	}

	// Rating uniqueness survives replay.
	if err := replayed.Rate(ctx, b, false, "", "id:alice"); !errors.Is(err, model.ErrAlreadyRated) {
		t.Errorf("expected ErrAlreadyRated after replay, got %v", err)
	}
}
