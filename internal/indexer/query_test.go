package indexer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentledger/agentledger/internal/indexer"
	"github.com/agentledger/agentledger/internal/ledger/eventlog"
	"github.com/agentledger/agentledger/internal/ledger/model"
	"go.uber.org/zap"
)

// seedConversation lays down a two-agent exchange with ratings:
//
//	1 AgentRegistered    agent 0 (alice)
//	2 AgentRegistered    agent 1 (bob)
//	3 MessageSent        message 0, 0 → 1
//	4 MessageResponded   message 0, 1 → 0
//	5 AgentRated         target 1, rater 0
//	6 TrustScoreUpdated  agent 1
//	7 MessageSent        message 1, 1 → 0
func seedConversation(t *testing.T) *eventlog.MemoryLog {
	t.Helper()
	log := eventlog.NewMemoryLog()
	_, err := log.Append(ctx,
		model.AgentRegistered{AgentID: 0, Name: "alice", Role: model.RoleChat, Submitter: "did:example:alice"},
		model.AgentRegistered{AgentID: 1, Name: "bob", Role: model.RoleGeneric, Submitter: "did:example:bob"},
		model.MessageSent{MessageID: 0, SenderID: 0, ReceiverID: 1, Body: "hi"},
		model.MessageResponded{MessageID: 0, ResponderID: 1, TargetID: 0, Body: "hello"},
		model.AgentRated{TargetID: 1, RaterID: 0, Positive: true, Comment: "prompt"},
		model.TrustScoreUpdated{AgentID: 1, TrustScore: 100, TotalInteractions: 1, PositiveRatings: 1},
		model.MessageSent{MessageID: 1, SenderID: 1, ReceiverID: 0, Body: "follow-up"},
	)
	if err != nil {
		t.Fatalf("seed log: %v", err)
	}
	return log
}

func u64(v uint64) *uint64 { return &v }

func TestHistoricalQuery_partitionsByKind(t *testing.T) {
	m := indexer.NewMonitor(seedConversation(t), zap.NewNop())

	h, err := m.HistoricalQuery(ctx, 1, 7, indexer.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if len(h.Registered) != 2 {
		t.Errorf("registered: got %d, want 2", len(h.Registered))
	}
	if len(h.Sent) != 2 {
		t.Errorf("sent: got %d, want 2", len(h.Sent))
	}
	if len(h.Responded) != 1 {
		t.Errorf("responded: got %d, want 1", len(h.Responded))
	}
	if len(h.Rated) != 1 {
		t.Errorf("rated: got %d, want 1", len(h.Rated))
	}
	if len(h.TrustUpdates) != 1 {
		t.Errorf("trust updates: got %d, want 1", len(h.TrustUpdates))
	}
	if h.Skipped != 0 {
		t.Errorf("skipped: got %d, want 0", h.Skipped)
	}
	if h.Total() != 7 {
		t.Errorf("total: got %d, want 7", h.Total())
	}

	// Positions are stamped from the records.
	if h.Registered[0].Position != 1 || h.Registered[1].Position != 2 {
		t.Errorf("registered positions: got %d and %d, want 1 and 2",
			h.Registered[0].Position, h.Registered[1].Position)
	}
	if h.Sent[1].Position != 7 {
		t.Errorf("second sent position: got %d, want 7", h.Sent[1].Position)
	}
}

func TestHistoricalQuery_rangeBounds(t *testing.T) {
	m := indexer.NewMonitor(seedConversation(t), zap.NewNop())

	h, err := m.HistoricalQuery(ctx, 3, 4, indexer.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if h.Total() != 2 {
		t.Fatalf("total: got %d, want 2", h.Total())
	}
	if len(h.Sent) != 1 || len(h.Responded) != 1 {
		t.Errorf("partition sizes: sent %d responded %d, want 1 and 1", len(h.Sent), len(h.Responded))
	}
}

func TestHistoricalQuery_filterByAgentID(t *testing.T) {
	m := indexer.NewMonitor(seedConversation(t), zap.NewNop())

	h, err := m.HistoricalQuery(ctx, 1, 7, indexer.Filter{AgentID: u64(1)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if len(h.Registered) != 1 || h.Registered[0].Name != "bob" {
		t.Errorf("registered: got %d entries, want bob only", len(h.Registered))
	}
	if len(h.Rated) != 1 || h.Rated[0].TargetID != 1 {
		t.Errorf("rated: got %d entries, want the rating on agent 1", len(h.Rated))
	}
	if len(h.TrustUpdates) != 1 || h.TrustUpdates[0].AgentID != 1 {
		t.Errorf("trust updates: got %d entries, want agent 1's update", len(h.TrustUpdates))
	}
	// Message kinds carry no agent id field, so the filter excludes them.
	if len(h.Sent) != 0 || len(h.Responded) != 0 {
		t.Errorf("message kinds leaked through an agent filter: sent %d responded %d",
			len(h.Sent), len(h.Responded))
	}
}

func TestHistoricalQuery_filterByMessageID(t *testing.T) {
	m := indexer.NewMonitor(seedConversation(t), zap.NewNop())

	h, err := m.HistoricalQuery(ctx, 1, 7, indexer.Filter{MessageID: u64(0)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if len(h.Sent) != 1 || h.Sent[0].MessageID != 0 {
		t.Errorf("sent: got %d entries, want message 0 only", len(h.Sent))
	}
	if len(h.Responded) != 1 || h.Responded[0].MessageID != 0 {
		t.Errorf("responded: got %d entries, want message 0 only", len(h.Responded))
	}
	if len(h.Registered) != 0 || len(h.Rated) != 0 || len(h.TrustUpdates) != 0 {
		t.Error("agent kinds leaked through a message filter")
	}
}

func TestHistoricalQuery_filterBySender(t *testing.T) {
	m := indexer.NewMonitor(seedConversation(t), zap.NewNop())

	h, err := m.HistoricalQuery(ctx, 1, 7, indexer.Filter{SenderAgentID: u64(1)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	// Agent 1 sent message 1 and responded to message 0.
	if len(h.Sent) != 1 || h.Sent[0].MessageID != 1 {
		t.Errorf("sent: got %d entries, want message 1 only", len(h.Sent))
	}
	if len(h.Responded) != 1 || h.Responded[0].ResponderID != 1 {
		t.Errorf("responded: got %d entries, want agent 1's response", len(h.Responded))
	}
}

func TestHistoricalQuery_filterByReceiver(t *testing.T) {
	m := indexer.NewMonitor(seedConversation(t), zap.NewNop())

	h, err := m.HistoricalQuery(ctx, 1, 7, indexer.Filter{ReceiverAgentID: u64(0)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	// Agent 0 received message 1 and was the target of the response.
	if len(h.Sent) != 1 || h.Sent[0].MessageID != 1 {
		t.Errorf("sent: got %d entries, want message 1 only", len(h.Sent))
	}
	if len(h.Responded) != 1 || h.Responded[0].TargetID != 0 {
		t.Errorf("responded: got %d entries, want the response targeting agent 0", len(h.Responded))
	}
}

func TestHistoricalQuery_filtersAreANDed(t *testing.T) {
	m := indexer.NewMonitor(seedConversation(t), zap.NewNop())

	// Message 0 was sent by agent 0, so requiring sender 1 on it excludes
	// the send but keeps the response (responder 1).
	h, err := m.HistoricalQuery(ctx, 1, 7, indexer.Filter{MessageID: u64(0), SenderAgentID: u64(1)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(h.Sent) != 0 {
		t.Errorf("sent: got %d entries, want none", len(h.Sent))
	}
	if len(h.Responded) != 1 {
		t.Errorf("responded: got %d entries, want 1", len(h.Responded))
	}
}

func TestHistoricalQuery_independentOfCursor(t *testing.T) {
	log := seedConversation(t)
	m := indexer.NewMonitor(log, zap.NewNop())

	// Query an idle monitor first.
	before, err := m.HistoricalQuery(ctx, 1, 7, indexer.Filter{})
	if err != nil {
		t.Fatalf("query idle: %v", err)
	}

	var col collector
	m.OnAny(col.collect)
	if err := m.Start(indexer.From(0), 5*time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()
	waitUntil(t, "backlog indexed", func() bool { return col.count() == 7 })

	cursorBefore := m.Cursor()
	after, err := m.HistoricalQuery(ctx, 1, 7, indexer.Filter{})
	if err != nil {
		t.Fatalf("query live: %v", err)
	}

	if before.Total() != after.Total() || after.Total() != 7 {
		t.Errorf("totals: idle %d, live %d, want both 7", before.Total(), after.Total())
	}
	if len(before.Sent) != len(after.Sent) || len(before.Responded) != len(after.Responded) {
		t.Error("partition sizes differ between idle and live queries")
	}
	if m.Cursor() != cursorBefore {
		t.Errorf("query moved the cursor: %d → %d", cursorBefore, m.Cursor())
	}
}

func TestHistoricalQuery_skippedCountsUndecodable(t *testing.T) {
	src := &sliceSource{recs: []model.Record{
		{Position: 1, Kind: model.KindAgentRegistered, Payload: payload(t, model.AgentRegistered{AgentID: 0, Name: "alice"})},
		{Position: 2, Kind: "Unheard", Payload: []byte(`{}`)},
		{Position: 3, Kind: model.KindMessageSent, Payload: payload(t, model.MessageSent{MessageID: 0, SenderID: 0, ReceiverID: 0})},
	}}
	m := indexer.NewMonitor(src, zap.NewNop())

	h, err := m.HistoricalQuery(ctx, 1, 3, indexer.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if h.Skipped != 1 {
		t.Errorf("skipped: got %d, want 1", h.Skipped)
	}
	if h.Total() != 2 {
		t.Errorf("total: got %d, want 2", h.Total())
	}
}

func TestHistoricalQuery_readError(t *testing.T) {
	src := &errorSource{err: errors.New("substrate gone")}
	m := indexer.NewMonitor(src, zap.NewNop())

	if _, err := m.HistoricalQuery(ctx, 1, 10, indexer.Filter{}); err == nil {
		t.Fatal("expected a read error")
	}
}

// errorSource fails every call.
type errorSource struct {
	err error
}

func (e *errorSource) CurrentTip(context.Context) (uint64, error) { return 0, e.err }

func (e *errorSource) ReadRange(context.Context, uint64, uint64) ([]model.Record, error) {
	return nil, e.err
}
