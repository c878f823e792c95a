package indexer

import (
	"context"
	"fmt"

	"github.com/agentledger/agentledger/internal/ledger/model"
)

// Filter narrows a historical query. Nil fields match everything; set fields
// are equality predicates ANDed together. A field with no counterpart on an
// event kind excludes that kind entirely, so filtering by MessageID returns
// only message events and filtering by AgentID returns only agent events.
type Filter struct {
	AgentID         *uint64
	MessageID       *uint64
	SenderAgentID   *uint64
	ReceiverAgentID *uint64
}

// History is a range query result partitioned by event kind. Skipped counts
// records that failed to decode.
type History struct {
	Registered   []model.AgentRegistered   `json:"registered"`
	Sent         []model.MessageSent       `json:"sent"`
	Responded    []model.MessageResponded  `json:"responded"`
	Rated        []model.AgentRated        `json:"rated"`
	TrustUpdates []model.TrustScoreUpdated `json:"trust_updates"`
	Skipped      int                       `json:"skipped"`
}

// Total returns the number of events across all partitions.
func (h History) Total() int {
	return len(h.Registered) + len(h.Sent) + len(h.Responded) + len(h.Rated) + len(h.TrustUpdates)
}

// match reports whether an optional equality predicate accepts v.
func match(f *uint64, v uint64) bool {
	return f == nil || *f == v
}

// HistoricalQuery reads the inclusive range [from, to] straight from the
// source and partitions the matching events by kind. It is stateless: the
// live cursor is neither consulted nor moved, so the result is the same
// whether or not the monitor is running.
func (m *Monitor) HistoricalQuery(ctx context.Context, from, to uint64, f Filter) (History, error) {
	recs, err := m.src.ReadRange(ctx, from, to)
	if err != nil {
		return History{}, fmt.Errorf("read range %d-%d: %w", from, to, err)
	}

	var h History
	for _, rec := range recs {
		ev, err := model.Decode(rec)
		if err != nil {
			h.Skipped++
			continue
		}
		switch e := ev.(type) {
		case model.AgentRegistered:
			if f.MessageID != nil || f.SenderAgentID != nil || f.ReceiverAgentID != nil {
				continue
			}
			if match(f.AgentID, e.AgentID) {
				h.Registered = append(h.Registered, e)
			}
		case model.MessageSent:
			if f.AgentID != nil {
				continue
			}
			if match(f.MessageID, e.MessageID) &&
				match(f.SenderAgentID, e.SenderID) &&
				match(f.ReceiverAgentID, e.ReceiverID) {
				h.Sent = append(h.Sent, e)
			}
		case model.MessageResponded:
			if f.AgentID != nil {
				continue
			}
			if match(f.MessageID, e.MessageID) &&
				match(f.SenderAgentID, e.ResponderID) &&
				match(f.ReceiverAgentID, e.TargetID) {
				h.Responded = append(h.Responded, e)
			}
		case model.AgentRated:
			if f.MessageID != nil || f.SenderAgentID != nil || f.ReceiverAgentID != nil {
				continue
			}
			if match(f.AgentID, e.TargetID) {
				h.Rated = append(h.Rated, e)
			}
		case model.TrustScoreUpdated:
			if f.MessageID != nil || f.SenderAgentID != nil || f.ReceiverAgentID != nil {
				continue
			}
			if match(f.AgentID, e.AgentID) {
				h.TrustUpdates = append(h.TrustUpdates, e)
			}
		}
	}
	return h, nil
}
