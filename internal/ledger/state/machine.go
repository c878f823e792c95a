// Package state implements the deterministic ledger state machine: the agent
// registry, addressed messaging, and the peer-rating reputation system. All
// state is materialized by folding the event log, so two machines replaying
// the same log arrive at identical state.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentledger/agentledger/internal/ledger/eventlog"
	"github.com/agentledger/agentledger/internal/ledger/model"
	"go.uber.org/zap"
)

// initialTrustScore is the score of an agent that has never been rated.
const initialTrustScore = 100

// sequence allocates dense uint64 ids starting at 0. It is advanced only by
// applied events, so allocation stays consistent with the log under replay.
type sequence struct{ next uint64 }

func (s *sequence) peek() uint64 { return s.next }

func (s *sequence) observe(id uint64) {
	if id >= s.next {
		s.next = id + 1
	}
}

// ratingKey identifies the at-most-one rating per (target, rater) pair.
type ratingKey struct{ target, rater uint64 }

// Machine is the ledger core. Mutating operations append their events first
// and then fold them into memory through the same apply used by Replay:
// state never changes without its events, and a failed operation appends
// nothing. A single RWMutex realizes the substrate's single-writer
// serialization — mutations take the write lock, queries the read lock.
type Machine struct {
	mu     sync.RWMutex
	log    eventlog.Log
	logger *zap.Logger

	agents   []model.Agent
	messages []model.Message
	bindings map[string]uint64
	ratings  map[ratingKey]model.Rating

	agentSeq   sequence
	messageSeq sequence
}

// Replay constructs a Machine by folding every record of the log. An empty
// log yields an empty machine, so Replay is the only constructor.
func Replay(ctx context.Context, log eventlog.Log, logger *zap.Logger) (*Machine, error) {
	m := &Machine{
		log:      log,
		logger:   logger,
		bindings: make(map[string]uint64),
		ratings:  make(map[ratingKey]model.Rating),
	}

	tip, err := log.CurrentTip(ctx)
	if err != nil {
		return nil, fmt.Errorf("read tip: %w", err)
	}
	if tip == 0 {
		return m, nil
	}

	recs, err := log.ReadRange(ctx, 1, tip)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	for _, rec := range recs {
		ev, err := model.Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("replay position %d: %w", rec.Position, err)
		}
		m.apply(ev, rec.Timestamp)
	}

	logger.Info("state replayed",
		zap.Uint64("tip", tip),
		zap.Int("agents", len(m.agents)),
		zap.Int("messages", len(m.messages)),
	)
	return m, nil
}

// apply folds one event into memory. It is the single write path shared by
// Replay and by the mutating operations, and it trusts its input: events are
// validated before they are appended, never after. Callers hold mu.
func (m *Machine) apply(ev model.Event, ts time.Time) {
	switch ev := ev.(type) {
	case model.AgentRegistered:
		m.agents = append(m.agents, model.Agent{
			ID:           ev.AgentID,
			Name:         ev.Name,
			Role:         ev.Role,
			MetadataRef:  ev.MetadataRef,
			TrustScore:   initialTrustScore,
			RegisteredAt: ts,
		})
		// Last registration wins: an identity that registers again orphans
		// its previous agent, which keeps its id and reputation but can no
		// longer act.
		if ev.Submitter != "" {
			m.bindings[ev.Submitter] = ev.AgentID
		}
		m.agentSeq.observe(ev.AgentID)

	case model.MessageSent:
		m.messages = append(m.messages, model.Message{
			ID:         ev.MessageID,
			SenderID:   ev.SenderID,
			ReceiverID: ev.ReceiverID,
			Body:       ev.Body,
			SentAt:     ts,
		})
		m.messageSeq.observe(ev.MessageID)

	case model.MessageResponded:
		// Responses mutate no state; the record itself is the artifact.

	case model.AgentRated:
		m.ratings[ratingKey{ev.TargetID, ev.RaterID}] = model.Rating{
			TargetID: ev.TargetID,
			RaterID:  ev.RaterID,
			Positive: ev.Positive,
			Comment:  ev.Comment,
		}

	case model.TrustScoreUpdated:
		if ev.AgentID < uint64(len(m.agents)) {
			a := &m.agents[ev.AgentID]
			a.TrustScore = ev.TrustScore
			a.TotalInteractions = ev.TotalInteractions
			a.PositiveRatings = ev.PositiveRatings
		}
	}
}

// resolveSender maps a submitting identity to its bound agent id, or
// UnboundSender when no binding exists. Callers hold mu.
func (m *Machine) resolveSender(submitter string) uint64 {
	if id, ok := m.bindings[submitter]; ok {
		return id
	}
	return model.UnboundSender
}
