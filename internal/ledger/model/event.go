package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the type of a ledger event.
type Kind string

const (
	KindAgentRegistered   Kind = "AgentRegistered"
	KindMessageSent       Kind = "MessageSent"
	KindMessageResponded  Kind = "MessageResponded"
	KindAgentRated        Kind = "AgentRated"
	KindTrustScoreUpdated Kind = "TrustScoreUpdated"
)

// Event is one of the closed set of ledger event payloads. The set is
// deliberately closed: consumers decode with Decode and type-switch on the
// concrete variant.
type Event interface {
	EventKind() Kind
}

// AgentRegistered records a new agent identity entering the registry.
type AgentRegistered struct {
	Position    uint64 `json:"-"`
	AgentID     uint64 `json:"agent_id"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	MetadataRef string `json:"metadata_ref,omitempty"`
	Submitter   string `json:"submitter,omitempty"`
}

// MessageSent records an addressed message. SenderID is UnboundSender when
// the submitting identity had no agent binding at send time.
type MessageSent struct {
	Position   uint64 `json:"-"`
	MessageID  uint64 `json:"message_id"`
	SenderID   uint64 `json:"sender_agent_id"`
	ReceiverID uint64 `json:"receiver_agent_id"`
	Body       string `json:"body"`
}

// MessageResponded records a reply addressed back to a target agent. The
// message id is echoed from the caller and is not checked against prior
// MessageSent events.
type MessageResponded struct {
	Position    uint64 `json:"-"`
	MessageID   uint64 `json:"message_id"`
	ResponderID uint64 `json:"responder_agent_id"`
	TargetID    uint64 `json:"target_agent_id"`
	Body        string `json:"body"`
}

// AgentRated records a rater's verdict on a target agent.
type AgentRated struct {
	Position uint64 `json:"-"`
	TargetID uint64 `json:"target_agent_id"`
	RaterID  uint64 `json:"rater_agent_id"`
	Positive bool   `json:"positive"`
	Comment  string `json:"comment,omitempty"`
}

// TrustScoreUpdated records the recomputed reputation counters of an agent.
// It always follows the AgentRated event that caused it.
type TrustScoreUpdated struct {
	Position          uint64 `json:"-"`
	AgentID           uint64 `json:"agent_id"`
	TrustScore        uint64 `json:"trust_score"`
	TotalInteractions uint64 `json:"total_interactions"`
	PositiveRatings   uint64 `json:"positive_ratings"`
}

func (AgentRegistered) EventKind() Kind   { return KindAgentRegistered }
func (MessageSent) EventKind() Kind       { return KindMessageSent }
func (MessageResponded) EventKind() Kind  { return KindMessageResponded }
func (AgentRated) EventKind() Kind        { return KindAgentRated }
func (TrustScoreUpdated) EventKind() Kind { return KindTrustScoreUpdated }

// Record is the envelope an event is stored and served in. Positions are
// 1-based and dense; Hash chains each record to its predecessor.
type Record struct {
	Position  uint64          `json:"position"`
	Kind      Kind            `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// Decode unmarshals a record's payload into its concrete event variant and
// stamps the record position onto it. Unknown kinds are an error so that a
// consumer never silently misreads a record written by a newer node.
func Decode(rec Record) (Event, error) {
	switch rec.Kind {
	case KindAgentRegistered:
		var ev AgentRegistered
		if err := json.Unmarshal(rec.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s at position %d: %w", rec.Kind, rec.Position, err)
		}
		ev.Position = rec.Position
		return ev, nil
	case KindMessageSent:
		var ev MessageSent
		if err := json.Unmarshal(rec.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s at position %d: %w", rec.Kind, rec.Position, err)
		}
		ev.Position = rec.Position
		return ev, nil
	case KindMessageResponded:
		var ev MessageResponded
		if err := json.Unmarshal(rec.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s at position %d: %w", rec.Kind, rec.Position, err)
		}
		ev.Position = rec.Position
		return ev, nil
	case KindAgentRated:
		var ev AgentRated
		if err := json.Unmarshal(rec.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s at position %d: %w", rec.Kind, rec.Position, err)
		}
		ev.Position = rec.Position
		return ev, nil
	case KindTrustScoreUpdated:
		var ev TrustScoreUpdated
		if err := json.Unmarshal(rec.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s at position %d: %w", rec.Kind, rec.Position, err)
		}
		ev.Position = rec.Position
		return ev, nil
	default:
		return nil, fmt.Errorf("decode: unknown event kind %q at position %d", rec.Kind, rec.Position)
	}
}
