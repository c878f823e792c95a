package model

import "time"

// UnboundSender is the sender id recorded when the submitting identity has no
// agent binding. Note that 0 is also the first real agent id, so a message
// from agent 0 and a message from an unbound submitter are indistinguishable
// on the wire.
const UnboundSender uint64 = 0

// Message is an addressed payload between two agents.
type Message struct {
	ID         uint64    `json:"message_id"`
	SenderID   uint64    `json:"sender_agent_id"`
	ReceiverID uint64    `json:"receiver_agent_id"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

// Rating is one rater's verdict on a target agent. At most one exists per
// (target, rater) pair.
type Rating struct {
	TargetID uint64 `json:"target_agent_id"`
	RaterID  uint64 `json:"rater_agent_id"`
	Positive bool   `json:"positive"`
	Comment  string `json:"comment,omitempty"`
}

// SendMessageRequest is the payload for sending a message.
type SendMessageRequest struct {
	ReceiverAgentID uint64 `json:"receiver_agent_id"`
	Body            string `json:"body"`
}

// RespondRequest is the payload for responding to a message.
type RespondRequest struct {
	TargetAgentID uint64 `json:"target_agent_id"`
	Body          string `json:"body"`
}

// RateRequest is the payload for rating an agent.
type RateRequest struct {
	Positive bool   `json:"positive"`
	Comment  string `json:"comment"`
}
