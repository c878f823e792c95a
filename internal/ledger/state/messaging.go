package state

import (
	"context"
	"fmt"

	"github.com/agentledger/agentledger/internal/ledger/model"
	"go.uber.org/zap"
)

// Send records an addressed message to an existing agent. The sender is
// whatever agent the submitting identity is bound to, or UnboundSender when
// no binding exists — unbound sends are accepted, not rejected. Empty bodies
// and self-addressed messages are permitted.
func (m *Machine) Send(ctx context.Context, receiverID uint64, body, submitter string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if receiverID >= uint64(len(m.agents)) {
		return 0, model.ErrAgentNotFound
	}

	id := m.messageSeq.peek()
	ev := model.MessageSent{
		MessageID:  id,
		SenderID:   m.resolveSender(submitter),
		ReceiverID: receiverID,
		Body:       body,
	}
	recs, err := m.log.Append(ctx, ev)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	m.apply(ev, recs[0].Timestamp)

	m.logger.Info("message sent",
		zap.Uint64("message_id", id),
		zap.Uint64("sender_id", ev.SenderID),
		zap.Uint64("receiver_id", receiverID),
	)
	return id, nil
}

// Respond records a reply addressed to a target agent. Only the target is
// checked for existence: the message id is echoed into the event without
// being validated against prior sends, and the target is not required to be
// the sender of that message.
func (m *Machine) Respond(ctx context.Context, messageID, targetID uint64, body, submitter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if targetID >= uint64(len(m.agents)) {
		return model.ErrAgentNotFound
	}

	ev := model.MessageResponded{
		MessageID:   messageID,
		ResponderID: m.resolveSender(submitter),
		TargetID:    targetID,
		Body:        body,
	}
	recs, err := m.log.Append(ctx, ev)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	m.apply(ev, recs[0].Timestamp)

	m.logger.Info("message responded",
		zap.Uint64("message_id", messageID),
		zap.Uint64("responder_id", ev.ResponderID),
		zap.Uint64("target_id", targetID),
	)
	return nil
}

// Message returns the stored message with the given id.
func (m *Machine) Message(_ context.Context, id uint64) (model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id >= uint64(len(m.messages)) {
		return model.Message{}, model.ErrNotFound
	}
	return m.messages[id], nil
}
