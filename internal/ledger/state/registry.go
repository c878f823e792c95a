package state

import (
	"context"
	"fmt"
	"sort"

	"github.com/agentledger/agentledger/internal/ledger/model"
	"go.uber.org/zap"
)

// Register assigns the next agent id to a new identity and binds the
// submitter to it. Registration never fails for duplicate names or rebound
// submitters; the only rejected input is a role the ledger cannot represent.
func (m *Machine) Register(ctx context.Context, name, role, metadataRef, submitter string) (uint64, error) {
	parsed, err := model.ParseRole(role)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.agentSeq.peek()
	ev := model.AgentRegistered{
		AgentID:     id,
		Name:        name,
		Role:        parsed,
		MetadataRef: metadataRef,
		Submitter:   submitter,
	}
	recs, err := m.log.Append(ctx, ev)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	m.apply(ev, recs[0].Timestamp)

	m.logger.Info("agent registered",
		zap.Uint64("agent_id", id),
		zap.String("name", name),
		zap.String("role", string(parsed)),
	)
	return id, nil
}

// ListAll returns a snapshot of every registered agent, ascending by id.
func (m *Machine) ListAll(_ context.Context) []model.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Agent, len(m.agents))
	copy(out, m.agents)
	return out
}

// Count returns the number of registered agents.
func (m *Machine) Count(_ context.Context) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.agents))
}

// Get returns the agent with the given id.
func (m *Machine) Get(_ context.Context, id uint64) (model.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id >= uint64(len(m.agents)) {
		return model.Agent{}, model.ErrAgentNotFound
	}
	return m.agents[id], nil
}

// TopRated returns all agents ordered by trust score, highest first. The
// snapshot is ascending by id, so the stable sort leaves equal scores in id
// order.
func (m *Machine) TopRated(_ context.Context) []model.Agent {
	m.mu.RLock()
	snapshot := make([]model.Agent, len(m.agents))
	copy(snapshot, m.agents)
	m.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].TrustScore > snapshot[j].TrustScore
	})
	return snapshot
}
