package state

import (
	"context"
	"fmt"

	"github.com/agentledger/agentledger/internal/ledger/model"
	"go.uber.org/zap"
)

// Rate records a rater's verdict on a target agent and recomputes the
// target's trust score. The checks run in a fixed order — unbound rater,
// missing target, self-rating, duplicate rating — so a request that fails
// several of them always reports the same error. On success the AgentRated
// and TrustScoreUpdated events are appended as one atomic batch.
func (m *Machine) Rate(ctx context.Context, targetID uint64, positive bool, comment, submitter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raterID, bound := m.bindings[submitter]
	if !bound {
		return model.ErrRaterNotRegistered
	}
	if targetID >= uint64(len(m.agents)) {
		return model.ErrAgentNotFound
	}
	if raterID == targetID {
		return model.ErrCannotRateSelf
	}
	if _, exists := m.ratings[ratingKey{targetID, raterID}]; exists {
		return model.ErrAlreadyRated
	}

	target := m.agents[targetID]
	total := target.TotalInteractions + 1
	positiveCount := target.PositiveRatings
	if positive {
		positiveCount++
	}
	trust := positiveCount * 100 / total

	rated := model.AgentRated{
		TargetID: targetID,
		RaterID:  raterID,
		Positive: positive,
		Comment:  comment,
	}
	updated := model.TrustScoreUpdated{
		AgentID:           targetID,
		TrustScore:        trust,
		TotalInteractions: total,
		PositiveRatings:   positiveCount,
	}
	recs, err := m.log.Append(ctx, rated, updated)
	if err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	m.apply(rated, recs[0].Timestamp)
	m.apply(updated, recs[1].Timestamp)

	m.logger.Info("agent rated",
		zap.Uint64("target_id", targetID),
		zap.Uint64("rater_id", raterID),
		zap.Bool("positive", positive),
		zap.Uint64("trust_score", trust),
	)
	return nil
}

// Reputation returns the target's trust score and rating counters.
func (m *Machine) Reputation(_ context.Context, id uint64) (trust, total, positive uint64, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id >= uint64(len(m.agents)) {
		return 0, 0, 0, model.ErrAgentNotFound
	}
	a := m.agents[id]
	return a.TrustScore, a.TotalInteractions, a.PositiveRatings, nil
}

// HasRated reports whether the rater has already rated the target.
func (m *Machine) HasRated(_ context.Context, targetID, raterID uint64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ratings[ratingKey{targetID, raterID}]
	return ok, nil
}

// Rating returns the stored rating for the (target, rater) pair.
func (m *Machine) Rating(_ context.Context, targetID, raterID uint64) (model.Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ratings[ratingKey{targetID, raterID}]
	if !ok {
		return model.Rating{}, model.ErrNoRatingExists
	}
	return r, nil
}
