package indexer

import (
	"context"

	"github.com/agentledger/agentledger/internal/ledger/model"
	"github.com/agentledger/agentledger/pkg/client"
)

// RemoteSource adapts the SDK client to the Source interface, letting a
// Monitor tail a node over HTTP instead of reading its log directly.
type RemoteSource struct {
	c *client.Client
}

// NewRemoteSource wraps an SDK client as a Source.
func NewRemoteSource(c *client.Client) *RemoteSource {
	return &RemoteSource{c: c}
}

// CurrentTip implements Source.
func (s *RemoteSource) CurrentTip(ctx context.Context) (uint64, error) {
	return s.c.CurrentTip(ctx)
}

// ReadRange implements Source.
func (s *RemoteSource) ReadRange(ctx context.Context, from, to uint64) ([]model.Record, error) {
	recs, err := s.c.ReadRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	out := make([]model.Record, len(recs))
	for i, r := range recs {
		out[i] = model.Record{
			Position:  r.Position,
			Kind:      model.Kind(r.Kind),
			Timestamp: r.Timestamp,
			Payload:   r.Payload,
			PrevHash:  r.PrevHash,
			Hash:      r.Hash,
		}
	}
	return out, nil
}
