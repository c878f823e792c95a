package eventlog

import (
	"context"
	"testing"

	"github.com/agentledger/agentledger/internal/ledger/model"
)

// White-box: tampering requires reaching into the unexported record slice.

func TestVerify_detectsPayloadTampering(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	_, _ = l.Append(ctx, model.AgentRegistered{AgentID: 0, Name: "alpha", Role: model.RoleGeneric})
	_, _ = l.Append(ctx, model.AgentRegistered{AgentID: 1, Name: "beta", Role: model.RoleGeneric})

	l.records[0].Payload = []byte(`{"agent_id":0,"name":"mallory","role":"GENERIC"}`)

	if err := l.Verify(ctx); err == nil {
		t.Error("Verify() accepted a tampered payload")
	}
}

func TestVerify_detectsBrokenChain(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	_, _ = l.Append(ctx, model.AgentRegistered{AgentID: 0, Name: "alpha", Role: model.RoleGeneric})
	_, _ = l.Append(ctx, model.AgentRegistered{AgentID: 1, Name: "beta", Role: model.RoleGeneric})

	rec := &l.records[1]
	rec.PrevHash = GenesisHash
	rec.Hash = hashRecord(rec)

	if err := l.Verify(ctx); err == nil {
		t.Error("Verify() accepted a rewritten chain link")
	}
}
