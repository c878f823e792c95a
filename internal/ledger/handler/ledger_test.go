package handler_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/agentledger/agentledger/internal/ledger/eventlog"
	"github.com/agentledger/agentledger/internal/ledger/model"
)

func TestEventsTip_200_empty(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/events/tip", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if got := resp["tip"].(float64); got != 0 {
		t.Errorf("empty log tip: got %v, want 0", got)
	}
}

func TestEventsRange_200_defaults(t *testing.T) {
	router, _ := setupRouter(t)

	registerAgent(t, router, "alice", "CHAT", "did:example:alice")
	registerAgent(t, router, "bob", "GENERIC", "did:example:bob")
	w := doJSON(t, router, http.MethodPost, "/api/v1/messages", `{"receiver_agent_id":1,"body":"hi"}`, "did:example:alice")
	if w.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/events", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Events []model.Record `json:"events"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Events) != 3 {
		t.Fatalf("event count: got %d, want 3", len(resp.Events))
	}

	wantKinds := []model.Kind{model.KindAgentRegistered, model.KindAgentRegistered, model.KindMessageSent}
	for i, rec := range resp.Events {
		if rec.Position != uint64(i+1) {
			t.Errorf("events[%d].position: got %d, want %d", i, rec.Position, i+1)
		}
		if rec.Kind != wantKinds[i] {
			t.Errorf("events[%d].kind: got %q, want %q", i, rec.Kind, wantKinds[i])
		}
	}
}

func TestEventsRange_200_clipped(t *testing.T) {
	router, _ := setupRouter(t)

	registerAgent(t, router, "alice", "CHAT", "did:example:alice")
	registerAgent(t, router, "bob", "GENERIC", "did:example:bob")
	registerAgent(t, router, "carol", "GENERIC", "did:example:carol")

	w := doJSON(t, router, http.MethodGet, "/api/v1/events?from=2&to=99", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Events []model.Record `json:"events"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Events) != 2 {
		t.Fatalf("event count: got %d, want 2", len(resp.Events))
	}
	if resp.Events[0].Position != 2 || resp.Events[1].Position != 3 {
		t.Errorf("positions: got %d and %d, want 2 and 3",
			resp.Events[0].Position, resp.Events[1].Position)
	}
}

func TestEventsRange_200_emptyWindow(t *testing.T) {
	router, _ := setupRouter(t)

	registerAgent(t, router, "alice", "CHAT", "did:example:alice")

	w := doJSON(t, router, http.MethodGet, "/api/v1/events?from=5&to=2", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"events":[]`) {
		t.Errorf("empty window should serialize as [], got %s", w.Body.String())
	}
}

func TestEventsRange_400_badParam(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/events?from=abc", "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLedgerOverview_200_empty(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/ledger", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if got := resp["entries"].(float64); got != 0 {
		t.Errorf("entries: got %v, want 0", got)
	}
	if resp["root"] != eventlog.GenesisHash {
		t.Errorf("empty log root: got %v, want genesis hash", resp["root"])
	}
}

func TestLedgerOverview_200_rootMatchesLastHash(t *testing.T) {
	router, _ := setupRouter(t)

	registerAgent(t, router, "alice", "CHAT", "did:example:alice")
	registerAgent(t, router, "bob", "GENERIC", "did:example:bob")

	w := doJSON(t, router, http.MethodGet, "/api/v1/events", "", "")
	var events struct {
		Events []model.Record `json:"events"`
	}
	json.Unmarshal(w.Body.Bytes(), &events)
	if len(events.Events) == 0 {
		t.Fatal("no events returned")
	}
	lastHash := events.Events[len(events.Events)-1].Hash

	w = doJSON(t, router, http.MethodGet, "/api/v1/ledger", "", "")
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if got := resp["entries"].(float64); got != 2 {
		t.Errorf("entries: got %v, want 2", got)
	}
	if resp["root"] != lastHash {
		t.Errorf("root: got %v, want last record hash %s", resp["root"], lastHash)
	}
}

func TestLedgerVerify_200(t *testing.T) {
	router, _ := setupRouter(t)

	registerAgent(t, router, "alice", "CHAT", "did:example:alice")
	w := doJSON(t, router, http.MethodPost, "/api/v1/messages", `{"receiver_agent_id":0,"body":"note to self"}`, "did:example:alice")
	if w.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/ledger/verify", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != true {
		t.Errorf("verify: got %v, want valid=true: %s", resp["valid"], w.Body.String())
	}
}
