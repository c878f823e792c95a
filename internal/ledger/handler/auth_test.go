package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentledger/agentledger/internal/identity"
	"github.com/agentledger/agentledger/internal/ledger/eventlog"
	"github.com/agentledger/agentledger/internal/ledger/handler"
	"github.com/agentledger/agentledger/internal/ledger/state"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// setupBearerRouter builds the API with token-only identities, the way a
// production deployment runs.
func setupBearerRouter(t *testing.T) (*gin.Engine, *identity.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := eventlog.NewMemoryLog()
	m, err := state.Replay(context.Background(), log, zap.NewNop())
	if err != nil {
		t.Fatalf("replay empty log: %v", err)
	}

	issuer := identity.NewIssuer("bearer-test-secret", time.Hour)
	auth := identity.RequireSubmitter(issuer, false)

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewAgentHandler(m, auth, zap.NewNop()).Register(v1)
	handler.NewMessageHandler(m, auth, zap.NewNop()).Register(v1)
	return r, issuer
}

func TestRegisterAgent_401_noIdentity(t *testing.T) {
	router, _ := setupBearerRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/agents", `{"name":"alice","role":"CHAT"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRegisterAgent_401_invalidToken(t *testing.T) {
	router, _ := setupBearerRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agents", strings.NewReader(`{"name":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRegisterAgent_201_bearerToken(t *testing.T) {
	router, issuer := setupBearerRouter(t)

	token, err := issuer.Issue("did:example:alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agents", strings.NewReader(`{"name":"alice","role":"CHAT"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// The token's subject became the binding, so the same identity can rate.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{"receiver_agent_id":0,"body":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("send with token: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if got := uint64(resp["message_id"].(float64)); got != 0 {
		t.Errorf("message id: got %d, want 0", got)
	}
}

// X-Submitter is only honored when header identities are switched on.
func TestRegisterAgent_401_headerDisabled(t *testing.T) {
	router, _ := setupBearerRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/agents", `{"name":"alice"}`, "did:example:alice")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListAgents_200_noIdentity(t *testing.T) {
	router, _ := setupBearerRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/agents", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reads should stay open: expected 200, got %d", w.Code)
	}
}

// A handler built without auth serves anonymous submitters; registrations
// then carry no binding.
func TestRegisterAgent_201_openRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	log := eventlog.NewMemoryLog()
	m, err := state.Replay(context.Background(), log, zap.NewNop())
	if err != nil {
		t.Fatalf("replay empty log: %v", err)
	}

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewAgentHandler(m, nil, zap.NewNop()).Register(v1)

	w := doJSON(t, r, http.MethodPost, "/api/v1/agents", `{"name":"anon"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// No binding was created, so rating as anyone is still rejected.
	w = doJSON(t, r, http.MethodPost, "/api/v1/agents/0/ratings", `{"positive":true}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous rater: expected 401, got %d: %s", w.Code, w.Body.String())
	}
}
