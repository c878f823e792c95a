package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Role values accepted by RegisterAgent. An empty role registers as GENERIC.
const (
	RoleGeneric = "GENERIC"
	RoleChat    = "CHAT"
)

// Agent is a registered agent as reported by the node, reputation included.
type Agent struct {
	ID                uint64    `json:"agent_id"`
	Name              string    `json:"name"`
	Role              string    `json:"role"`
	MetadataRef       string    `json:"metadata_ref,omitempty"`
	TrustScore        uint64    `json:"trust_score"`
	TotalInteractions uint64    `json:"total_interactions"`
	PositiveRatings   uint64    `json:"positive_ratings"`
	RegisteredAt      time.Time `json:"registered_at"`
}

// Message is a recorded ledger message.
type Message struct {
	ID         uint64    `json:"message_id"`
	SenderID   uint64    `json:"sender_agent_id"`
	ReceiverID uint64    `json:"receiver_agent_id"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

// Rating is one rater's recorded verdict on a target agent.
type Rating struct {
	TargetID uint64 `json:"target_agent_id"`
	RaterID  uint64 `json:"rater_agent_id"`
	Positive bool   `json:"positive"`
	Comment  string `json:"comment,omitempty"`
}

// Reputation is an agent's derived trust standing.
type Reputation struct {
	AgentID           uint64 `json:"agent_id"`
	TrustScore        uint64 `json:"trust_score"`
	TotalInteractions uint64 `json:"total_interactions"`
	PositiveRatings   uint64 `json:"positive_ratings"`
}

// Record is one sealed entry of the node's event log. Payload is the raw
// event JSON; Kind says which event type it decodes to.
type Record struct {
	Position  uint64          `json:"position"`
	Kind      string          `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// Overview summarizes the ledger: how many entries it holds and the hash of
// the newest one (the genesis hash when empty).
type Overview struct {
	Entries uint64 `json:"entries"`
	Root    string `json:"root"`
}

// VerifyResult reports a full-chain integrity walk. Error is set when Valid
// is false.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// RegisterAgentRequest is the payload for RegisterAgent. Role may be empty
// (GENERIC) or one of the Role constants. All fields are optional — the
// ledger records whatever the submitter sends.
type RegisterAgentRequest struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	MetadataRef string `json:"metadata_ref,omitempty"`
}

// APIError is returned when the node answers with a non-2xx status. Use
// errors.As to inspect the code:
//
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
//	    // already rated
//	}
type APIError struct {
	// StatusCode is the HTTP status the node responded with.
	StatusCode int

	// Message is the node's error message, when it sent one.
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("node returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Client is the AgentLedger node SDK. Create one with New and reuse it —
// it is safe for concurrent use.
type Client struct {
	nodeBase   string
	httpClient *http.Client

	// bearerToken authenticates mutating calls when set.
	bearerToken string

	// submitter is sent as the X-Submitter header when set. Only honored
	// by nodes running with header identities enabled.
	submitter string
}

// Option configures a Client during New.
type Option func(*Client) error

// WithHTTPClient replaces the default HTTP client (15s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken authenticates every mutating call with a pre-issued
// identity token (Authorization: Bearer).
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithSubmitter sends the given identity as the X-Submitter header. The node
// only honors it when header identities are enabled; production nodes expect
// WithBearerToken instead.
func WithSubmitter(submitter string) Option {
	return func(c *Client) error {
		c.submitter = submitter
		return nil
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a Client for the node at nodeBase, e.g. "http://localhost:8080".
func New(nodeBase string, opts ...Option) (*Client, error) {
	if nodeBase == "" {
		return nil, fmt.Errorf("node base URL is required")
	}

	c := &Client{
		nodeBase:   strings.TrimRight(nodeBase, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Intended for package-level
// initialization where the inputs are static.
func MustNew(nodeBase string, opts ...Option) *Client {
	c, err := New(nodeBase, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// ── Registry ─────────────────────────────────────────────────────────────

// RegisterAgent registers a new agent and returns its assigned id. The
// client's identity becomes bound to the new agent, replacing any earlier
// binding.
func (c *Client) RegisterAgent(ctx context.Context, req RegisterAgentRequest) (uint64, error) {
	body, err := c.postJSON(ctx, "/api/v1/agents", req)
	if err != nil {
		return 0, err
	}

	var resp struct {
		AgentID uint64 `json:"agent_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return resp.AgentID, nil
}

// GetAgent fetches a single agent by id.
func (c *Client) GetAgent(ctx context.Context, id uint64) (*Agent, error) {
	body, err := c.getJSON(ctx, fmt.Sprintf("/api/v1/agents/%d", id))
	if err != nil {
		return nil, err
	}

	var agent Agent
	if err := json.Unmarshal(body, &agent); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &agent, nil
}

// ListAgents fetches every registered agent in ascending id order.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	body, err := c.getJSON(ctx, "/api/v1/agents")
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Agents []Agent `json:"agents"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Agents, nil
}

// CountAgents returns the number of registered agents.
func (c *Client) CountAgents(ctx context.Context) (uint64, error) {
	body, err := c.getJSON(ctx, "/api/v1/agents/count")
	if err != nil {
		return 0, err
	}

	var resp struct {
		Count uint64 `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return resp.Count, nil
}

// TopRated fetches all agents ordered by trust score, highest first. Agents
// with equal scores come back in ascending id order.
func (c *Client) TopRated(ctx context.Context) ([]Agent, error) {
	body, err := c.getJSON(ctx, "/api/v1/agents/top")
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Agents []Agent `json:"agents"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Agents, nil
}

// ── Reputation ───────────────────────────────────────────────────────────

// GetReputation fetches an agent's trust standing.
func (c *Client) GetReputation(ctx context.Context, id uint64) (*Reputation, error) {
	body, err := c.getJSON(ctx, fmt.Sprintf("/api/v1/agents/%d/reputation", id))
	if err != nil {
		return nil, err
	}

	var rep Reputation
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &rep, nil
}

// RateAgent records the client identity's verdict on the target agent. The
// identity must be bound to a registered agent, may not rate its own agent,
// and may rate each target at most once.
func (c *Client) RateAgent(ctx context.Context, targetID uint64, positive bool, comment string) error {
	req := struct {
		Positive bool   `json:"positive"`
		Comment  string `json:"comment,omitempty"`
	}{Positive: positive, Comment: comment}

	_, err := c.postJSON(ctx, fmt.Sprintf("/api/v1/agents/%d/ratings", targetID), req)
	return err
}

// GetRating fetches the rating rater gave target, if one was recorded.
func (c *Client) GetRating(ctx context.Context, targetID, raterID uint64) (*Rating, error) {
	body, err := c.getJSON(ctx, fmt.Sprintf("/api/v1/agents/%d/ratings/%d", targetID, raterID))
	if err != nil {
		return nil, err
	}

	var rating Rating
	if err := json.Unmarshal(body, &rating); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &rating, nil
}

// ── Messaging ────────────────────────────────────────────────────────────

// SendMessage records a message to the receiver agent and returns its
// assigned id. The sender is whichever agent the client's identity is bound
// to; unbound identities send as agent 0.
func (c *Client) SendMessage(ctx context.Context, receiverID uint64, msgBody string) (uint64, error) {
	req := struct {
		ReceiverAgentID uint64 `json:"receiver_agent_id"`
		Body            string `json:"body"`
	}{ReceiverAgentID: receiverID, Body: msgBody}

	body, err := c.postJSON(ctx, "/api/v1/messages", req)
	if err != nil {
		return 0, err
	}

	var resp struct {
		MessageID uint64 `json:"message_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return resp.MessageID, nil
}

// GetMessage fetches a recorded message by id.
func (c *Client) GetMessage(ctx context.Context, id uint64) (*Message, error) {
	body, err := c.getJSON(ctx, fmt.Sprintf("/api/v1/messages/%d", id))
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &msg, nil
}

// RespondMessage records a reply to messageID addressed at the target agent.
// The target must exist; the message id itself is recorded as given.
func (c *Client) RespondMessage(ctx context.Context, messageID, targetID uint64, msgBody string) error {
	req := struct {
		TargetAgentID uint64 `json:"target_agent_id"`
		Body          string `json:"body"`
	}{TargetAgentID: targetID, Body: msgBody}

	_, err := c.postJSON(ctx, fmt.Sprintf("/api/v1/messages/%d/responses", messageID), req)
	return err
}

// ── Event log ────────────────────────────────────────────────────────────

// CurrentTip returns the position of the newest log record, 0 when the log
// is empty.
func (c *Client) CurrentTip(ctx context.Context) (uint64, error) {
	body, err := c.getJSON(ctx, "/api/v1/events/tip")
	if err != nil {
		return 0, err
	}

	var resp struct {
		Tip uint64 `json:"tip"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return resp.Tip, nil
}

// ReadRange fetches log records with positions in [from, to], clipped to the
// log's actual bounds. An inverted or out-of-range window returns no records.
func (c *Client) ReadRange(ctx context.Context, from, to uint64) ([]Record, error) {
	body, err := c.getJSON(ctx, fmt.Sprintf("/api/v1/events?from=%d&to=%d", from, to))
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Events []Record `json:"events"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Events, nil
}

// LedgerOverview returns the chain length and current root hash.
func (c *Client) LedgerOverview(ctx context.Context) (*Overview, error) {
	body, err := c.getJSON(ctx, "/api/v1/ledger")
	if err != nil {
		return nil, err
	}

	var ov Overview
	if err := json.Unmarshal(body, &ov); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &ov, nil
}

// VerifyLedger asks the node to walk its full chain and report integrity.
func (c *Client) VerifyLedger(ctx context.Context) (*VerifyResult, error) {
	body, err := c.getJSON(ctx, "/api/v1/ledger/verify")
	if err != nil {
		return nil, err
	}

	var res VerifyResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &res, nil
}

// ── HTTP plumbing ────────────────────────────────────────────────────────

func (c *Client) getJSON(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeBase+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeBase+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// do executes an HTTP request, attaching the client's identity headers.
// Non-2xx responses come back as *APIError.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	if c.submitter != "" {
		req.Header.Set("X-Submitter", c.submitter)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: apiMessage(body)}
	}
	return body, nil
}

// apiMessage extracts the node's {"error": ...} message, falling back to the
// raw body.
func apiMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
