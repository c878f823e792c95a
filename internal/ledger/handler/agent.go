package handler

import (
	"net/http"

	"github.com/agentledger/agentledger/internal/identity"
	"github.com/agentledger/agentledger/internal/ledger/model"
	"github.com/agentledger/agentledger/internal/ledger/state"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AgentHandler exposes the registry and reputation operations.
type AgentHandler struct {
	state  *state.Machine
	auth   gin.HandlerFunc
	logger *zap.Logger
}

// NewAgentHandler creates an AgentHandler. auth guards the mutating routes;
// pass nil to leave them open.
func NewAgentHandler(st *state.Machine, auth gin.HandlerFunc, logger *zap.Logger) *AgentHandler {
	if auth == nil {
		auth = noAuth
	}
	return &AgentHandler{state: st, auth: auth, logger: logger}
}

// Register mounts the agent routes on the given router group.
func (h *AgentHandler) Register(rg *gin.RouterGroup) {
	agents := rg.Group("/agents")
	{
		agents.POST("", h.auth, h.RegisterAgent)
		agents.GET("", h.ListAgents)
		agents.GET("/count", h.CountAgents)
		agents.GET("/top", h.TopRated)
		agents.GET("/:id", h.GetAgent)
		agents.GET("/:id/reputation", h.GetReputation)
		agents.POST("/:id/ratings", h.auth, h.RateAgent)
		agents.GET("/:id/ratings/:rater", h.GetRating)
	}
}

// RegisterAgent handles POST /agents — registers a new agent for the
// submitting identity.
func (h *AgentHandler) RegisterAgent(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.state.Register(c.Request.Context(), req.Name, req.Role, req.MetadataRef, identity.SubmitterFromCtx(c))
	if err != nil {
		writeError(c, err)
		return
	}

	setAgentsGauge(float64(h.state.Count(c.Request.Context())))
	recordEventAppended(model.KindAgentRegistered, 1)
	c.JSON(http.StatusCreated, gin.H{"agent_id": id})
}

// ListAgents handles GET /agents — all agents in ascending id order.
func (h *AgentHandler) ListAgents(c *gin.Context) {
	agents := h.state.ListAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"agents": agents,
		"count":  len(agents),
	})
}

// CountAgents handles GET /agents/count.
func (h *AgentHandler) CountAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": h.state.Count(c.Request.Context())})
}

// TopRated handles GET /agents/top — agents by descending trust score.
func (h *AgentHandler) TopRated(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": h.state.TopRated(c.Request.Context())})
}

// GetAgent handles GET /agents/:id.
func (h *AgentHandler) GetAgent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	agent, err := h.state.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// GetReputation handles GET /agents/:id/reputation.
func (h *AgentHandler) GetReputation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	trust, total, positive, err := h.state.Reputation(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"agent_id":           id,
		"trust_score":        trust,
		"total_interactions": total,
		"positive_ratings":   positive,
	})
}

// RateAgent handles POST /agents/:id/ratings — records the submitting
// agent's verdict on the target.
func (h *AgentHandler) RateAgent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req model.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.state.Rate(c.Request.Context(), id, req.Positive, req.Comment, identity.SubmitterFromCtx(c)); err != nil {
		writeError(c, err)
		return
	}

	recordEventAppended(model.KindAgentRated, 1)
	recordEventAppended(model.KindTrustScoreUpdated, 1)
	c.JSON(http.StatusCreated, gin.H{"status": "recorded"})
}

// GetRating handles GET /agents/:id/ratings/:rater.
func (h *AgentHandler) GetRating(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rater, ok := parseID(c, "rater")
	if !ok {
		return
	}
	rating, err := h.state.Rating(c.Request.Context(), id, rater)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rating)
}
