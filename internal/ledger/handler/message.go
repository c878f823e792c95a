package handler

import (
	"net/http"

	"github.com/agentledger/agentledger/internal/identity"
	"github.com/agentledger/agentledger/internal/ledger/model"
	"github.com/agentledger/agentledger/internal/ledger/state"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageHandler exposes the messaging operations.
type MessageHandler struct {
	state  *state.Machine
	auth   gin.HandlerFunc
	logger *zap.Logger
}

// NewMessageHandler creates a MessageHandler. auth guards the mutating
// routes; pass nil to leave them open.
func NewMessageHandler(st *state.Machine, auth gin.HandlerFunc, logger *zap.Logger) *MessageHandler {
	if auth == nil {
		auth = noAuth
	}
	return &MessageHandler{state: st, auth: auth, logger: logger}
}

// Register mounts the message routes on the given router group.
func (h *MessageHandler) Register(rg *gin.RouterGroup) {
	messages := rg.Group("/messages")
	{
		messages.POST("", h.auth, h.SendMessage)
		messages.GET("/:id", h.GetMessage)
		messages.POST("/:id/responses", h.auth, h.RespondMessage)
	}
}

// SendMessage handles POST /messages — records an addressed message. The
// sender is resolved from the submitting identity's binding; unbound
// submitters send as the sentinel sender.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.state.Send(c.Request.Context(), req.ReceiverAgentID, req.Body, identity.SubmitterFromCtx(c))
	if err != nil {
		writeError(c, err)
		return
	}

	recordEventAppended(model.KindMessageSent, 1)
	c.JSON(http.StatusCreated, gin.H{"message_id": id})
}

// GetMessage handles GET /messages/:id.
func (h *MessageHandler) GetMessage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	msg, err := h.state.Message(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// RespondMessage handles POST /messages/:id/responses — records a reply
// addressed to the target agent. The message id is echoed from the path
// without being checked against prior sends.
func (h *MessageHandler) RespondMessage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req model.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.state.Respond(c.Request.Context(), id, req.TargetAgentID, req.Body, identity.SubmitterFromCtx(c)); err != nil {
		writeError(c, err)
		return
	}

	recordEventAppended(model.KindMessageResponded, 1)
	c.JSON(http.StatusCreated, gin.H{"status": "recorded"})
}
