package handler

import (
	"net/http"
	"strconv"

	"github.com/agentledger/agentledger/internal/ledger/eventlog"
	"github.com/agentledger/agentledger/internal/ledger/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LedgerHandler exposes the read-only event-log surface: the tip and record
// ranges consumed by indexers, plus the chain integrity endpoints.
type LedgerHandler struct {
	log    eventlog.Log
	logger *zap.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(log eventlog.Log, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{log: log, logger: logger}
}

// Register mounts the event-log routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	events := rg.Group("/events")
	{
		events.GET("/tip", h.Tip)
		events.GET("", h.Range)
	}
	ledger := rg.Group("/ledger")
	{
		ledger.GET("", h.Overview)
		ledger.GET("/verify", h.Verify)
	}
}

// Tip handles GET /events/tip — the last assigned log position.
func (h *LedgerHandler) Tip(c *gin.Context) {
	tip, err := h.log.CurrentTip(c.Request.Context())
	if err != nil {
		h.logger.Error("read tip", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read log tip"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tip": tip})
}

// Range handles GET /events?from=&to= — an inclusive record range, clipped
// to the tip. from defaults to 1 and to defaults to the current tip.
func (h *LedgerHandler) Range(c *gin.Context) {
	ctx := c.Request.Context()

	from, ok := parseQueryUint(c, "from", 1)
	if !ok {
		return
	}
	to, ok := parseQueryUint(c, "to", 0)
	if !ok {
		return
	}
	if to == 0 {
		tip, err := h.log.CurrentTip(ctx)
		if err != nil {
			h.logger.Error("read tip", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read log tip"})
			return
		}
		to = tip
	}

	recs, err := h.log.ReadRange(ctx, from, to)
	if err != nil {
		h.logger.Error("read range", zap.Uint64("from", from), zap.Uint64("to", to), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read log range"})
		return
	}
	if recs == nil {
		recs = []model.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"events": recs})
}

// Overview handles GET /ledger — the chain length and current root hash.
func (h *LedgerHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	tip, err := h.log.CurrentTip(ctx)
	if err != nil {
		h.logger.Error("read tip", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read log tip"})
		return
	}
	root, err := h.log.Root(ctx)
	if err != nil {
		h.logger.Error("read root", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read log root"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": tip,
		"root":    root,
	})
}

// Verify handles GET /ledger/verify — walks the full chain and reports
// integrity.
func (h *LedgerHandler) Verify(c *gin.Context) {
	if err := h.log.Verify(c.Request.Context()); err != nil {
		h.logger.Warn("log integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// parseQueryUint parses an optional uint64 query parameter, writing a 400 on
// malformed input. def is returned when the parameter is absent.
func parseQueryUint(c *gin.Context, name string, def uint64) (uint64, bool) {
	s := c.Query(name)
	if s == "" {
		return def, true
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return 0, false
	}
	return v, true
}
