// Package handler exposes the ledger node's HTTP API: the mutating
// operations (register, send, respond, rate), the read-only queries, and the
// event-log read surface consumed by indexers.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/agentledger/agentledger/internal/ledger/model"
	"github.com/gin-gonic/gin"
)

// writeError maps a domain error onto its HTTP status.
func writeError(c *gin.Context, err error) {
	var valErr *model.ErrValidation
	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Msg})
	case errors.Is(err, model.ErrRaterNotRegistered):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrAgentNotFound),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrNoRatingExists):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrAlreadyRated):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrCannotRateSelf):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}

// parseID parses a uint64 path parameter, writing a 400 on failure.
func parseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return 0, false
	}
	return id, true
}

// noAuth is the middleware used when a handler is constructed without an
// identity requirement (local and test deployments).
func noAuth(c *gin.Context) { c.Next() }
