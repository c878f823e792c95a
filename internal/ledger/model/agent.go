package model

import (
	"fmt"
	"time"
)

// Role classifies the purpose of a registered agent.
type Role string

const (
	RoleGeneric Role = "GENERIC"
	RoleChat    Role = "CHAT"
)

// ParseRole maps a caller-supplied role string onto a Role. The empty string
// selects RoleGeneric so that minimal registrations stay valid.
func ParseRole(s string) (Role, error) {
	switch s {
	case "", string(RoleGeneric):
		return RoleGeneric, nil
	case string(RoleChat):
		return RoleChat, nil
	default:
		return "", &ErrValidation{Msg: fmt.Sprintf("unknown role %q", s)}
	}
}

// Agent is the core domain model: a registered identity plus its live
// reputation counters. All of it is derivable by folding the event log.
type Agent struct {
	ID                uint64    `json:"agent_id"`
	Name              string    `json:"name"`
	Role              Role      `json:"role"`
	MetadataRef       string    `json:"metadata_ref,omitempty"`
	TrustScore        uint64    `json:"trust_score"`
	TotalInteractions uint64    `json:"total_interactions"`
	PositiveRatings   uint64    `json:"positive_ratings"`
	RegisteredAt      time.Time `json:"registered_at"`
}

// RegisterRequest is the payload for registering a new agent. Name is not
// required: the ledger accepts empty names and rejects only roles it cannot
// represent.
type RegisterRequest struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	MetadataRef string `json:"metadata_ref"`
}
