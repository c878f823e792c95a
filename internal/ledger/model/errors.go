package model

import "errors"

var (
	// ErrAgentNotFound — the referenced agent id was never assigned.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrRaterNotRegistered — the submitting identity has no agent binding.
	ErrRaterNotRegistered = errors.New("rater is not a registered agent")
	// ErrCannotRateSelf — an agent may not rate itself.
	ErrCannotRateSelf = errors.New("agent cannot rate itself")
	// ErrAlreadyRated — at most one rating per (target, rater) pair.
	ErrAlreadyRated = errors.New("rater has already rated this agent")
	// ErrNoRatingExists — no rating recorded for the (target, rater) pair.
	ErrNoRatingExists = errors.New("no rating exists for this agent and rater")
	// ErrNotFound — the referenced message id was never assigned.
	ErrNotFound = errors.New("message not found")
)

// ErrValidation is returned when the caller supplies input the ledger cannot
// represent. Handlers map it to HTTP 400.
type ErrValidation struct{ Msg string }

func (e *ErrValidation) Error() string { return e.Msg }
