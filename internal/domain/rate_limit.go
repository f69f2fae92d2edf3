package domain

import (
	"context"
	"time"
)

// ActionKind selects which rate limit applies to a request.
type ActionKind string

const (
	ActionVerify  ActionKind = "verify"
	ActionVote    ActionKind = "vote"
	ActionSearch  ActionKind = "search"
	ActionDefault ActionKind = "default"
)

// RateLimit is the sliding-window budget of one action kind.
type RateLimit struct {
	MaxRequests int
	Window      time.Duration
}

// RateDecision is the outcome of one admission check.
type RateDecision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// Degraded is set when the shared store could not be consulted and the request was admitted anyway.
	Degraded bool
}

// WindowUsage is the state of a sliding window right after a token was added.
type WindowUsage struct {
	Count  int
	Oldest time.Time
	// Blocking is the token at index Count-limit (the oldest token when under the limit). Once it
	// leaves the window the next attempt fits, whatever was rejected in between.
	Blocking time.Time
}

// SlidingWindowStore atomically trims a window, adds a token, counts and refreshes expiry in one
// round trip. Implementations must never split these steps across calls.
type SlidingWindowStore interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (WindowUsage, error)
}
