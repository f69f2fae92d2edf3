package domain

import (
	"context"
	"time"
)

// IdentityDimension is one independently tracked facet of a submitter's identity.
type IdentityDimension struct {
	Name  string
	Value string
}

const (
	DimensionNetwork = "network"
	DimensionContact = "contact"
)

// GuardStore atomically checks a set of guard keys and, only when none exist, sets all of them
// with the given TTL. It returns the index of the first key that already existed, or -1.
type GuardStore interface {
	MarkIfAbsent(ctx context.Context, keys []string, ttl time.Duration) (int, error)
}
