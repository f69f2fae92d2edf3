package app

import "context"

// Leader decides which instance runs the periodic sweeps.
type Leader interface {
	// TryAcquire takes or renews leadership and reports whether this instance holds it.
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LocalLeader is always the leader. Used when no shared store is configured.
type LocalLeader struct{}

var _ Leader = LocalLeader{}

func (LocalLeader) TryAcquire(context.Context) (bool, error) { return true, nil }
func (LocalLeader) Release(context.Context) error            { return nil }
