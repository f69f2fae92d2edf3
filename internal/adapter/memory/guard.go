package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/planverify/internal/domain"
)

// GuardStore keeps duplicate guard keys with expiry in process memory.
type GuardStore struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	guards map[string]time.Time
}

var _ domain.GuardStore = (*GuardStore)(nil)

func NewGuardStore(clock clockwork.Clock) *GuardStore {
	return &GuardStore{clock: clock, guards: make(map[string]time.Time)}
}

// MarkIfAbsent returns the index of the first live key, or sets every key and returns -1.
func (g *GuardStore) MarkIfAbsent(ctx context.Context, keys []string, ttl time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	for i, key := range keys {
		if exp, ok := g.guards[key]; ok {
			if exp.After(now) {
				return i, nil
			}
			delete(g.guards, key)
		}
	}

	for _, key := range keys {
		g.guards[key] = now.Add(ttl)
	}
	return -1, nil
}

// Sweep drops expired guards and returns how many were removed.
func (g *GuardStore) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	removed := 0
	for key, exp := range g.guards {
		if !exp.After(now) {
			delete(g.guards, key)
			removed++
		}
	}
	return removed
}
