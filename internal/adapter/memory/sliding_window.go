package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pscheid92/planverify/internal/domain"
)

// SlidingWindowStore keeps token timestamps per key in process memory.
type SlidingWindowStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

var _ domain.SlidingWindowStore = (*SlidingWindowStore)(nil)

func NewSlidingWindowStore() *SlidingWindowStore {
	return &SlidingWindowStore{windows: make(map[string][]time.Time)}
}

// Hit trims tokens at or before now-window, adds a token at now and returns the usage.
func (s *SlidingWindowStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (domain.WindowUsage, error) {
	if err := ctx.Err(); err != nil {
		return domain.WindowUsage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := trim(s.windows[key], now.Add(-window))
	idx := sort.Search(len(tokens), func(i int) bool { return tokens[i].After(now) })
	tokens = append(tokens, time.Time{})
	copy(tokens[idx+1:], tokens[idx:])
	tokens[idx] = now
	s.windows[key] = tokens

	blocking := min(len(tokens)-1, max(0, len(tokens)-limit))
	return domain.WindowUsage{Count: len(tokens), Oldest: tokens[0], Blocking: tokens[blocking]}, nil
}

// Sweep drops windows whose newest token is older than maxAge.
func (s *SlidingWindowStore) Sweep(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, tokens := range s.windows {
		if len(tokens) == 0 || !tokens[len(tokens)-1].After(now.Add(-maxAge)) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// trim drops sorted tokens at or before cutoff.
func trim(tokens []time.Time, cutoff time.Time) []time.Time {
	idx := sort.Search(len(tokens), func(i int) bool { return tokens[i].After(cutoff) })
	return append(tokens[:0:0], tokens[idx:]...)
}
