package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pscheid92/planverify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowStore_CountsWithinWindow(t *testing.T) {
	s := NewSlidingWindowStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		usage, err := s.Hit(ctx, "k", base.Add(time.Duration(i)*time.Minute), time.Hour, 10)
		require.NoError(t, err)
		assert.Equal(t, i+1, usage.Count)
		assert.Equal(t, base, usage.Oldest)
	}
}

func TestSlidingWindowStore_DropsTokensAtWindowEdge(t *testing.T) {
	s := NewSlidingWindowStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Hit(ctx, "k", base, time.Hour, 10)
	require.NoError(t, err)
	_, err = s.Hit(ctx, "k", base.Add(30*time.Minute), time.Hour, 10)
	require.NoError(t, err)

	usage, err := s.Hit(ctx, "k", base.Add(time.Hour), time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Count)
	assert.Equal(t, base.Add(30*time.Minute), usage.Oldest)
}

func TestSlidingWindowStore_KeysAreIndependent(t *testing.T) {
	s := NewSlidingWindowStore()
	ctx := context.Background()
	now := time.Now()

	_, _ = s.Hit(ctx, "a", now, time.Hour, 10)
	_, _ = s.Hit(ctx, "a", now, time.Hour, 10)
	usage, err := s.Hit(ctx, "b", now, time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Count)
}

func TestSlidingWindowStore_CancelledContext(t *testing.T) {
	s := NewSlidingWindowStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Hit(ctx, "k", time.Now(), time.Hour, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSlidingWindowStore_ConcurrentHitsAreCounted(t *testing.T) {
	s := NewSlidingWindowStore()
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Hit(ctx, "k", now, time.Hour, 10)
		}()
	}
	wg.Wait()

	usage, err := s.Hit(ctx, "k", now, time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 51, usage.Count)
}

func TestSlidingWindowStore_Sweep(t *testing.T) {
	s := NewSlidingWindowStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, _ = s.Hit(ctx, "old", base, time.Hour, 10)
	_, _ = s.Hit(ctx, "fresh", base.Add(90*time.Minute), time.Hour, 10)

	removed := s.Sweep(base.Add(2*time.Hour), time.Hour)
	assert.Equal(t, 1, removed)

	usage, err := s.Hit(ctx, "fresh", base.Add(2*time.Hour), time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Count)
}

func TestSlidingWindowStore_BlockingTokenPastLimit(t *testing.T) {
	s := NewSlidingWindowStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	var usage domain.WindowUsage
	for i := range 6 {
		var err error
		usage, err = s.Hit(ctx, "k", base.Add(time.Duration(i)*time.Minute), time.Hour, 3)
		require.NoError(t, err)
	}

	assert.Equal(t, 6, usage.Count)
	assert.Equal(t, base, usage.Oldest)
	assert.Equal(t, base.Add(3*time.Minute), usage.Blocking)
}

func TestSlidingWindowStore_BlockingTokenUnderLimitIsOldest(t *testing.T) {
	s := NewSlidingWindowStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, _ = s.Hit(context.Background(), "k", base, time.Hour, 10)
	usage, err := s.Hit(context.Background(), "k", base.Add(time.Minute), time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, base, usage.Blocking)
}
