package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/planverify/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// idleGrace keeps a window key around slightly longer than the window itself.
const idleGrace = time.Minute

// SlidingWindowStore keeps rate-limit windows as sorted sets scored by millisecond timestamps.
type SlidingWindowStore struct {
	rdb *goredis.Client
}

var _ domain.SlidingWindowStore = (*SlidingWindowStore)(nil)

func NewSlidingWindowStore(rdb *goredis.Client) *SlidingWindowStore {
	return &SlidingWindowStore{rdb: rdb}
}

func (s *SlidingWindowStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (domain.WindowUsage, error) {
	res, err := slidingWindowScript.Run(ctx, s.rdb, []string{key},
		now.UnixMilli(),
		window.Milliseconds(),
		uuid.NewString(),
		(window + idleGrace).Milliseconds(),
		limit,
	).Slice()
	if err != nil {
		return domain.WindowUsage{}, fmt.Errorf("sliding window script failed: %w", err)
	}
	if len(res) != 3 {
		return domain.WindowUsage{}, fmt.Errorf("sliding window script returned %d values", len(res))
	}

	count, ok := res[0].(int64)
	if !ok {
		return domain.WindowUsage{}, fmt.Errorf("unexpected window count type %T", res[0])
	}
	oldest, err := parseScore(res[1])
	if err != nil {
		return domain.WindowUsage{}, fmt.Errorf("failed to parse oldest score: %w", err)
	}
	blocking, err := parseScore(res[2])
	if err != nil {
		return domain.WindowUsage{}, fmt.Errorf("failed to parse blocking score: %w", err)
	}

	return domain.WindowUsage{
		Count:    int(count),
		Oldest:   oldest,
		Blocking: blocking,
	}, nil
}

// parseScore converts a sorted-set score reply (milliseconds, returned as a string) to a time.
func parseScore(v any) (time.Time, error) {
	str, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected score type %T", v)
	}
	ms, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(ms)), nil
}
