package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/pscheid92/planverify/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// GuardStore keeps duplicate guards as plain keys with a PX expiry.
type GuardStore struct {
	rdb *goredis.Client
}

var _ domain.GuardStore = (*GuardStore)(nil)

func NewGuardStore(rdb *goredis.Client) *GuardStore {
	return &GuardStore{rdb: rdb}
}

func (g *GuardStore) MarkIfAbsent(ctx context.Context, keys []string, ttl time.Duration) (int, error) {
	if len(keys) == 0 {
		return -1, nil
	}

	idx, err := markIfAbsentScript.Run(ctx, g.rdb, keys, ttl.Milliseconds()).Int()
	if err != nil {
		return -1, fmt.Errorf("mark guard script failed: %w", err)
	}
	return idx - 1, nil
}
