package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// LeaderLock is a best-effort lease held by one instance at a time.
type LeaderLock struct {
	rdb        *goredis.Client
	instanceID string
	key        string
	ttl        time.Duration
}

// NewLeaderLock creates a lease on key for this instance. instanceID must be unique per process.
func NewLeaderLock(rdb *goredis.Client, instanceID, key string, ttl time.Duration) *LeaderLock {
	return &LeaderLock{rdb: rdb, instanceID: instanceID, key: key, ttl: ttl}
}

// TryAcquire takes the lease if it is free, or renews it if this instance already holds it.
func (l *LeaderLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader lock: %w", err)
	}
	if ok {
		return true, nil
	}

	renewed, err := renewLockScript.Run(ctx, l.rdb, []string{l.key}, l.instanceID, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to renew leader lock: %w", err)
	}
	return renewed == 1, nil
}

// Release gives the lease up if this instance still holds it.
func (l *LeaderLock) Release(ctx context.Context) error {
	if err := releaseLockScript.Run(ctx, l.rdb, []string{l.key}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release leader lock: %w", err)
	}
	return nil
}
