package redis

import (
	"context"
	"fmt"

	"github.com/pscheid92/planverify/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses a Redis URL, installs the circuit breaker and metrics hooks and verifies the
// connection. m may be nil in tests.
func NewClient(ctx context.Context, redisURL string, m *metrics.StoreMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if m != nil {
		rdb.AddHook(NewCircuitBreakerHook(m))
		rdb.AddHook(&MetricsHook{metrics: m})
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
