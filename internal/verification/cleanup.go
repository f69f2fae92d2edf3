package verification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/planverify/internal/domain"
)

const (
	DefaultCleanupBatchSize = 1000
	DefaultRescorePageSize  = 500
)

// RunCleanup hard-deletes expired submissions and subject states in bounded batches, then
// recomputes every subject that lost submissions. Rows without an expiry are never touched.
// Running it again with no new expirations deletes nothing.
func (e *Engine) RunCleanup(ctx context.Context, dryRun bool, batchSize int) (domain.CleanupStats, error) {
	if batchSize <= 0 {
		batchSize = DefaultCleanupBatchSize
	}

	start := e.clock.Now()
	defer func() {
		e.metrics.CleanupDuration.Observe(e.clock.Since(start).Seconds())
	}()

	now := start
	stats := domain.CleanupStats{DryRun: dryRun}

	expiredSubs, err := e.submissions.CountExpired(ctx, now)
	if err != nil {
		return stats, fmt.Errorf("count expired submissions: %w", err)
	}
	expiredStates, err := e.states.CountExpired(ctx, now)
	if err != nil {
		return stats, fmt.Errorf("count expired subject states: %w", err)
	}
	stats.ExpiredSubmissions = expiredSubs
	stats.ExpiredStates = expiredStates
	stats.ExpiredCount = expiredSubs + expiredStates

	if dryRun {
		slog.InfoContext(ctx, "Cleanup dry run", "expired_submissions", expiredSubs, "expired_states", expiredStates)
		return stats, nil
	}

	affected := make(map[domain.SubjectKey]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		keys, err := e.submissions.DeleteExpired(ctx, now, batchSize)
		if err != nil {
			return stats, fmt.Errorf("delete expired submissions: %w", err)
		}
		for _, k := range keys {
			affected[k] = struct{}{}
		}
		stats.DeletedSubmissions += int64(len(keys))
		e.metrics.CleanupRows.WithLabelValues("submission").Add(float64(len(keys)))
		slog.DebugContext(ctx, "Deleted expired submission batch", "rows", len(keys))
		if len(keys) < batchSize {
			break
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, err := e.states.DeleteExpired(ctx, now, batchSize)
		if err != nil {
			return stats, fmt.Errorf("delete expired subject states: %w", err)
		}
		stats.DeletedStates += int64(n)
		e.metrics.CleanupRows.WithLabelValues("subject_state").Add(float64(n))
		slog.DebugContext(ctx, "Deleted expired subject state batch", "rows", n)
		if n < batchSize {
			break
		}
	}
	stats.DeletedCount = stats.DeletedSubmissions + stats.DeletedStates

	for key := range affected {
		subject, err := e.catalog.Lookup(ctx, key)
		if err != nil {
			stats.RescoreFailures++
			slog.WarnContext(ctx, "Subject lookup after cleanup failed", "subject", key.String(), "error", err)
			continue
		}
		if _, _, err := e.recompute(ctx, subject, "cleanup"); err != nil {
			stats.RescoreFailures++
			slog.ErrorContext(ctx, "Recompute after cleanup failed", "subject", key.String(), "error", err)
			continue
		}
		stats.Rescored++
	}

	slog.InfoContext(ctx, "Cleanup completed",
		"deleted_submissions", stats.DeletedSubmissions,
		"deleted_states", stats.DeletedStates,
		"rescored", stats.Rescored,
		"rescore_failures", stats.RescoreFailures)
	return stats, nil
}

// RescoreAll walks every stored subject state and recomputes it, so recency decay advances
// for subjects with no new activity.
func (e *Engine) RescoreAll(ctx context.Context, pageSize int) (domain.RescoreStats, error) {
	if pageSize <= 0 {
		pageSize = DefaultRescorePageSize
	}

	var stats domain.RescoreStats
	var after domain.SubjectKey
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		keys, err := e.states.ListKeys(ctx, after, pageSize)
		if err != nil {
			return stats, fmt.Errorf("list subject keys: %w", err)
		}

		for _, key := range keys {
			stats.Scanned++
			subject, err := e.catalog.Lookup(ctx, key)
			if err != nil {
				stats.Failures++
				slog.WarnContext(ctx, "Subject lookup during rescore failed", "subject", key.String(), "error", err)
				continue
			}
			_, moved, err := e.recompute(ctx, subject, "rescore")
			if err != nil {
				stats.Failures++
				slog.ErrorContext(ctx, "Rescore failed", "subject", key.String(), "error", err)
				continue
			}
			if moved {
				stats.Changed++
			}
		}

		if len(keys) < pageSize {
			break
		}
		after = keys[len(keys)-1]
	}

	slog.InfoContext(ctx, "Rescore completed", "scanned", stats.Scanned, "changed", stats.Changed, "failures", stats.Failures)
	return stats, nil
}
