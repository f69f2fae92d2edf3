package verification

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/planverify/internal/adapter/metrics"
	"github.com/pscheid92/planverify/internal/domain"
)

// RateLimiter is per-identity, per-action sliding-window admission control.
type RateLimiter struct {
	store   domain.SlidingWindowStore
	limits  func(domain.ActionKind) domain.RateLimit
	timeout time.Duration
	clock   clockwork.Clock
	metrics *metrics.IntegrityMetrics
}

// NewRateLimiter creates a rate limiter over the given window store.
func NewRateLimiter(store domain.SlidingWindowStore, policy Policy, clock clockwork.Clock, m *metrics.IntegrityMetrics) *RateLimiter {
	return &RateLimiter{
		store:   store,
		limits:  policy.LimitFor,
		timeout: policy.StoreTimeout,
		clock:   clock,
		metrics: m,
	}
}

// Admit records one attempt by identity and reports whether it fits the action's window.
// Rejected attempts also occupy the window. Store failures never reach the caller.
func (l *RateLimiter) Admit(ctx context.Context, action domain.ActionKind, identity string) domain.RateDecision {
	limit := l.limits(action)
	now := l.clock.Now()

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	usage, err := l.store.Hit(callCtx, rateLimitKey(action, identity), now, limit.Window, limit.MaxRequests)
	if err != nil {
		return l.degrade(ctx, action, limit, now, err)
	}

	decision := domain.RateDecision{
		Allowed:   usage.Count <= limit.MaxRequests,
		Remaining: max(0, limit.MaxRequests-usage.Count),
		ResetAt:   usage.Blocking.Add(limit.Window),
	}
	if usage.Blocking.IsZero() {
		decision.ResetAt = now.Add(limit.Window)
	}

	result := "allowed"
	if !decision.Allowed {
		result = "rejected"
	}
	l.metrics.RateDecisions.WithLabelValues(string(action), result).Inc()
	return decision
}

func (l *RateLimiter) degrade(ctx context.Context, action domain.ActionKind, limit domain.RateLimit, now time.Time, err error) domain.RateDecision {
	policy := DegradationFor(ComponentRateLimiter)
	l.metrics.Degraded.WithLabelValues(string(ComponentRateLimiter), string(policy)).Inc()
	l.metrics.RateDecisions.WithLabelValues(string(action), "degraded").Inc()

	if policy != FailOpen {
		slog.WarnContext(ctx, "Rate limiter store unavailable, rejecting", "action", action, "error", err)
		return domain.RateDecision{Allowed: false, ResetAt: now.Add(limit.Window), Degraded: true}
	}

	slog.WarnContext(ctx, "Rate limiter store unavailable, admitting", "action", action, "error", err)
	return domain.RateDecision{
		Allowed:   true,
		Remaining: limit.MaxRequests,
		ResetAt:   now.Add(limit.Window),
		Degraded:  true,
	}
}

func rateLimitKey(action domain.ActionKind, identity string) string {
	return "ratelimit:" + string(action) + ":" + digest(identity)
}
