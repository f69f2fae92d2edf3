package verification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pscheid92/planverify/internal/adapter/metrics"
	"github.com/pscheid92/planverify/internal/domain"
)

// DuplicateCheck is the detector's answer for one submission attempt.
type DuplicateCheck struct {
	Duplicate bool
	// Dimension names the first identity dimension that matched an existing guard.
	Dimension string
}

// DuplicateDetector blocks repeat submissions for a subject from any already-seen identity dimension.
type DuplicateDetector struct {
	store   domain.GuardStore
	window  time.Duration
	timeout time.Duration
	metrics *metrics.IntegrityMetrics
}

// NewDuplicateDetector creates a detector over the given guard store.
func NewDuplicateDetector(store domain.GuardStore, policy Policy, m *metrics.IntegrityMetrics) *DuplicateDetector {
	return &DuplicateDetector{
		store:   store,
		window:  policy.DedupWindow,
		timeout: policy.StoreTimeout,
		metrics: m,
	}
}

// CheckAndMark rejects the attempt if any non-empty dimension already guards the subject, and
// otherwise guards every non-empty dimension for the dedup window in the same atomic step.
// A store failure is returned wrapped in domain.ErrStoreUnavailable.
func (d *DuplicateDetector) CheckAndMark(ctx context.Context, key domain.SubjectKey, dims []domain.IdentityDimension) (DuplicateCheck, error) {
	keys := make([]string, 0, len(dims))
	names := make([]string, 0, len(dims))
	for _, dim := range dims {
		if dim.Value == "" {
			continue
		}
		keys = append(keys, guardKey(key, dim))
		names = append(names, dim.Name)
	}

	if len(keys) == 0 {
		d.metrics.DuplicateChecks.WithLabelValues("unique", "").Inc()
		return DuplicateCheck{}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	idx, err := d.store.MarkIfAbsent(callCtx, keys, d.window)
	if err != nil {
		policy := DegradationFor(ComponentDuplicateDetector)
		d.metrics.Degraded.WithLabelValues(string(ComponentDuplicateDetector), string(policy)).Inc()
		d.metrics.DuplicateChecks.WithLabelValues("unavailable", "").Inc()
		slog.WarnContext(ctx, "Duplicate detector store unavailable, rejecting", "subject", key.String(), "error", err)
		return DuplicateCheck{}, fmt.Errorf("duplicate check for %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}

	if idx < 0 || idx >= len(names) {
		d.metrics.DuplicateChecks.WithLabelValues("unique", "").Inc()
		return DuplicateCheck{}, nil
	}

	d.metrics.DuplicateChecks.WithLabelValues("duplicate", names[idx]).Inc()
	return DuplicateCheck{Duplicate: true, Dimension: names[idx]}, nil
}

// guardKey hash-tags the subject so every guard of one subject lands on the same cluster slot.
func guardKey(key domain.SubjectKey, dim domain.IdentityDimension) string {
	return "dedup:{" + key.String() + "}:" + dim.Name + ":" + digest(dim.Value)
}
