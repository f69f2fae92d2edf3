package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/planverify/internal/adapter/metrics"
	"github.com/pscheid92/planverify/internal/domain"
	"golang.org/x/sync/singleflight"
)

const sharedReadTimeout = 10 * time.Second

// Engine orchestrates admission, persistence and state recomputation.
type Engine struct {
	submissions domain.SubmissionRepository
	states      domain.SubjectStateRepository
	catalog     domain.SubjectCatalog
	limiter     *RateLimiter
	detector    *DuplicateDetector
	policy      Policy
	clock       clockwork.Clock
	metrics     *metrics.IntegrityMetrics
	readGroup   singleflight.Group
}

var _ domain.Engine = (*Engine)(nil)

// NewEngine creates the integrity engine.
func NewEngine(
	submissions domain.SubmissionRepository,
	states domain.SubjectStateRepository,
	catalog domain.SubjectCatalog,
	limiter *RateLimiter,
	detector *DuplicateDetector,
	policy Policy,
	clock clockwork.Clock,
	m *metrics.IntegrityMetrics,
) *Engine {
	return &Engine{
		submissions: submissions,
		states:      states,
		catalog:     catalog,
		limiter:     limiter,
		detector:    detector,
		policy:      policy,
		clock:       clock,
		metrics:     m,
	}
}

// SubmitVerification admits, persists and scores one submission.
// Rejections are reported on the result; only persistence failures are returned as errors.
func (e *Engine) SubmitVerification(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	decision := e.limiter.Admit(ctx, domain.ActionVerify, rateIdentity(req.Submitter))
	if !decision.Allowed {
		e.metrics.Submissions.WithLabelValues("rate_limited").Inc()
		return domain.SubmitResult{Reason: domain.RejectRateLimited, RetryAt: decision.ResetAt, Degraded: decision.Degraded}, nil
	}

	check, err := e.detector.CheckAndMark(ctx, req.Subject.Key, IdentityDimensions(req.Submitter))
	if err != nil {
		e.metrics.Submissions.WithLabelValues("store_unavailable").Inc()
		return domain.SubmitResult{Reason: domain.RejectStoreUnavailable, Degraded: decision.Degraded}, nil
	}
	if check.Duplicate {
		e.metrics.Submissions.WithLabelValues("duplicate").Inc()
		slog.InfoContext(ctx, "Duplicate submission rejected", "subject", req.Subject.Key.String(), "dimension", check.Dimension)
		return domain.SubmitResult{Reason: domain.RejectDuplicate, Degraded: decision.Degraded}, nil
	}

	now := e.clock.Now()
	expiresAt := now.Add(e.policy.SubmissionTTL)
	sub := domain.Submission{
		ID:        uuid.New(),
		Subject:   req.Subject.Key,
		Outcome:   req.Outcome,
		Source:    req.Source,
		CreatedAt: now,
		ExpiresAt: &expiresAt,
	}
	if err := e.submissions.Create(ctx, sub); err != nil {
		e.metrics.Submissions.WithLabelValues("error").Inc()
		return domain.SubmitResult{}, fmt.Errorf("create submission: %w", err)
	}
	e.metrics.Submissions.WithLabelValues("admitted").Inc()

	result := domain.SubmitResult{Admitted: true, SubmissionID: sub.ID, Degraded: decision.Degraded}

	state, _, err := e.recompute(ctx, req.Subject, "submission")
	if err != nil {
		slog.ErrorContext(ctx, "Recompute after submission failed", "subject", req.Subject.Key.String(), "error", err)
		return result, nil
	}
	result.State = &state
	return result, nil
}

// Vote records a vote on a live submission and rescores its subject.
func (e *Engine) Vote(ctx context.Context, req domain.VoteRequest) (domain.VoteResult, error) {
	decision := e.limiter.Admit(ctx, domain.ActionVote, rateIdentity(req.Voter))
	if !decision.Allowed {
		e.metrics.Votes.WithLabelValues("rate_limited").Inc()
		return domain.VoteResult{Reason: domain.RejectRateLimited, RetryAt: decision.ResetAt, Degraded: decision.Degraded}, nil
	}

	key, change, err := e.submissions.RecordVote(ctx, req.SubmissionID, VoterKey(req.Voter), req.Direction, e.clock.Now())
	if err != nil {
		if !errors.Is(err, domain.ErrSubmissionNotFound) {
			e.metrics.Votes.WithLabelValues("error").Inc()
		}
		return domain.VoteResult{}, fmt.Errorf("record vote: %w", err)
	}

	if change == domain.VoteUnchanged {
		e.metrics.Votes.WithLabelValues("duplicate").Inc()
		return domain.VoteResult{Reason: domain.RejectDuplicateVote, Change: change, Degraded: decision.Degraded}, nil
	}
	e.metrics.Votes.WithLabelValues(change.String()).Inc()

	result := domain.VoteResult{Admitted: true, Change: change, Degraded: decision.Degraded}

	subject, err := e.catalog.Lookup(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "Subject lookup after vote failed", "subject", key.String(), "error", err)
		return result, nil
	}
	if _, _, err := e.recompute(ctx, subject, "vote"); err != nil {
		slog.ErrorContext(ctx, "Recompute after vote failed", "subject", key.String(), "error", err)
	}
	return result, nil
}

// GetSubjectState returns the current state of a subject, recomputed from its non-expired
// submissions. A stale stored row is repaired on the way.
func (e *Engine) GetSubjectState(ctx context.Context, key domain.SubjectKey) (domain.SubjectState, error) {
	subject, err := e.catalog.Lookup(ctx, key)
	if err != nil {
		return domain.SubjectState{}, err
	}

	// The shared read outlives any one caller, so it runs on a detached context with its own
	// deadline. A caller that gives up stops waiting without failing the others.
	ch := e.readGroup.DoChan(key.String(), func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		return e.readThrough(readCtx, subject)
	})

	select {
	case <-ctx.Done():
		return domain.SubjectState{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.SubjectState{}, res.Err
		}
		return res.Val.(domain.SubjectState), nil
	}
}

func (e *Engine) readThrough(ctx context.Context, subject domain.Subject) (domain.SubjectState, error) {
	now := e.clock.Now()

	subs, err := e.submissions.ListActive(ctx, subject.Key, now)
	if err != nil {
		slog.WarnContext(ctx, "Submissions unavailable, serving stored state", "subject", subject.Key.String(), "error", err)
		return e.storedState(ctx, subject, now)
	}

	prev, err := e.states.Get(ctx, subject.Key)
	if err != nil && !errors.Is(err, domain.ErrStateNotFound) {
		slog.WarnContext(ctx, "Stored state unavailable", "subject", subject.Key.String(), "error", err)
		prev = nil
	}

	state := Derive(subject, subs, now, e.policy)
	if prev == nil && len(subs) == 0 {
		return domain.UnknownState(subject.Key, subject.Category, now), nil
	}
	if prev != nil && !changed(*prev, state) {
		state.UpdatedAt = prev.UpdatedAt
		return state, nil
	}

	if err := e.states.Upsert(ctx, state); err != nil {
		slog.WarnContext(ctx, "Failed to repair stale state", "subject", subject.Key.String(), "error", err)
	} else {
		e.metrics.Recomputes.WithLabelValues("read", "repaired").Inc()
		e.recordTransition(prev, state)
	}
	return state, nil
}

func (e *Engine) storedState(ctx context.Context, subject domain.Subject, now time.Time) (domain.SubjectState, error) {
	stored, err := e.states.Get(ctx, subject.Key)
	if errors.Is(err, domain.ErrStateNotFound) {
		return domain.UnknownState(subject.Key, subject.Category, now), nil
	}
	if err != nil {
		return domain.SubjectState{}, fmt.Errorf("get subject state: %w", err)
	}
	if stored.Expired(now) {
		return domain.UnknownState(subject.Key, subject.Category, now), nil
	}
	return *stored, nil
}

// recompute derives a subject's state and writes it. Zero-activity subjects without a stored row
// are not written. It reports whether the verdict or score moved.
func (e *Engine) recompute(ctx context.Context, subject domain.Subject, trigger string) (domain.SubjectState, bool, error) {
	start := e.clock.Now()
	defer func() {
		e.metrics.RecomputeDuration.Observe(e.clock.Since(start).Seconds())
	}()

	now := e.clock.Now()
	subs, err := e.submissions.ListActive(ctx, subject.Key, now)
	if err != nil {
		e.metrics.Recomputes.WithLabelValues(trigger, "error").Inc()
		return domain.SubjectState{}, false, fmt.Errorf("list active submissions: %w", err)
	}

	prev, err := e.states.Get(ctx, subject.Key)
	if errors.Is(err, domain.ErrStateNotFound) {
		prev = nil
	} else if err != nil {
		e.metrics.Recomputes.WithLabelValues(trigger, "error").Inc()
		return domain.SubjectState{}, false, fmt.Errorf("get subject state: %w", err)
	}

	state := Derive(subject, subs, now, e.policy)
	if prev == nil && len(subs) == 0 {
		e.metrics.Recomputes.WithLabelValues(trigger, "skipped").Inc()
		return domain.UnknownState(subject.Key, subject.Category, now), false, nil
	}

	if err := e.states.Upsert(ctx, state); err != nil {
		e.metrics.Recomputes.WithLabelValues(trigger, "error").Inc()
		return domain.SubjectState{}, false, fmt.Errorf("upsert subject state: %w", err)
	}

	e.metrics.Recomputes.WithLabelValues(trigger, "ok").Inc()
	e.recordTransition(prev, state)
	moved := prev == nil || prev.Status != state.Status || prev.Confidence.Score != state.Confidence.Score
	return state, moved, nil
}

func (e *Engine) recordTransition(prev *domain.SubjectState, next domain.SubjectState) {
	from := domain.StatusUnknown
	if prev != nil {
		from = prev.Status
	}
	if from != next.Status {
		e.metrics.StatusTransitions.WithLabelValues(string(from), string(next.Status)).Inc()
	}
}

// changed reports whether a freshly derived state differs from the stored one in anything but UpdatedAt.
func changed(stored, derived domain.SubjectState) bool {
	return stored.Status != derived.Status ||
		stored.Category != derived.Category ||
		stored.Confidence.Score != derived.Confidence.Score ||
		stored.Confidence.Level != derived.Confidence.Level ||
		stored.VerificationCount != derived.VerificationCount ||
		stored.AcceptsCount != derived.AcceptsCount ||
		stored.RejectsCount != derived.RejectsCount ||
		!sameTime(stored.LastVerifiedAt, derived.LastVerifiedAt) ||
		!sameTime(stored.ExpiresAt, derived.ExpiresAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
