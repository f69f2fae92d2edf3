package verification

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/planverify/internal/adapter/memory"
	"github.com/pscheid92/planverify/internal/adapter/metrics"
	"github.com/pscheid92/planverify/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store down")

// --- in-memory repositories ---

type fakeSubmissionRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*domain.Submission
	votes   map[uuid.UUID]map[string]domain.VoteDirection
	listErr error

	// listGate, when set, holds ListActive until closed or the call's context ends.
	listGate    chan struct{}
	listStarted chan struct{}
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		rows:  make(map[uuid.UUID]*domain.Submission),
		votes: make(map[uuid.UUID]map[string]domain.VoteDirection),
	}
}

func (r *fakeSubmissionRepo) Create(_ context.Context, s domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[s.ID] = &s
	return nil
}

func (r *fakeSubmissionRepo) ListActive(ctx context.Context, key domain.SubjectKey, now time.Time) ([]domain.Submission, error) {
	if r.listGate != nil {
		select {
		case r.listStarted <- struct{}{}:
		default:
		}
		select {
		case <-r.listGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Submission
	for _, s := range r.rows {
		if s.Subject == key && s.Active(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeSubmissionRepo) RecordVote(_ context.Context, id uuid.UUID, voterKey string, dir domain.VoteDirection, now time.Time) (domain.SubjectKey, domain.VoteChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok || !s.Active(now) {
		return domain.SubjectKey{}, 0, domain.ErrSubmissionNotFound
	}
	if r.votes[id] == nil {
		r.votes[id] = make(map[string]domain.VoteDirection)
	}
	prev, voted := r.votes[id][voterKey]
	switch {
	case !voted:
		r.votes[id][voterKey] = dir
		bump(s, dir, 1)
		return s.Subject, domain.VoteRecorded, nil
	case prev == dir:
		return s.Subject, domain.VoteUnchanged, nil
	default:
		r.votes[id][voterKey] = dir
		bump(s, prev, -1)
		bump(s, dir, 1)
		return s.Subject, domain.VoteSwitched, nil
	}
}

func bump(s *domain.Submission, dir domain.VoteDirection, delta int) {
	if dir == domain.VoteUp {
		s.Upvotes += delta
	} else {
		s.Downvotes += delta
	}
}

func (r *fakeSubmissionRepo) CountExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.rows {
		if s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			n++
		}
	}
	return n, nil
}

func (r *fakeSubmissionRepo) DeleteExpired(_ context.Context, now time.Time, limit int) ([]domain.SubjectKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []domain.SubjectKey
	for id, s := range r.rows {
		if len(keys) == limit {
			break
		}
		if s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			keys = append(keys, s.Subject)
			delete(r.rows, id)
			delete(r.votes, id)
		}
	}
	return keys, nil
}

func (r *fakeSubmissionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type fakeStateRepo struct {
	mu        sync.Mutex
	rows      map[domain.SubjectKey]domain.SubjectState
	upsertErr error
	upserts   int
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{rows: make(map[domain.SubjectKey]domain.SubjectState)}
}

func (r *fakeStateRepo) Get(_ context.Context, key domain.SubjectKey) (*domain.SubjectState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[key]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	return &s, nil
}

func (r *fakeStateRepo) Upsert(_ context.Context, s domain.SubjectState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts++
	r.rows[s.Subject] = s
	return nil
}

func (r *fakeStateRepo) ListKeys(_ context.Context, after domain.SubjectKey, limit int) ([]domain.SubjectKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []domain.SubjectKey
	for k := range r.rows {
		if keyLess(after, k) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

func keyLess(a, b domain.SubjectKey) bool {
	if a.ProviderID != b.ProviderID {
		return a.ProviderID < b.ProviderID
	}
	return a.PlanID < b.PlanID
}

func (r *fakeStateRepo) CountExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.rows {
		if s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			n++
		}
	}
	return n, nil
}

func (r *fakeStateRepo) DeleteExpired(_ context.Context, now time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, s := range r.rows {
		if n == limit {
			break
		}
		if s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

type fakeCatalog struct {
	categories map[domain.SubjectKey]domain.Category
}

func (c fakeCatalog) Lookup(_ context.Context, key domain.SubjectKey) (domain.Subject, error) {
	cat, ok := c.categories[key]
	if !ok {
		return domain.Subject{}, domain.ErrInvalidSubject
	}
	return domain.Subject{Key: key, Category: cat}, nil
}

// --- failing counter stores ---

type failingWindowStore struct{ err error }

func (f failingWindowStore) Hit(context.Context, string, time.Time, time.Duration, int) (domain.WindowUsage, error) {
	return domain.WindowUsage{}, f.err
}

type failingGuardStore struct{ err error }

func (f failingGuardStore) MarkIfAbsent(context.Context, []string, time.Duration) (int, error) {
	return -1, f.err
}

type blockingWindowStore struct{}

func (blockingWindowStore) Hit(ctx context.Context, _ string, _ time.Time, _ time.Duration, _ int) (domain.WindowUsage, error) {
	<-ctx.Done()
	return domain.WindowUsage{}, ctx.Err()
}

type blockingGuardStore struct{}

func (blockingGuardStore) MarkIfAbsent(ctx context.Context, _ []string, _ time.Duration) (int, error) {
	<-ctx.Done()
	return -1, ctx.Err()
}

// --- harness ---

var (
	subjectX = domain.SubjectKey{ProviderID: "prov-1", PlanID: "plan-1"}
	subjectY = domain.SubjectKey{ProviderID: "prov-2", PlanID: "plan-1"}
)

type harness struct {
	clock       *clockwork.FakeClock
	submissions *fakeSubmissionRepo
	states      *fakeStateRepo
	metrics     *metrics.IntegrityMetrics
	policy      Policy
	engine      *Engine
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	window domain.SlidingWindowStore
	guard  domain.GuardStore
	policy Policy
}

func withWindowStore(s domain.SlidingWindowStore) harnessOption {
	return func(c *harnessConfig) { c.window = s }
}

func withGuardStore(s domain.GuardStore) harnessOption {
	return func(c *harnessConfig) { c.guard = s }
}

func withPolicy(p Policy) harnessOption {
	return func(c *harnessConfig) { c.policy = p }
}

func newHarness(opts ...harnessOption) *harness {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	cfg := harnessConfig{
		window: memory.NewSlidingWindowStore(),
		guard:  memory.NewGuardStore(clock),
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := metrics.NewIntegrityMetrics(prometheus.NewRegistry())
	subs := newFakeSubmissionRepo()
	states := newFakeStateRepo()
	catalog := fakeCatalog{categories: map[domain.SubjectKey]domain.Category{
		subjectX: domain.CategoryStandard,
		subjectY: domain.CategoryHighChurn,
	}}

	limiter := NewRateLimiter(cfg.window, cfg.policy, clock, m)
	detector := NewDuplicateDetector(cfg.guard, cfg.policy, m)
	engine := NewEngine(subs, states, catalog, limiter, detector, cfg.policy, clock, m)

	return &harness{clock: clock, submissions: subs, states: states, metrics: m, policy: cfg.policy, engine: engine}
}

func (h *harness) submit(t *testing.T, key domain.SubjectKey, outcome domain.Outcome, ip string) domain.SubmitResult {
	t.Helper()
	cat := domain.CategoryStandard
	if key == subjectY {
		cat = domain.CategoryHighChurn
	}
	res, err := h.engine.SubmitVerification(context.Background(), domain.SubmitRequest{
		Subject:   domain.Subject{Key: key, Category: cat},
		Outcome:   outcome,
		Source:    domain.SourceCrowdsource,
		Submitter: domain.SubmitterIdentity{NetworkAddress: ip},
	})
	require.NoError(t, err)
	return res
}

func at(t time.Time) *time.Time { return &t }
