package app

import (
	"context"
	"errors"
	"sync"

	"github.com/pscheid92/planverify/internal/domain"
)

type mockEngine struct {
	submitFn     func(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error)
	voteFn       func(ctx context.Context, req domain.VoteRequest) (domain.VoteResult, error)
	getStateFn   func(ctx context.Context, key domain.SubjectKey) (domain.SubjectState, error)
	runCleanupFn func(ctx context.Context, dryRun bool, batchSize int) (domain.CleanupStats, error)
	rescoreAllFn func(ctx context.Context, pageSize int) (domain.RescoreStats, error)
}

func (m *mockEngine) SubmitVerification(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	return domain.SubmitResult{Admitted: true}, nil
}

func (m *mockEngine) Vote(ctx context.Context, req domain.VoteRequest) (domain.VoteResult, error) {
	if m.voteFn != nil {
		return m.voteFn(ctx, req)
	}
	return domain.VoteResult{Admitted: true}, nil
}

func (m *mockEngine) GetSubjectState(ctx context.Context, key domain.SubjectKey) (domain.SubjectState, error) {
	if m.getStateFn != nil {
		return m.getStateFn(ctx, key)
	}
	return domain.SubjectState{}, errors.New("not implemented")
}

func (m *mockEngine) RunCleanup(ctx context.Context, dryRun bool, batchSize int) (domain.CleanupStats, error) {
	if m.runCleanupFn != nil {
		return m.runCleanupFn(ctx, dryRun, batchSize)
	}
	return domain.CleanupStats{DryRun: dryRun}, nil
}

func (m *mockEngine) RescoreAll(ctx context.Context, pageSize int) (domain.RescoreStats, error) {
	if m.rescoreAllFn != nil {
		return m.rescoreAllFn(ctx, pageSize)
	}
	return domain.RescoreStats{}, nil
}

type mockCatalog struct {
	lookupFn func(ctx context.Context, key domain.SubjectKey) (domain.Subject, error)
}

func (m *mockCatalog) Lookup(ctx context.Context, key domain.SubjectKey) (domain.Subject, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, key)
	}
	return domain.Subject{Key: key, Category: domain.CategoryStandard}, nil
}

type mockCaptcha struct {
	verdict domain.CaptchaVerdict
	err     error
}

func (m *mockCaptcha) Verify(context.Context, string, string) (domain.CaptchaVerdict, error) {
	return m.verdict, m.err
}

type mockLeader struct {
	mu       sync.Mutex
	leader   bool
	err      error
	acquires int
	released bool
}

func (m *mockLeader) TryAcquire(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquires++
	return m.leader, m.err
}

func (m *mockLeader) Release(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
	return nil
}
