package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/planverify/internal/adapter/metrics"
	"github.com/pscheid92/planverify/internal/app"
	"github.com/pscheid92/planverify/internal/domain"
	"github.com/pscheid92/planverify/internal/platform/config"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockAppService struct {
	submitFn   func(ctx context.Context, cmd app.SubmitCommand) (domain.SubmitResult, error)
	voteFn     func(ctx context.Context, cmd app.VoteCommand) (domain.VoteResult, error)
	getStateFn func(ctx context.Context, key domain.SubjectKey) (domain.SubjectState, error)
	cleanupFn  func(ctx context.Context, dryRun bool, batchSize int) (domain.CleanupStats, error)
	rescoreFn  func(ctx context.Context, pageSize int) (domain.RescoreStats, error)
}

func (m *mockAppService) SubmitVerification(ctx context.Context, cmd app.SubmitCommand) (domain.SubmitResult, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, cmd)
	}
	return domain.SubmitResult{}, errors.New("not implemented")
}

func (m *mockAppService) Vote(ctx context.Context, cmd app.VoteCommand) (domain.VoteResult, error) {
	if m.voteFn != nil {
		return m.voteFn(ctx, cmd)
	}
	return domain.VoteResult{}, errors.New("not implemented")
}

func (m *mockAppService) GetSubjectState(ctx context.Context, key domain.SubjectKey) (domain.SubjectState, error) {
	if m.getStateFn != nil {
		return m.getStateFn(ctx, key)
	}
	return domain.SubjectState{}, errors.New("not implemented")
}

func (m *mockAppService) RunCleanup(ctx context.Context, dryRun bool, batchSize int) (domain.CleanupStats, error) {
	if m.cleanupFn != nil {
		return m.cleanupFn(ctx, dryRun, batchSize)
	}
	return domain.CleanupStats{}, errors.New("not implemented")
}

func (m *mockAppService) RescoreAll(ctx context.Context, pageSize int) (domain.RescoreStats, error) {
	if m.rescoreFn != nil {
		return m.rescoreFn(ctx, pageSize)
	}
	return domain.RescoreStats{}, errors.New("not implemented")
}

func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		AdminSecret:        "admin-secret-for-tests",
		CleanupBatchSize:   1000,
		HTTPRateLimitRPS:   1000,
		HTTPRateLimitBurst: 1000,
	}
}

func newTestServer(t *testing.T, app appService, opts ...func(*Server)) *Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	srv := &Server{
		echo:        echo.New(),
		config:      testConfig(),
		app:         app,
		clock:       clockwork.NewFakeClockAt(testNow),
		httpMetrics: metrics.NewHTTPMetrics(reg),
		registry:    reg,
		startTime:   testNow,
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()
	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withConfig(mutate func(*config.Config)) func(*Server) {
	return func(s *Server) {
		mutate(s.config)
	}
}

// serve runs a request through the full middleware chain.
func serve(srv *Server, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "203.0.113.7:4321"
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}
