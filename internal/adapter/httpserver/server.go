package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/planverify/internal/adapter/metrics"
	"github.com/pscheid92/planverify/internal/app"
	"github.com/pscheid92/planverify/internal/domain"
	"github.com/pscheid92/planverify/internal/platform/config"
)

type appService interface {
	SubmitVerification(ctx context.Context, cmd app.SubmitCommand) (domain.SubmitResult, error)
	Vote(ctx context.Context, cmd app.VoteCommand) (domain.VoteResult, error)
	GetSubjectState(ctx context.Context, key domain.SubjectKey) (domain.SubjectState, error)
	RunCleanup(ctx context.Context, dryRun bool, batchSize int) (domain.CleanupStats, error)
	RescoreAll(ctx context.Context, pageSize int) (domain.RescoreStats, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	app    appService
	clock  clockwork.Clock

	httpMetrics  *metrics.HTTPMetrics
	registry     *prometheus.Registry
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, app appService, clock clockwork.Clock, httpMetrics *metrics.HTTPMetrics, registry *prometheus.Registry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		clock:        clock,
		httpMetrics:  httpMetrics,
		registry:     registry,
		healthChecks: healthChecks,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
