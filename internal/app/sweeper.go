package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/planverify/internal/adapter/metrics"
	"github.com/pscheid92/planverify/internal/domain"
	"github.com/pscheid92/planverify/internal/platform/correlation"
	"github.com/robfig/cron/v3"
)

// Job names a periodic sweep.
type Job string

const (
	JobCleanup Job = "cleanup"
	JobRescore Job = "rescore"
)

const defaultRunTimeout = 10 * time.Minute

// LocalSweep prunes in-process state and returns how many entries it dropped.
type LocalSweep func(now time.Time) int

// SweeperConfig configures the periodic passes. Empty schedules disable that job.
type SweeperConfig struct {
	CleanupSchedule string
	RescoreSchedule string
	BatchSize       int
	RescorePageSize int
	RunTimeout      time.Duration
}

// Sweeper runs cleanup and rescore on cron schedules. A pass only runs on the instance that
// holds leadership at that moment, and a job never overlaps with itself.
//
// Schedules fire on the wall clock in UTC: robfig/cron keeps its own timer loop and takes no
// injectable clock. Local pruning cutoffs come from the injected clock and the engine keeps its
// own, so tests drive passes through RunOnce.
type Sweeper struct {
	engine  domain.Engine
	leader  Leader
	clock   clockwork.Clock
	metrics *metrics.IntegrityMetrics
	cfg     SweeperConfig
	local   []LocalSweep

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSweeper(engine domain.Engine, leader Leader, clock clockwork.Clock, m *metrics.IntegrityMetrics, cfg SweeperConfig, local ...LocalSweep) (*Sweeper, error) {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{
		engine:  engine,
		leader:  leader,
		clock:   clock,
		metrics: m,
		cfg:     cfg,
		local:   local,
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cronLogger{}))),
		ctx:     ctx,
		cancel:  cancel,
	}

	for job, schedule := range map[Job]string{JobCleanup: cfg.CleanupSchedule, JobRescore: cfg.RescoreSchedule} {
		if schedule == "" {
			continue
		}
		if _, err := s.cron.AddFunc(schedule, func() { _ = s.RunOnce(s.ctx, job) }); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid %s schedule %q: %w", job, schedule, err)
		}
	}
	return s, nil
}

// Start begins running scheduled passes in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	slog.Info("Sweeper started", "cleanup_schedule", s.cfg.CleanupSchedule, "rescore_schedule", s.cfg.RescoreSchedule)
}

// Stop cancels in-flight passes, waits for them to return and gives up leadership.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
	case <-ctx.Done():
		return fmt.Errorf("sweeper did not stop in time: %w", ctx.Err())
	}

	if err := s.leader.Release(ctx); err != nil {
		slog.Warn("Failed to release sweeper leadership", "error", err)
	}
	return nil
}

// RunOnce runs one pass of job now if this instance is the leader.
func (s *Sweeper) RunOnce(ctx context.Context, job Job) error {
	ctx = correlation.WithID(ctx, correlation.NewID())
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	leader, err := s.leader.TryAcquire(ctx)
	if err != nil {
		s.metrics.SweepRuns.WithLabelValues(string(job), "leader_error").Inc()
		slog.WarnContext(ctx, "Sweep skipped, leadership unknown", "job", job, "error", err)
		return err
	}
	if !leader {
		s.metrics.SweepRuns.WithLabelValues(string(job), "not_leader").Inc()
		slog.DebugContext(ctx, "Sweep skipped, another instance is leader", "job", job)
		return nil
	}

	if err := s.run(ctx, job); err != nil {
		s.metrics.SweepRuns.WithLabelValues(string(job), "error").Inc()
		slog.ErrorContext(ctx, "Sweep failed", "job", job, "error", err)
		return err
	}
	s.metrics.SweepRuns.WithLabelValues(string(job), "ok").Inc()
	return nil
}

func (s *Sweeper) run(ctx context.Context, job Job) error {
	switch job {
	case JobCleanup:
		for _, sweep := range s.local {
			if n := sweep(s.clock.Now()); n > 0 {
				slog.DebugContext(ctx, "Pruned local counters", "entries", n)
			}
		}
		stats, err := s.engine.RunCleanup(ctx, false, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Cleanup finished",
			"deleted_submissions", stats.DeletedSubmissions,
			"deleted_states", stats.DeletedStates,
			"rescored", stats.Rescored)
		return nil
	case JobRescore:
		stats, err := s.engine.RescoreAll(ctx, s.cfg.RescorePageSize)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Rescore finished", "scanned", stats.Scanned, "changed", stats.Changed, "failures", stats.Failures)
		return nil
	default:
		return errors.New("unknown sweep job: " + string(job))
	}
}

// cronLogger routes cron's own diagnostics to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
