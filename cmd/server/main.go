package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/planverify/internal/adapter/captcha"
	"github.com/pscheid92/planverify/internal/adapter/httpserver"
	"github.com/pscheid92/planverify/internal/adapter/memory"
	"github.com/pscheid92/planverify/internal/adapter/metrics"
	"github.com/pscheid92/planverify/internal/adapter/postgres"
	"github.com/pscheid92/planverify/internal/adapter/redis"
	"github.com/pscheid92/planverify/internal/app"
	"github.com/pscheid92/planverify/internal/domain"
	"github.com/pscheid92/planverify/internal/platform/config"
	"github.com/pscheid92/planverify/internal/platform/logging"
	"github.com/pscheid92/planverify/internal/platform/retry"
	"github.com/pscheid92/planverify/internal/verification"
	goredis "github.com/redis/go-redis/v9"
)

const (
	leaderLockKey = "planverify:sweeper:leader"
	leaderLockTTL = 15 * time.Minute
)

var startupRetry = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: time.Second,
	MaxBackoff:     10 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Dependency not ready, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

// counterStores are the engine's shared-state backends plus whatever the sweeper must prune
// locally when they live in process memory.
type counterStores struct {
	windows domain.SlidingWindowStore
	guards  domain.GuardStore
	leader  app.Leader
	sweeps  []app.LocalSweep
	redis   *goredis.Client
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, storeMetrics *metrics.StoreMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := retry.Do(ctx, startupRetry, retry.Always, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewMetricsTracer(storeMetrics))
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupCounterStores(cfg *config.Config, clock clockwork.Clock, storeMetrics *metrics.StoreMetrics) counterStores {
	if cfg.LocalMode() {
		slog.Warn("REDIS_URL not set, rate limits and duplicate guards are per-process only")
		windows := memory.NewSlidingWindowStore()
		guards := memory.NewGuardStore(clock)
		maxWindow := longestWindow(cfg.RateLimits())
		return counterStores{
			windows: windows,
			guards:  guards,
			leader:  app.LocalLeader{},
			sweeps: []app.LocalSweep{
				func(now time.Time) int { return windows.Sweep(now, maxWindow) },
				func(time.Time) int { return guards.Sweep() },
			},
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rdb, err := retry.Do(ctx, startupRetry, retry.Always, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, storeMetrics)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	return counterStores{
		windows: redis.NewSlidingWindowStore(rdb),
		guards:  redis.NewGuardStore(rdb),
		leader:  redis.NewLeaderLock(rdb, instanceID(), leaderLockKey, leaderLockTTL),
		redis:   rdb,
	}
}

func longestWindow(limits map[domain.ActionKind]domain.RateLimit) time.Duration {
	var longest time.Duration
	for _, l := range limits {
		longest = max(longest, l.Window)
	}
	return longest
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "-" + uuid.NewString()
}

func healthChecks(pool *pgxpool.Pool, rdb *goredis.Client) []httpserver.HealthCheck {
	checks := []httpserver.HealthCheck{
		{Name: "postgres", Store: "record_store", Check: pool.Ping},
	}
	if rdb != nil {
		checks = append(checks, httpserver.HealthCheck{
			Name:  "redis",
			Store: "counter_store",
			Degrades: map[string]string{
				string(verification.ComponentRateLimiter):       string(verification.DegradationFor(verification.ComponentRateLimiter)),
				string(verification.ComponentDuplicateDetector): string(verification.DegradationFor(verification.ComponentDuplicateDetector)),
			},
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	return checks
}

func runGracefulShutdown(srv *httpserver.Server, sweeper *app.Sweeper) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := sweeper.Stop(shutdownCtx); err != nil {
			slog.Error("Sweeper shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "local_mode", cfg.LocalMode())

	registry := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)
	integrityMetrics := metrics.NewIntegrityMetrics(registry)
	storeMetrics := metrics.NewStoreMetrics(registry)

	pool := setupDB(cfg, storeMetrics)
	defer pool.Close()

	stores := setupCounterStores(cfg, clock, storeMetrics)
	if stores.redis != nil {
		defer func() { _ = stores.redis.Close() }()
	}

	submissions := postgres.NewSubmissionRepo(pool)
	states := postgres.NewSubjectStateRepo(pool)
	catalog := postgres.NewCatalogRepo(pool)

	policy := cfg.Policy()
	limiter := verification.NewRateLimiter(stores.windows, policy, clock, integrityMetrics)
	detector := verification.NewDuplicateDetector(stores.guards, policy, integrityMetrics)
	engine := verification.NewEngine(submissions, states, catalog, limiter, detector, policy, clock, integrityMetrics)

	appSvc := app.NewService(engine, catalog, captcha.NewStatic(1.0), cfg.CaptchaMinScore)

	sweeper, err := app.NewSweeper(engine, stores.leader, clock, integrityMetrics, app.SweeperConfig{
		CleanupSchedule: cfg.CleanupSchedule,
		RescoreSchedule: cfg.RescoreSchedule,
		BatchSize:       cfg.CleanupBatchSize,
	}, stores.sweeps...)
	if err != nil {
		slog.Error("Failed to create sweeper", "error", err)
		os.Exit(1)
	}
	sweeper.Start()

	srv := httpserver.NewServer(cfg, appSvc, clock, httpMetrics, registry, healthChecks(pool, stores.redis))
	done := runGracefulShutdown(srv, sweeper)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
