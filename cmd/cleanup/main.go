// Command cleanup runs one expiry sweep (and optionally a rescore pass) against the database
// and exits. It is meant for cron jobs and for operators checking what a sweep would remove.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/planverify/internal/adapter/memory"
	"github.com/pscheid92/planverify/internal/adapter/metrics"
	"github.com/pscheid92/planverify/internal/adapter/postgres"
	"github.com/pscheid92/planverify/internal/platform/config"
	"github.com/pscheid92/planverify/internal/platform/logging"
	"github.com/pscheid92/planverify/internal/verification"
)

func main() {
	var (
		dryRun    = flag.Bool("dry-run", false, "Count expired rows without deleting them")
		batchSize = flag.Int("batch-size", 0, "Rows deleted per statement (default CLEANUP_BATCH_SIZE)")
		rescore   = flag.Bool("rescore", false, "Also recompute every stored subject state")
		timeout   = flag.Duration("timeout", 30*time.Minute, "Overall deadline")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if *batchSize <= 0 {
		*batchSize = cfg.CleanupBatchSize
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, *dryRun, *batchSize, *rescore); err != nil {
		slog.Error("Cleanup failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, dryRun bool, batchSize int, rescore bool) error {
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("Connected to database", "url", redactURL(cfg.DatabaseURL))

	// Cleanup only recomputes; the admission stores are never consulted.
	clock := clockwork.NewRealClock()
	integrity := metrics.NewIntegrityMetrics(prometheus.NewRegistry())
	policy := cfg.Policy()
	catalog := postgres.NewCatalogRepo(pool)
	engine := verification.NewEngine(
		postgres.NewSubmissionRepo(pool),
		postgres.NewSubjectStateRepo(pool),
		catalog,
		verification.NewRateLimiter(memory.NewSlidingWindowStore(), policy, clock, integrity),
		verification.NewDuplicateDetector(memory.NewGuardStore(clock), policy, integrity),
		policy, clock, integrity,
	)

	stats, err := engine.RunCleanup(ctx, dryRun, batchSize)
	if err != nil {
		return err
	}
	slog.Info("Cleanup summary",
		"dry_run", stats.DryRun,
		"expired_submissions", stats.ExpiredSubmissions,
		"expired_states", stats.ExpiredStates,
		"deleted_submissions", stats.DeletedSubmissions,
		"deleted_states", stats.DeletedStates,
		"rescored", stats.Rescored,
		"rescore_failures", stats.RescoreFailures)

	if !rescore || dryRun {
		return nil
	}

	rs, err := engine.RescoreAll(ctx, 0)
	if err != nil {
		return err
	}
	slog.Info("Rescore summary", "scanned", rs.Scanned, "changed", rs.Changed, "failures", rs.Failures)
	return nil
}

// redactURL hides the password in a connection URL for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
