package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntegrityMetrics holds Prometheus metrics for the verification integrity engine.
type IntegrityMetrics struct {
	Submissions       *prometheus.CounterVec
	Votes             *prometheus.CounterVec
	RateDecisions     *prometheus.CounterVec
	DuplicateChecks   *prometheus.CounterVec
	Degraded          *prometheus.CounterVec
	Recomputes        *prometheus.CounterVec
	RecomputeDuration prometheus.Histogram
	StatusTransitions *prometheus.CounterVec
	CleanupRows       *prometheus.CounterVec
	CleanupDuration   prometheus.Histogram
	SweepRuns         *prometheus.CounterVec
}

// NewIntegrityMetrics creates and registers engine metrics on the given registry.
func NewIntegrityMetrics(reg prometheus.Registerer) *IntegrityMetrics {
	m := &IntegrityMetrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "submissions_total",
			Help:      "Verification submissions, by result.",
		}, []string{"result"}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "votes_total",
			Help:      "Votes on submissions, by result.",
		}, []string{"result"}),
		RateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions, by action and decision.",
		}, []string{"action", "decision"}),
		DuplicateChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "duplicate_checks_total",
			Help:      "Duplicate detector outcomes, by outcome and matched dimension.",
		}, []string{"outcome", "dimension"}),
		Degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "degraded_decisions_total",
			Help:      "Decisions taken without the shared store, by component and applied policy.",
		}, []string{"component", "policy"}),
		Recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "recomputes_total",
			Help:      "Subject state recomputations, by trigger and result.",
		}, []string{"trigger", "result"}),
		RecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "recompute_duration_seconds",
			Help:      "Duration of one subject state recomputation.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "status_transitions_total",
			Help:      "Acceptance status transitions, by from and to status.",
		}, []string{"from", "to"}),
		CleanupRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "deleted_rows_total",
			Help:      "Rows hard-deleted by cleanup, by kind.",
		}, []string{"kind"}),
		CleanupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "duration_seconds",
			Help:      "Duration of a cleanup run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		SweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Scheduled sweep passes, by job and result.",
		}, []string{"job", "result"}),
	}

	reg.MustRegister(
		m.Submissions, m.Votes, m.RateDecisions, m.DuplicateChecks, m.Degraded,
		m.Recomputes, m.RecomputeDuration, m.StatusTransitions,
		m.CleanupRows, m.CleanupDuration, m.SweepRuns,
	)
	return m
}
