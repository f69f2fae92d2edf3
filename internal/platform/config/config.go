package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pscheid92/planverify/internal/domain"
	"github.com/pscheid92/planverify/internal/verification"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	// RedisURL is optional; without it the process runs in local mode with in-memory counters.
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	AdminSecret string `env:"ADMIN_SECRET"`

	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" default:"500ms"`
	SubmissionTTL time.Duration `env:"SUBMISSION_TTL" default:"4320h"` // 180 days
	DedupWindow   time.Duration `env:"DEDUP_WINDOW" default:"720h"`    // 30 days

	RateLimitVerifyMax     int           `env:"RATE_LIMIT_VERIFY_MAX" default:"10"`
	RateLimitVerifyWindow  time.Duration `env:"RATE_LIMIT_VERIFY_WINDOW" default:"1h"`
	RateLimitVoteMax       int           `env:"RATE_LIMIT_VOTE_MAX" default:"10"`
	RateLimitVoteWindow    time.Duration `env:"RATE_LIMIT_VOTE_WINDOW" default:"1h"`
	RateLimitSearchMax     int           `env:"RATE_LIMIT_SEARCH_MAX" default:"100"`
	RateLimitSearchWindow  time.Duration `env:"RATE_LIMIT_SEARCH_WINDOW" default:"1h"`
	RateLimitDefaultMax    int           `env:"RATE_LIMIT_DEFAULT_MAX" default:"200"`
	RateLimitDefaultWindow time.Duration `env:"RATE_LIMIT_DEFAULT_WINDOW" default:"1h"`

	MinVerifications           int     `env:"MIN_VERIFICATIONS" default:"3"`
	MinConfidenceForTransition int     `env:"MIN_CONFIDENCE_FOR_TRANSITION" default:"60"`
	MajorityRatio              float64 `env:"MAJORITY_RATIO" default:"2.0"`
	MinAgreementRatio          float64 `env:"MIN_AGREEMENT_RATIO" default:"0.4"`
	VoteWeightFactor           float64 `env:"VOTE_WEIGHT_FACTOR" default:"0.5"`

	FreshnessHighChurn time.Duration `env:"FRESHNESS_HIGH_CHURN" default:"720h"`
	FreshnessStandard  time.Duration `env:"FRESHNESS_STANDARD" default:"1440h"`
	FreshnessStable    time.Duration `env:"FRESHNESS_STABLE" default:"2160h"`

	CleanupSchedule  string `env:"CLEANUP_SCHEDULE" default:"@hourly"`
	CleanupBatchSize int    `env:"CLEANUP_BATCH_SIZE" default:"1000"`
	RescoreSchedule  string `env:"RESCORE_SCHEDULE" default:"@every 6h"`

	CaptchaMinScore float64 `env:"CAPTCHA_MIN_SCORE" default:"0.5"`

	HTTPRateLimitRPS   float64 `env:"HTTP_RATE_LIMIT_RPS" default:"20"`
	HTTPRateLimitBurst int     `env:"HTTP_RATE_LIMIT_BURST" default:"40"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	if cfg.AppEnv == "production" {
		if mode := sslMode(cfg.DatabaseURL); mode == "disable" || mode == "allow" {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
		if cfg.AdminSecret != "" && len(cfg.AdminSecret) < 16 {
			return errors.New("ADMIN_SECRET must be at least 16 characters in production")
		}
	}

	if cfg.CaptchaMinScore < 0 || cfg.CaptchaMinScore > 1 {
		return fmt.Errorf("CAPTCHA_MIN_SCORE must be within 0..1, got %v", cfg.CaptchaMinScore)
	}
	if cfg.CleanupBatchSize < 1 {
		return fmt.Errorf("CLEANUP_BATCH_SIZE must be positive, got %d", cfg.CleanupBatchSize)
	}
	if cfg.HTTPRateLimitRPS <= 0 || cfg.HTTPRateLimitBurst < 1 {
		return errors.New("HTTP_RATE_LIMIT_RPS and HTTP_RATE_LIMIT_BURST must be positive")
	}

	if err := cfg.Policy().Validate(); err != nil {
		return fmt.Errorf("invalid engine policy: %w", err)
	}
	return nil
}

func sslMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Query().Get("sslmode"))
}

// LocalMode reports whether no shared counter store is configured.
func (c *Config) LocalMode() bool {
	return c.RedisURL == ""
}

// RateLimits projects the per-action limits into engine values.
func (c *Config) RateLimits() map[domain.ActionKind]domain.RateLimit {
	return map[domain.ActionKind]domain.RateLimit{
		domain.ActionVerify:  {MaxRequests: c.RateLimitVerifyMax, Window: c.RateLimitVerifyWindow},
		domain.ActionVote:    {MaxRequests: c.RateLimitVoteMax, Window: c.RateLimitVoteWindow},
		domain.ActionSearch:  {MaxRequests: c.RateLimitSearchMax, Window: c.RateLimitSearchWindow},
		domain.ActionDefault: {MaxRequests: c.RateLimitDefaultMax, Window: c.RateLimitDefaultWindow},
	}
}

// Policy projects the engine thresholds into a verification.Policy.
func (c *Config) Policy() verification.Policy {
	return verification.Policy{
		MinVerifications:           c.MinVerifications,
		MinConfidenceForTransition: c.MinConfidenceForTransition,
		MajorityRatio:              c.MajorityRatio,
		MinAgreementRatio:          c.MinAgreementRatio,
		VoteWeightFactor:           c.VoteWeightFactor,
		Freshness: map[domain.Category]time.Duration{
			domain.CategoryHighChurn: c.FreshnessHighChurn,
			domain.CategoryStandard:  c.FreshnessStandard,
			domain.CategoryStable:    c.FreshnessStable,
		},
		SubmissionTTL: c.SubmissionTTL,
		DedupWindow:   c.DedupWindow,
		StoreTimeout:  c.StoreTimeout,
		RateLimits:    c.RateLimits(),
	}
}
