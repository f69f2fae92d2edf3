package verification

import (
	"fmt"
	"time"

	"github.com/pscheid92/planverify/internal/domain"
)

// Degradation is what a component does when the shared counter store cannot answer.
type Degradation string

const (
	FailOpen       Degradation = "fail_open"
	FailClosed     Degradation = "fail_closed"
	LogAndContinue Degradation = "log_and_continue"
)

// Component names a part of the engine that talks to a store.
type Component string

const (
	ComponentRateLimiter       Component = "rate_limiter"
	ComponentDuplicateDetector Component = "duplicate_detector"
	ComponentRecompute         Component = "recompute"
)

// degradationPolicy is declared once here; call sites look it up instead of choosing per error.
var degradationPolicy = map[Component]Degradation{
	ComponentRateLimiter:       FailOpen,
	ComponentDuplicateDetector: FailClosed,
	ComponentRecompute:         LogAndContinue,
}

// DegradationFor returns the degradation policy of a component.
func DegradationFor(c Component) Degradation {
	if d, ok := degradationPolicy[c]; ok {
		return d
	}
	return FailClosed
}

// Policy holds every tunable threshold of the engine.
type Policy struct {
	MinVerifications           int
	MinConfidenceForTransition int
	MajorityRatio              float64
	MinAgreementRatio          float64
	VoteWeightFactor           float64
	Freshness                  map[domain.Category]time.Duration

	SubmissionTTL time.Duration
	DedupWindow   time.Duration
	StoreTimeout  time.Duration

	RateLimits map[domain.ActionKind]domain.RateLimit
}

// DefaultPolicy returns the thresholds the engine ships with.
func DefaultPolicy() Policy {
	return Policy{
		MinVerifications:           3,
		MinConfidenceForTransition: 60,
		MajorityRatio:              2.0,
		MinAgreementRatio:          0.4,
		VoteWeightFactor:           0.5,
		Freshness: map[domain.Category]time.Duration{
			domain.CategoryHighChurn: 30 * 24 * time.Hour,
			domain.CategoryStandard:  60 * 24 * time.Hour,
			domain.CategoryStable:    90 * 24 * time.Hour,
		},
		SubmissionTTL: 180 * 24 * time.Hour,
		DedupWindow:   30 * 24 * time.Hour,
		StoreTimeout:  500 * time.Millisecond,
		RateLimits: map[domain.ActionKind]domain.RateLimit{
			domain.ActionVerify:  {MaxRequests: 10, Window: time.Hour},
			domain.ActionVote:    {MaxRequests: 10, Window: time.Hour},
			domain.ActionSearch:  {MaxRequests: 100, Window: time.Hour},
			domain.ActionDefault: {MaxRequests: 200, Window: time.Hour},
		},
	}
}

// FreshnessFor returns the recency decay horizon of a category. Unknown categories use standard.
func (p Policy) FreshnessFor(c domain.Category) time.Duration {
	if d, ok := p.Freshness[c]; ok && d > 0 {
		return d
	}
	if d, ok := p.Freshness[domain.CategoryStandard]; ok && d > 0 {
		return d
	}
	return 60 * 24 * time.Hour
}

// LimitFor returns the rate limit of an action, falling back to the default action.
func (p Policy) LimitFor(action domain.ActionKind) domain.RateLimit {
	if l, ok := p.RateLimits[action]; ok {
		return l
	}
	return p.RateLimits[domain.ActionDefault]
}

// Validate rejects thresholds the engine cannot work with.
func (p Policy) Validate() error {
	if p.MinVerifications < 1 {
		return fmt.Errorf("min verifications must be at least 1, got %d", p.MinVerifications)
	}
	if p.MinConfidenceForTransition < 0 || p.MinConfidenceForTransition > 100 {
		return fmt.Errorf("min confidence for transition must be within 0..100, got %d", p.MinConfidenceForTransition)
	}
	if p.MajorityRatio <= 1 {
		return fmt.Errorf("majority ratio must be greater than 1, got %v", p.MajorityRatio)
	}
	if p.MinAgreementRatio < 0 || p.MinAgreementRatio > 1 {
		return fmt.Errorf("min agreement ratio must be within 0..1, got %v", p.MinAgreementRatio)
	}
	if p.VoteWeightFactor < 0 || p.VoteWeightFactor >= 1 {
		return fmt.Errorf("vote weight factor must be within [0, 1), got %v", p.VoteWeightFactor)
	}
	if p.SubmissionTTL <= 0 || p.DedupWindow <= 0 || p.StoreTimeout <= 0 {
		return fmt.Errorf("submission TTL, dedup window and store timeout must be positive")
	}
	for action, l := range p.RateLimits {
		if l.MaxRequests < 1 || l.Window <= 0 {
			return fmt.Errorf("rate limit for %s must allow at least one request per positive window", action)
		}
	}
	if _, ok := p.RateLimits[domain.ActionDefault]; !ok {
		return fmt.Errorf("rate limit for %s is required", domain.ActionDefault)
	}
	return nil
}
