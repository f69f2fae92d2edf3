package verification

import (
	"math"
	"time"

	"github.com/pscheid92/planverify/internal/domain"
)

const (
	maxAuthorityPoints = 25.0
	maxRecencyPoints   = 30.0
	maxSamplePoints    = 25.0
	maxAgreementPoints = 20.0

	// noVotesAgreementPoints is awarded when nobody has voted yet: neither corroborated nor contested.
	noVotesAgreementPoints = 10.0
)

var authorityPoints = map[domain.SourceKind]float64{
	domain.SourceAuthoritativeFeed: 25,
	domain.SourcePartnerAPI:        20,
	domain.SourceCrowdsource:       15,
	domain.SourceAutomated:         10,
}

// Score computes the confidence of a subject from its submissions at now.
// Expired submissions are ignored even if the caller passes them in.
func Score(subs []domain.Submission, category domain.Category, now time.Time, p Policy) domain.Confidence {
	active := activeOnly(subs, now)

	factors := domain.ConfidenceFactors{
		SourceAuthority: authorityFactor(active),
		Recency:         recencyFactor(active, now, p.FreshnessFor(category)),
		SampleSize:      sampleSizeFactor(len(active), p.MinVerifications),
		Agreement:       agreementFactor(active, p.MinAgreementRatio),
	}

	total := factors.SourceAuthority + factors.Recency + factors.SampleSize + factors.Agreement
	score := int(math.Round(total))
	score = max(0, min(100, score))
	if len(active) == 0 {
		score = 0
	}

	return domain.Confidence{
		Score:   score,
		Level:   levelFor(score, len(active), p.MinVerifications),
		Factors: factors,
	}
}

func authorityFactor(active []domain.Submission) float64 {
	best := 0.0
	for _, s := range active {
		best = max(best, authorityPoints[s.Source])
	}
	return best
}

func recencyFactor(active []domain.Submission, now time.Time, freshness time.Duration) float64 {
	newest, ok := newestCreatedAt(active)
	if !ok {
		return 0
	}
	return maxRecencyPoints * decay(newest, now, freshness)
}

// decay is 1 at createdAt and falls linearly to 0 at createdAt+freshness.
func decay(createdAt, now time.Time, freshness time.Duration) float64 {
	age := now.Sub(createdAt)
	if age <= 0 {
		return 1
	}
	if age >= freshness {
		return 0
	}
	return 1 - float64(age)/float64(freshness)
}

func sampleSizeFactor(count, minVerifications int) float64 {
	switch {
	case count <= 0:
		return 0
	case count >= minVerifications:
		return maxSamplePoints
	case count == 1:
		return 10
	default:
		return 15
	}
}

func agreementFactor(active []domain.Submission, minRatio float64) float64 {
	up, down := 0, 0
	for _, s := range active {
		up += s.Upvotes
		down += s.Downvotes
	}
	if len(active) == 0 {
		return 0
	}
	if up+down == 0 {
		return noVotesAgreementPoints
	}
	ratio := float64(up) / float64(up+down)
	if ratio < minRatio {
		return 0
	}
	return maxAgreementPoints * ratio
}

func levelFor(score, count, minVerifications int) domain.ConfidenceLevel {
	var level domain.ConfidenceLevel
	switch {
	case score >= 91:
		level = domain.LevelVeryHigh
	case score >= 76:
		level = domain.LevelHigh
	case score >= 51:
		level = domain.LevelMedium
	case score >= 26:
		level = domain.LevelLow
	default:
		level = domain.LevelVeryLow
	}

	if count < minVerifications && (level == domain.LevelHigh || level == domain.LevelVeryHigh) {
		return domain.LevelMedium
	}
	return level
}

func activeOnly(subs []domain.Submission, now time.Time) []domain.Submission {
	active := make([]domain.Submission, 0, len(subs))
	for _, s := range subs {
		if s.Active(now) {
			active = append(active, s)
		}
	}
	return active
}

func newestCreatedAt(subs []domain.Submission) (time.Time, bool) {
	var newest time.Time
	for _, s := range subs {
		if s.CreatedAt.After(newest) {
			newest = s.CreatedAt
		}
	}
	return newest, !newest.IsZero()
}
