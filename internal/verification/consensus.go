package verification

import (
	"time"

	"github.com/pscheid92/planverify/internal/domain"
)

const minRecencyWeight = 0.1

var authorityWeights = map[domain.SourceKind]float64{
	domain.SourceAuthoritativeFeed: 1.0,
	domain.SourcePartnerAPI:        0.8,
	domain.SourceCrowdsource:       0.6,
	domain.SourceAutomated:         0.4,
}

// Tally is the weighted split of a subject's active submissions by claimed outcome.
type Tally struct {
	Count        int
	Accepts      int
	Rejects      int
	AcceptWeight float64
	RejectWeight float64
}

// Weight is how much one submission moves consensus at now.
func Weight(s domain.Submission, category domain.Category, now time.Time, p Policy) float64 {
	recency := max(minRecencyWeight, decay(s.CreatedAt, now, p.FreshnessFor(category)))
	return authorityWeights[s.Source] * recency * (1 + s.NetVoteRatio()*p.VoteWeightFactor)
}

// TallySubmissions counts and weighs active submissions.
func TallySubmissions(subs []domain.Submission, category domain.Category, now time.Time, p Policy) Tally {
	var t Tally
	for _, s := range subs {
		if !s.Active(now) {
			continue
		}
		t.Count++
		w := Weight(s, category, now, p)
		switch s.Outcome {
		case domain.OutcomeAccepts:
			t.Accepts++
			t.AcceptWeight += w
		case domain.OutcomeRejects:
			t.Rejects++
			t.RejectWeight += w
		}
	}
	return t
}

// Decide applies the transition rule. A verdict needs enough submissions, enough confidence, a
// clear weighted majority and more submissions than the other side, all at the same time;
// anything less is PENDING, or UNKNOWN with nothing active.
func Decide(t Tally, confidence int, p Policy) domain.AcceptanceStatus {
	fallback := domain.StatusUnknown
	if t.Count >= 1 {
		fallback = domain.StatusPending
	}

	if t.Count < p.MinVerifications || confidence < p.MinConfidenceForTransition {
		return fallback
	}

	winner, winning, losing := domain.StatusAccepted, t.AcceptWeight, t.RejectWeight
	winCount, loseCount := t.Accepts, t.Rejects
	if t.RejectWeight > t.AcceptWeight {
		winner, winning, losing = domain.StatusNotAccepted, t.RejectWeight, t.AcceptWeight
		winCount, loseCount = t.Rejects, t.Accepts
	}

	if winning <= 0 || winning < p.MajorityRatio*losing {
		return fallback
	}
	// Weight alone cannot carry a verdict: a fresh claim outweighs many aged ones, so the
	// winning side must also hold the head count.
	if winCount <= loseCount {
		return fallback
	}
	return winner
}

// Derive recomputes the full state of a subject from its submissions at now.
func Derive(subject domain.Subject, subs []domain.Submission, now time.Time, p Policy) domain.SubjectState {
	active := activeOnly(subs, now)
	if len(active) == 0 {
		state := domain.UnknownState(subject.Key, subject.Category, now)
		state.ExpiresAt = &now
		return state
	}

	confidence := Score(active, subject.Category, now, p)
	tally := TallySubmissions(active, subject.Category, now, p)

	newest, _ := newestCreatedAt(active)
	return domain.SubjectState{
		Subject:           subject.Key,
		Category:          subject.Category,
		Status:            Decide(tally, confidence.Score, p),
		Confidence:        confidence,
		VerificationCount: tally.Count,
		AcceptsCount:      tally.Accepts,
		RejectsCount:      tally.Rejects,
		LastVerifiedAt:    &newest,
		ExpiresAt:         latestExpiry(active),
		UpdatedAt:         now,
	}
}

// latestExpiry is the expiry of the longest-lived submission, or nil if any never expires.
func latestExpiry(active []domain.Submission) *time.Time {
	var latest time.Time
	for _, s := range active {
		if s.ExpiresAt == nil {
			return nil
		}
		if s.ExpiresAt.After(latest) {
			latest = *s.ExpiresAt
		}
	}
	return &latest
}
