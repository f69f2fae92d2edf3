package verification

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/pscheid92/planverify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeight(t *testing.T) {
	p := DefaultPolicy()

	fresh := sub(domain.OutcomeAccepts, domain.SourceAuthoritativeFeed, 0)
	assert.InDelta(t, 1.0, Weight(fresh, domain.CategoryStandard, scoreNow, p), 1e-9)

	crowd := sub(domain.OutcomeAccepts, domain.SourceCrowdsource, 0)
	assert.InDelta(t, 0.6, Weight(crowd, domain.CategoryStandard, scoreNow, p), 1e-9)

	stale := sub(domain.OutcomeAccepts, domain.SourceAuthoritativeFeed, 120*24*time.Hour)
	assert.InDelta(t, minRecencyWeight, Weight(stale, domain.CategoryStandard, scoreNow, p), 1e-9)

	upvoted := sub(domain.OutcomeAccepts, domain.SourcePartnerAPI, 0)
	upvoted.Upvotes = 3
	assert.InDelta(t, 0.8*1.5, Weight(upvoted, domain.CategoryStandard, scoreNow, p), 1e-9)

	downvoted := sub(domain.OutcomeAccepts, domain.SourcePartnerAPI, 0)
	downvoted.Downvotes = 3
	assert.InDelta(t, 0.8*0.5, Weight(downvoted, domain.CategoryStandard, scoreNow, p), 1e-9)
}

func TestDecide(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name       string
		tally      Tally
		confidence int
		want       domain.AcceptanceStatus
	}{
		{"nothing active", Tally{}, 0, domain.StatusUnknown},
		{"one submission", Tally{Count: 1, Accepts: 1, AcceptWeight: 1}, 95, domain.StatusPending},
		{"below min count", Tally{Count: 2, Accepts: 2, AcceptWeight: 2}, 95, domain.StatusPending},
		{"low confidence", Tally{Count: 3, Accepts: 3, AcceptWeight: 3}, 59, domain.StatusPending},
		{"accepted", Tally{Count: 3, Accepts: 3, AcceptWeight: 1.8}, 60, domain.StatusAccepted},
		{"not accepted", Tally{Count: 3, Rejects: 3, RejectWeight: 1.8}, 80, domain.StatusNotAccepted},
		{"exactly two to one", Tally{Count: 3, Accepts: 2, Rejects: 1, AcceptWeight: 1.2, RejectWeight: 0.6}, 80, domain.StatusAccepted},
		{"short of two to one", Tally{Count: 3, Accepts: 2, Rejects: 1, AcceptWeight: 1.1, RejectWeight: 0.6}, 80, domain.StatusPending},
		{"tie", Tally{Count: 4, Accepts: 2, Rejects: 2, AcceptWeight: 1.2, RejectWeight: 1.2}, 80, domain.StatusPending},
		{"zero weight", Tally{Count: 3, Accepts: 3}, 80, domain.StatusPending},
		{"weight without head count", Tally{Count: 5, Accepts: 4, Rejects: 1, AcceptWeight: 0.24, RejectWeight: 0.6}, 80, domain.StatusPending},
		{"equal head count", Tally{Count: 4, Accepts: 2, Rejects: 2, AcceptWeight: 1.6, RejectWeight: 0.4}, 80, domain.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.tally, tt.confidence, p))
		})
	}
}

func TestDerive_ThreeCrowdsourcedAcceptsAreAccepted(t *testing.T) {
	subs := []domain.Submission{
		sub(domain.OutcomeAccepts, domain.SourceCrowdsource, 0),
		sub(domain.OutcomeAccepts, domain.SourceCrowdsource, time.Minute),
		sub(domain.OutcomeAccepts, domain.SourceCrowdsource, 2*time.Minute),
	}
	subject := domain.Subject{Key: subjectX, Category: domain.CategoryStandard}

	state := Derive(subject, subs, scoreNow, DefaultPolicy())

	assert.Equal(t, domain.StatusAccepted, state.Status)
	assert.Contains(t, []domain.ConfidenceLevel{domain.LevelMedium, domain.LevelHigh}, state.Confidence.Level)
	assert.Equal(t, 3, state.VerificationCount)
	assert.Equal(t, 3, state.AcceptsCount)
	require.NotNil(t, state.LastVerifiedAt)
	assert.Equal(t, scoreNow, *state.LastVerifiedAt)
	require.NotNil(t, state.ExpiresAt)
	assert.Equal(t, *subs[0].ExpiresAt, *state.ExpiresAt)
}

func TestDerive_NoActiveSubmissions(t *testing.T) {
	expired := sub(domain.OutcomeAccepts, domain.SourceCrowdsource, 0)
	expired.ExpiresAt = at(scoreNow.Add(-time.Second))
	subject := domain.Subject{Key: subjectX, Category: domain.CategoryStable}

	state := Derive(subject, []domain.Submission{expired}, scoreNow, DefaultPolicy())

	assert.Equal(t, domain.StatusUnknown, state.Status)
	assert.Equal(t, 0, state.Confidence.Score)
	assert.Equal(t, 0, state.VerificationCount)
	require.NotNil(t, state.ExpiresAt)
	assert.Equal(t, scoreNow, *state.ExpiresAt)
}

func TestDerive_LegacySubmissionNeverExpiresState(t *testing.T) {
	legacy := sub(domain.OutcomeAccepts, domain.SourceCrowdsource, 0)
	legacy.ExpiresAt = nil
	subject := domain.Subject{Key: subjectX, Category: domain.CategoryStandard}

	state := Derive(subject, []domain.Submission{legacy, sub(domain.OutcomeAccepts, domain.SourceCrowdsource, 0)}, scoreNow, DefaultPolicy())

	assert.Nil(t, state.ExpiresAt)
}

func TestDerive_SingleSubmissionCannotFlipEstablishedStatus(t *testing.T) {
	subject := domain.Subject{Key: subjectX, Category: domain.CategoryStandard}
	subs := []domain.Submission{
		sub(domain.OutcomeAccepts, domain.SourceCrowdsource, time.Hour),
		sub(domain.OutcomeAccepts, domain.SourceCrowdsource, time.Hour),
		sub(domain.OutcomeAccepts, domain.SourceCrowdsource, time.Hour),
	}
	require.Equal(t, domain.StatusAccepted, Derive(subject, subs, scoreNow, DefaultPolicy()).Status)

	for _, source := range []domain.SourceKind{domain.SourceAuthoritativeFeed, domain.SourcePartnerAPI, domain.SourceCrowdsource, domain.SourceAutomated} {
		withReject := append(append([]domain.Submission{}, subs...), sub(domain.OutcomeRejects, source, 0))
		status := Derive(subject, withReject, scoreNow, DefaultPolicy()).Status
		assert.NotEqual(t, domain.StatusNotAccepted, status, "one %s reject flipped the verdict", source)
	}
}

func TestDerive_FreshSubmissionCannotOverturnAgedMajority(t *testing.T) {
	subject := domain.Subject{Key: subjectX, Category: domain.CategoryStandard}
	aged := 61 * 24 * time.Hour
	subs := []domain.Submission{
		sub(domain.OutcomeAccepts, domain.SourceCrowdsource, aged),
		sub(domain.OutcomeAccepts, domain.SourceCrowdsource, aged),
		sub(domain.OutcomeAccepts, domain.SourceCrowdsource, aged),
		sub(domain.OutcomeAccepts, domain.SourceCrowdsource, aged),
	}

	for _, source := range []domain.SourceKind{domain.SourceAuthoritativeFeed, domain.SourcePartnerAPI, domain.SourceCrowdsource, domain.SourceAutomated} {
		withReject := append(append([]domain.Submission{}, subs...), sub(domain.OutcomeRejects, source, 0))
		state := Derive(subject, withReject, scoreNow, DefaultPolicy())
		assert.NotEqual(t, domain.StatusNotAccepted, state.Status, "one fresh %s reject overturned four aged accepts", source)
	}
}

// Any established verdict must be backed by enough submissions, enough confidence and a clear
// weighted majority, for arbitrary submission sets.
func TestDerive_VerdictRequiresAllThresholds(t *testing.T) {
	p := DefaultPolicy()
	rng := rand.New(rand.NewPCG(42, 7))
	sources := []domain.SourceKind{domain.SourceAuthoritativeFeed, domain.SourcePartnerAPI, domain.SourceCrowdsource, domain.SourceAutomated}
	categories := []domain.Category{domain.CategoryHighChurn, domain.CategoryStandard, domain.CategoryStable}

	for i := range 2000 {
		n := rng.IntN(8)
		subs := make([]domain.Submission, n)
		for j := range subs {
			outcome := domain.OutcomeAccepts
			if rng.IntN(2) == 0 {
				outcome = domain.OutcomeRejects
			}
			s := sub(outcome, sources[rng.IntN(len(sources))], time.Duration(rng.Int64N(int64(100*24*time.Hour))))
			s.Upvotes = rng.IntN(5)
			s.Downvotes = rng.IntN(5)
			if rng.IntN(5) == 0 {
				s.ExpiresAt = at(scoreNow.Add(-time.Duration(rng.IntN(1000)) * time.Second))
			}
			subs[j] = s
		}
		category := categories[rng.IntN(len(categories))]
		subject := domain.Subject{Key: subjectX, Category: category}

		state := Derive(subject, subs, scoreNow, p)
		tally := TallySubmissions(subs, category, scoreNow, p)

		assert.Equal(t, tally.Count, state.VerificationCount, "case %d", i)
		if !state.Status.Established() {
			if tally.Count == 0 {
				assert.Equal(t, domain.StatusUnknown, state.Status, "case %d", i)
			} else {
				assert.Equal(t, domain.StatusPending, state.Status, "case %d", i)
			}
			continue
		}

		assert.GreaterOrEqual(t, state.VerificationCount, p.MinVerifications, "case %d", i)
		assert.GreaterOrEqual(t, state.Confidence.Score, p.MinConfidenceForTransition, "case %d", i)
		winning, losing := tally.AcceptWeight, tally.RejectWeight
		if state.Status == domain.StatusNotAccepted {
			winning, losing = losing, winning
		}
		assert.Greater(t, winning, 0.0, "case %d", i)
		assert.GreaterOrEqual(t, winning, p.MajorityRatio*losing, "case %d", i)
		winCount, loseCount := tally.Accepts, tally.Rejects
		if state.Status == domain.StatusNotAccepted {
			winCount, loseCount = loseCount, winCount
		}
		assert.Greater(t, winCount, loseCount, "case %d", i)
	}
}
