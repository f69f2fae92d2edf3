package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubjectKey identifies what is being verified: one provider/plan pair.
type SubjectKey struct {
	ProviderID string
	PlanID     string
}

func (k SubjectKey) String() string {
	return k.ProviderID + ":" + k.PlanID
}

// Valid reports whether both halves of the key are present.
func (k SubjectKey) Valid() bool {
	return strings.TrimSpace(k.ProviderID) != "" && strings.TrimSpace(k.PlanID) != ""
}

// Outcome is what a submitter claims about a subject.
type Outcome string

const (
	OutcomeAccepts Outcome = "ACCEPTS"
	OutcomeRejects Outcome = "REJECTS"
)

// ParseOutcome converts a string to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToUpper(strings.TrimSpace(s))) {
	case OutcomeAccepts:
		return OutcomeAccepts, nil
	case OutcomeRejects:
		return OutcomeRejects, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
}

// SourceKind ranks where a submission came from, by authority.
type SourceKind string

const (
	SourceAuthoritativeFeed SourceKind = "AUTHORITATIVE_FEED"
	SourcePartnerAPI        SourceKind = "PARTNER_API"
	SourceCrowdsource       SourceKind = "CROWDSOURCE"
	SourceAutomated         SourceKind = "AUTOMATED"
)

// Rank orders source kinds; higher is more authoritative. Unknown kinds rank 0.
func (k SourceKind) Rank() int {
	switch k {
	case SourceAuthoritativeFeed:
		return 4
	case SourcePartnerAPI:
		return 3
	case SourceCrowdsource:
		return 2
	case SourceAutomated:
		return 1
	default:
		return 0
	}
}

// ParseSourceKind converts a string to a SourceKind, defaulting to crowdsource when empty.
func ParseSourceKind(s string) (SourceKind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return SourceCrowdsource, nil
	}
	k := SourceKind(s)
	if k.Rank() == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSourceKind, s)
	}
	return k, nil
}

// SubmitterIdentity is the best-effort identity tuple of an anonymous submitter.
type SubmitterIdentity struct {
	NetworkAddress string
	Contact        string
}

// Submission is one claim about a subject. Immutable once created except for vote counters.
type Submission struct {
	ID        uuid.UUID
	Subject   SubjectKey
	Outcome   Outcome
	Source    SourceKind
	CreatedAt time.Time
	// ExpiresAt is nil for records created before expiry was tracked; those never expire.
	ExpiresAt *time.Time
	Upvotes   int
	Downvotes int
}

// Active reports whether the submission still counts at now.
func (s Submission) Active(now time.Time) bool {
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// NetVoteRatio is (up - down) / (up + down), or 0 with no votes.
func (s Submission) NetVoteRatio() float64 {
	total := s.Upvotes + s.Downvotes
	if total == 0 {
		return 0
	}
	return float64(s.Upvotes-s.Downvotes) / float64(total)
}

// VoteDirection is the direction of a vote on a submission.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// ParseVoteDirection converts a string to a VoteDirection.
func ParseVoteDirection(s string) (VoteDirection, error) {
	switch VoteDirection(strings.ToLower(strings.TrimSpace(s))) {
	case VoteUp:
		return VoteUp, nil
	case VoteDown:
		return VoteDown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// VoteChange describes what recording a vote did to a submission's counters.
type VoteChange int

const (
	VoteRecorded  VoteChange = iota // first vote by this voter
	VoteSwitched                    // voter flipped direction
	VoteUnchanged                   // voter already voted this way
)

func (c VoteChange) String() string {
	switch c {
	case VoteRecorded:
		return "recorded"
	case VoteSwitched:
		return "switched"
	case VoteUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}
