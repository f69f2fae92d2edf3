package domain

import "time"

// Category groups subjects by how quickly their acceptance data goes stale.
type Category string

const (
	CategoryHighChurn Category = "high_churn"
	CategoryStandard  Category = "standard"
	CategoryStable    Category = "stable"
)

// ParseCategory converts a string to a Category, defaulting to standard.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryHighChurn:
		return CategoryHighChurn
	case CategoryStable:
		return CategoryStable
	default:
		return CategoryStandard
	}
}

// Subject is a verifiable provider/plan pair resolved from reference data.
type Subject struct {
	Key      SubjectKey
	Category Category
}

// AcceptanceStatus is the consensus verdict for a subject.
type AcceptanceStatus string

const (
	StatusUnknown     AcceptanceStatus = "UNKNOWN"
	StatusPending     AcceptanceStatus = "PENDING"
	StatusAccepted    AcceptanceStatus = "ACCEPTED"
	StatusNotAccepted AcceptanceStatus = "NOT_ACCEPTED"
)

// Established reports whether the status is a consensus verdict.
func (s AcceptanceStatus) Established() bool {
	return s == StatusAccepted || s == StatusNotAccepted
}

// ConfidenceLevel is the qualitative band of a confidence score.
type ConfidenceLevel string

const (
	LevelVeryLow  ConfidenceLevel = "VERY_LOW"
	LevelLow      ConfidenceLevel = "LOW"
	LevelMedium   ConfidenceLevel = "MEDIUM"
	LevelHigh     ConfidenceLevel = "HIGH"
	LevelVeryHigh ConfidenceLevel = "VERY_HIGH"
)

// ConfidenceFactors is the per-factor breakdown of a confidence score.
type ConfidenceFactors struct {
	SourceAuthority float64 `json:"sourceAuthority"`
	Recency         float64 `json:"recency"`
	SampleSize      float64 `json:"sampleSize"`
	Agreement       float64 `json:"agreement"`
}

// Confidence is the scorer's output for one subject.
type Confidence struct {
	Score   int               `json:"score"`
	Level   ConfidenceLevel   `json:"level"`
	Factors ConfidenceFactors `json:"factors"`
}

// SubjectState is the derived trust state of a subject. Only the engine writes it.
type SubjectState struct {
	Subject           SubjectKey
	Category          Category
	Status            AcceptanceStatus
	Confidence        Confidence
	VerificationCount int
	AcceptsCount      int
	RejectsCount      int
	LastVerifiedAt    *time.Time
	ExpiresAt         *time.Time
	UpdatedAt         time.Time
}

// UnknownState is the state of a subject with no usable submissions.
func UnknownState(key SubjectKey, category Category, now time.Time) SubjectState {
	return SubjectState{
		Subject:    key,
		Category:   category,
		Status:     StatusUnknown,
		Confidence: Confidence{Level: LevelVeryLow},
		UpdatedAt:  now,
	}
}

// Expired reports whether the state has outlived its last supporting submission.
func (s SubjectState) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}
