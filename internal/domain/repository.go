package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubmissionRepository persists raw submissions and their votes.
// Every read that aggregates submissions must exclude rows whose expiry is at or before now.
type SubmissionRepository interface {
	Create(ctx context.Context, s Submission) error
	ListActive(ctx context.Context, key SubjectKey, now time.Time) ([]Submission, error)

	// RecordVote applies a voter's vote to a non-expired submission and returns the submission's subject.
	RecordVote(ctx context.Context, submissionID uuid.UUID, voterKey string, direction VoteDirection, now time.Time) (SubjectKey, VoteChange, error)

	// Expiry sweep

	CountExpired(ctx context.Context, now time.Time) (int64, error)
	// DeleteExpired removes at most limit expired submissions (votes cascade) and returns the subject of each deleted row.
	DeleteExpired(ctx context.Context, now time.Time, limit int) ([]SubjectKey, error)
}

// SubjectStateRepository persists derived subject state. Last writer wins.
type SubjectStateRepository interface {
	Get(ctx context.Context, key SubjectKey) (*SubjectState, error)
	Upsert(ctx context.Context, state SubjectState) error
	ListKeys(ctx context.Context, after SubjectKey, limit int) ([]SubjectKey, error)

	CountExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// SubjectCatalog resolves subjects against provider/plan reference data.
type SubjectCatalog interface {
	Lookup(ctx context.Context, key SubjectKey) (Subject, error)
}
