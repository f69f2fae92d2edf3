package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RejectReason explains why the engine refused a submission or vote.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectRateLimited      RejectReason = "RATE_LIMITED"
	RejectDuplicate        RejectReason = "DUPLICATE_SUBMISSION"
	RejectDuplicateVote    RejectReason = "DUPLICATE_VOTE"
	RejectStoreUnavailable RejectReason = "STORE_UNAVAILABLE"
)

// SubmitRequest is a well-formed verification submission for a resolved subject.
type SubmitRequest struct {
	Subject   Subject
	Outcome   Outcome
	Source    SourceKind
	Submitter SubmitterIdentity
}

// SubmitResult is the engine's answer to a submission.
type SubmitResult struct {
	Admitted     bool
	Reason       RejectReason
	RetryAt      time.Time
	SubmissionID uuid.UUID
	// State is nil when the submission was rejected or the recompute failed.
	State    *SubjectState
	Degraded bool
}

// VoteRequest is a vote on an existing submission.
type VoteRequest struct {
	SubmissionID uuid.UUID
	Direction    VoteDirection
	Voter        SubmitterIdentity
}

// VoteResult is the engine's answer to a vote.
type VoteResult struct {
	Admitted bool
	Reason   RejectReason
	RetryAt  time.Time
	Change   VoteChange
	Degraded bool
}

// CleanupStats summarises one cleanup run.
type CleanupStats struct {
	DryRun             bool  `json:"dryRun"`
	ExpiredCount       int64 `json:"expiredCount"`
	DeletedCount       int64 `json:"deletedCount"`
	ExpiredSubmissions int64 `json:"expiredSubmissions"`
	ExpiredStates      int64 `json:"expiredStates"`
	DeletedSubmissions int64 `json:"deletedSubmissions"`
	DeletedStates      int64 `json:"deletedStates"`
	Rescored           int   `json:"rescored"`
	RescoreFailures    int   `json:"rescoreFailures"`
}

// RescoreStats summarises one rescore sweep.
type RescoreStats struct {
	Scanned  int `json:"scanned"`
	Changed  int `json:"changed"`
	Failures int `json:"failures"`
}

// Engine is the verification integrity engine.
type Engine interface {
	SubmitVerification(ctx context.Context, req SubmitRequest) (SubmitResult, error)
	Vote(ctx context.Context, req VoteRequest) (VoteResult, error)
	GetSubjectState(ctx context.Context, key SubjectKey) (SubjectState, error)
	RunCleanup(ctx context.Context, dryRun bool, batchSize int) (CleanupStats, error)
	RescoreAll(ctx context.Context, pageSize int) (RescoreStats, error)
}
