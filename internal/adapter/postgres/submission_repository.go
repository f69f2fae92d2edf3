package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/planverify/internal/domain"
)

// submissionColumns must match the Scan order in scanSubmission.
const submissionColumns = `id, provider_id, plan_id, outcome, source_kind, created_at, expires_at, upvotes, downvotes`

// SubmissionRepo implements domain.SubmissionRepository backed by PostgreSQL.
type SubmissionRepo struct {
	db DB
}

var _ domain.SubmissionRepository = (*SubmissionRepo)(nil)

func NewSubmissionRepo(db DB) *SubmissionRepo {
	return &SubmissionRepo{db: db}
}

func (r *SubmissionRepo) Create(ctx context.Context, s domain.Submission) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.Subject.ProviderID, s.Subject.PlanID, string(s.Outcome), string(s.Source),
		s.CreatedAt, s.ExpiresAt, s.Upvotes, s.Downvotes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepo) ListActive(ctx context.Context, key domain.SubjectKey, now time.Time) ([]domain.Submission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE provider_id = $1 AND plan_id = $2
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY created_at`,
		key.ProviderID, key.PlanID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return subs, nil
}

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var s domain.Submission
	var outcome, source string
	if err := row.Scan(&s.ID, &s.Subject.ProviderID, &s.Subject.PlanID, &outcome, &source,
		&s.CreatedAt, &s.ExpiresAt, &s.Upvotes, &s.Downvotes); err != nil {
		return domain.Submission{}, fmt.Errorf("failed to scan submission: %w", err)
	}
	s.Outcome = domain.Outcome(outcome)
	s.Source = domain.SourceKind(source)
	return s, nil
}

// RecordVote applies a vote inside one transaction. The submission row is locked so concurrent
// votes on it serialise; a voter's earlier vote is switched rather than duplicated.
func (r *SubmissionRepo) RecordVote(ctx context.Context, submissionID uuid.UUID, voterKey string, direction domain.VoteDirection, now time.Time) (domain.SubjectKey, domain.VoteChange, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.SubjectKey{}, 0, fmt.Errorf("failed to begin vote transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var key domain.SubjectKey
	err = tx.QueryRow(ctx, `
		SELECT provider_id, plan_id FROM submissions
		WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)
		FOR UPDATE`,
		submissionID, now,
	).Scan(&key.ProviderID, &key.PlanID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SubjectKey{}, 0, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.SubjectKey{}, 0, fmt.Errorf("failed to lock submission: %w", err)
	}

	var previous string
	err = tx.QueryRow(ctx, `
		SELECT direction FROM submission_votes WHERE submission_id = $1 AND voter_key = $2`,
		submissionID, voterKey,
	).Scan(&previous)

	var change domain.VoteChange
	var up, down int
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, `
			INSERT INTO submission_votes (submission_id, voter_key, direction, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)`,
			submissionID, voterKey, string(direction), now,
		); err != nil {
			return domain.SubjectKey{}, 0, fmt.Errorf("failed to insert vote: %w", err)
		}
		change = domain.VoteRecorded
		up, down = counterDelta(direction, 1)
	case err != nil:
		return domain.SubjectKey{}, 0, fmt.Errorf("failed to read previous vote: %w", err)
	case domain.VoteDirection(previous) == direction:
		return key, domain.VoteUnchanged, nil
	default:
		if _, err := tx.Exec(ctx, `
			UPDATE submission_votes SET direction = $3, updated_at = $4
			WHERE submission_id = $1 AND voter_key = $2`,
			submissionID, voterKey, string(direction), now,
		); err != nil {
			return domain.SubjectKey{}, 0, fmt.Errorf("failed to switch vote: %w", err)
		}
		change = domain.VoteSwitched
		up, down = counterDelta(direction, 1)
		pu, pd := counterDelta(domain.VoteDirection(previous), -1)
		up, down = up+pu, down+pd
	}

	if _, err := tx.Exec(ctx, `
		UPDATE submissions SET upvotes = upvotes + $2, downvotes = downvotes + $3 WHERE id = $1`,
		submissionID, up, down,
	); err != nil {
		return domain.SubjectKey{}, 0, fmt.Errorf("failed to update vote counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.SubjectKey{}, 0, fmt.Errorf("failed to commit vote: %w", err)
	}
	return key, change, nil
}

func counterDelta(direction domain.VoteDirection, n int) (up, down int) {
	if direction == domain.VoteUp {
		return n, 0
	}
	return 0, n
}

func (r *SubmissionRepo) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM submissions WHERE expires_at < $1`, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired submissions: %w", err)
	}
	return n, nil
}

// DeleteExpired removes up to limit expired submissions; their votes go with them via ON DELETE CASCADE.
func (r *SubmissionRepo) DeleteExpired(ctx context.Context, now time.Time, limit int) ([]domain.SubjectKey, error) {
	rows, err := r.db.Query(ctx, `
		DELETE FROM submissions
		WHERE id IN (
			SELECT id FROM submissions
			WHERE expires_at < $1
			ORDER BY expires_at
			LIMIT $2
		)
		RETURNING provider_id, plan_id`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired submissions: %w", err)
	}
	defer rows.Close()

	var keys []domain.SubjectKey
	for rows.Next() {
		var k domain.SubjectKey
		if err := rows.Scan(&k.ProviderID, &k.PlanID); err != nil {
			return nil, fmt.Errorf("failed to scan deleted submission: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted submissions: %w", err)
	}
	return keys, nil
}
