package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/planverify/internal/domain"
)

// stateColumns must match the Scan order in Get.
const stateColumns = `provider_id, plan_id, category, status, confidence_score, confidence_level, confidence_factors,
	verification_count, accepts_count, rejects_count, last_verified_at, expires_at, updated_at`

// SubjectStateRepo implements domain.SubjectStateRepository backed by PostgreSQL.
type SubjectStateRepo struct {
	db DB
}

var _ domain.SubjectStateRepository = (*SubjectStateRepo)(nil)

func NewSubjectStateRepo(db DB) *SubjectStateRepo {
	return &SubjectStateRepo{db: db}
}

func (r *SubjectStateRepo) Get(ctx context.Context, key domain.SubjectKey) (*domain.SubjectState, error) {
	var s domain.SubjectState
	var category, status, level string
	err := r.db.QueryRow(ctx, `
		SELECT `+stateColumns+`
		FROM subject_states WHERE provider_id = $1 AND plan_id = $2`,
		key.ProviderID, key.PlanID,
	).Scan(&s.Subject.ProviderID, &s.Subject.PlanID, &category, &status,
		&s.Confidence.Score, &level, &s.Confidence.Factors,
		&s.VerificationCount, &s.AcceptsCount, &s.RejectsCount,
		&s.LastVerifiedAt, &s.ExpiresAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject state: %w", err)
	}

	s.Category = domain.ParseCategory(category)
	s.Status = domain.AcceptanceStatus(status)
	s.Confidence.Level = domain.ConfidenceLevel(level)
	return &s, nil
}

// Upsert writes the state unconditionally. Concurrent recomputes race and the last writer wins.
func (r *SubjectStateRepo) Upsert(ctx context.Context, s domain.SubjectState) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO subject_states (`+stateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (provider_id, plan_id) DO UPDATE SET
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			confidence_score = EXCLUDED.confidence_score,
			confidence_level = EXCLUDED.confidence_level,
			confidence_factors = EXCLUDED.confidence_factors,
			verification_count = EXCLUDED.verification_count,
			accepts_count = EXCLUDED.accepts_count,
			rejects_count = EXCLUDED.rejects_count,
			last_verified_at = EXCLUDED.last_verified_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		s.Subject.ProviderID, s.Subject.PlanID, string(s.Category), string(s.Status),
		s.Confidence.Score, string(s.Confidence.Level), s.Confidence.Factors,
		s.VerificationCount, s.AcceptsCount, s.RejectsCount,
		s.LastVerifiedAt, s.ExpiresAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subject state: %w", err)
	}
	return nil
}

// ListKeys pages through subject keys in (provider, plan) order, strictly after the given key.
func (r *SubjectStateRepo) ListKeys(ctx context.Context, after domain.SubjectKey, limit int) ([]domain.SubjectKey, error) {
	rows, err := r.db.Query(ctx, `
		SELECT provider_id, plan_id FROM subject_states
		WHERE (provider_id, plan_id) > ($1, $2)
		ORDER BY provider_id, plan_id
		LIMIT $3`,
		after.ProviderID, after.PlanID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subject keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.SubjectKey
	for rows.Next() {
		var k domain.SubjectKey
		if err := rows.Scan(&k.ProviderID, &k.PlanID); err != nil {
			return nil, fmt.Errorf("failed to scan subject key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subject keys: %w", err)
	}
	return keys, nil
}

func (r *SubjectStateRepo) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM subject_states WHERE expires_at < $1`, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired subject states: %w", err)
	}
	return n, nil
}

func (r *SubjectStateRepo) DeleteExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM subject_states s
		USING (
			SELECT provider_id, plan_id FROM subject_states
			WHERE expires_at < $1
			ORDER BY expires_at
			LIMIT $2
		) d
		WHERE s.provider_id = d.provider_id AND s.plan_id = d.plan_id`,
		now, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired subject states: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
