package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/planverify/internal/domain"
)

// CatalogRepo resolves subjects against the providers and insurance_plans reference tables.
type CatalogRepo struct {
	db DB
}

var _ domain.SubjectCatalog = (*CatalogRepo)(nil)

func NewCatalogRepo(db DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) Lookup(ctx context.Context, key domain.SubjectKey) (domain.Subject, error) {
	var category string
	err := r.db.QueryRow(ctx, `
		SELECT p.category FROM providers p
		WHERE p.id = $1 AND EXISTS (SELECT 1 FROM insurance_plans ip WHERE ip.id = $2)`,
		key.ProviderID, key.PlanID,
	).Scan(&category)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Subject{}, domain.ErrInvalidSubject
	}
	if err != nil {
		return domain.Subject{}, fmt.Errorf("failed to look up subject: %w", err)
	}
	return domain.Subject{Key: key, Category: domain.ParseCategory(category)}, nil
}
