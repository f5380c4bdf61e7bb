package iam

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doorpasses/trustcore/pkg/errors"
)

// PostgresOrganizationRepository implements OrganizationRepository using PostgreSQL
type PostgresOrganizationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOrganizationRepository creates a new PostgreSQL organization repository
func NewPostgresOrganizationRepository(pool *pgxpool.Pool) *PostgresOrganizationRepository {
	return &PostgresOrganizationRepository{
		pool: pool,
	}
}

// GetByID retrieves an organization by ID
func (r *PostgresOrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (Organization, error) {
	query := `
		SELECT id, slug, name, created_at
		FROM organizations
		WHERE id = $1
	`

	org := Organization{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&org.ID, &org.Slug, &org.Name, &org.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Organization{}, errors.NotFound("organization", id.String())
		}
		return Organization{}, errors.Persistence(err, "failed to get organization")
	}
	return org, nil
}

// GetBySlug retrieves an organization by its slug
func (r *PostgresOrganizationRepository) GetBySlug(ctx context.Context, slug string) (Organization, error) {
	query := `
		SELECT id, slug, name, created_at
		FROM organizations
		WHERE slug = $1
	`

	org := Organization{}
	err := r.pool.QueryRow(ctx, query, slug).Scan(&org.ID, &org.Slug, &org.Name, &org.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Organization{}, errors.NotFound("organization", slug)
		}
		return Organization{}, errors.Persistence(err, "failed to get organization")
	}
	return org, nil
}
