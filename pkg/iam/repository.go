package iam

import (
	"context"

	"github.com/google/uuid"
)

// OrganizationRepository defines the interface for organization lookups
type OrganizationRepository interface {
	// Get an organization by ID
	GetByID(ctx context.Context, id uuid.UUID) (Organization, error)

	// Get an organization by its slug
	GetBySlug(ctx context.Context, slug string) (Organization, error)
}
