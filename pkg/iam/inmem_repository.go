package iam

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doorpasses/trustcore/pkg/errors"
)

// InMemOrganizationRepository implements OrganizationRepository using an in-memory map
type InMemOrganizationRepository struct {
	orgs map[uuid.UUID]Organization
	mu   sync.Mutex
}

// NewInMemOrganizationRepository creates a new in-memory organization repository
func NewInMemOrganizationRepository() *InMemOrganizationRepository {
	return &InMemOrganizationRepository{
		orgs: make(map[uuid.UUID]Organization),
	}
}

// SeedOrganization adds an organization, assigning an ID and creation time if unset
func (r *InMemOrganizationRepository) SeedOrganization(org Organization) Organization {
	r.mu.Lock()
	defer r.mu.Unlock()

	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	r.orgs[org.ID] = org
	return org
}

// GetByID retrieves an organization by ID
func (r *InMemOrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	org, exists := r.orgs[id]
	if !exists {
		return Organization{}, errors.NotFound("organization", id.String())
	}
	return org, nil
}

// GetBySlug retrieves an organization by its slug
func (r *InMemOrganizationRepository) GetBySlug(ctx context.Context, slug string) (Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, org := range r.orgs {
		if org.Slug == slug {
			return org, nil
		}
	}
	return Organization{}, errors.NotFound("organization", slug)
}
