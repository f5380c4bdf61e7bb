package iam

import (
	"context"

	"github.com/google/uuid"

	"github.com/doorpasses/trustcore/pkg/errors"
)

// OrganizationService provides organization lookups for the trust core
type OrganizationService struct {
	repo OrganizationRepository
}

// NewOrganizationService creates a new organization service
func NewOrganizationService(repo OrganizationRepository) *OrganizationService {
	return &OrganizationService{
		repo: repo,
	}
}

// GetOrganization retrieves an organization by ID
func (s *OrganizationService) GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error) {
	return s.repo.GetByID(ctx, id)
}

// SystemAuditOrganization resolves the well-known system-audit organization.
// Callers that use it only as a best-effort anchor for narrative audit notes
// should treat a NotFound error as "skip the note", not as a failure.
func (s *OrganizationService) SystemAuditOrganization(ctx context.Context) (Organization, error) {
	org, err := s.repo.GetBySlug(ctx, SystemAuditOrgSlug)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return Organization{}, err
		}
		return Organization{}, errors.Persistence(err, "failed to resolve system audit organization")
	}
	return org, nil
}
