package iam

import (
	"time"

	"github.com/google/uuid"
)

// SystemAuditOrgSlug identifies the well-known organization that anchors
// system-level audit notes. It is seeded at deployment time and looked up by
// this fixed slug, never by id.
const SystemAuditOrgSlug = "system-audit"

// Organization represents a customer organization (or the system-audit anchor)
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
