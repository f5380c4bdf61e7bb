package impersonate

import (
	"context"

	"github.com/google/uuid"
)

// SessionStore defines the session persistence the impersonation service
// requires. The store is the authority on session state; concurrent
// mutations of the same session are its concern to serialize.
type SessionStore interface {
	// GetImpersonation returns the impersonation marker for a session, or
	// nil when the session is not impersonating
	GetImpersonation(ctx context.Context, sessionID uuid.UUID) (*ImpersonationSession, error)

	// SetImpersonation attaches an impersonation marker to a session
	SetImpersonation(ctx context.Context, sessionID uuid.UUID, session ImpersonationSession) error

	// CreateIdentity creates a brand-new session identity bound to a user
	CreateIdentity(ctx context.Context, userID uuid.UUID) (Identity, error)

	// SwapIdentity atomically removes the impersonation marker and binds the
	// session to the given identity
	SwapIdentity(ctx context.Context, sessionID uuid.UUID, identity Identity) error
}
