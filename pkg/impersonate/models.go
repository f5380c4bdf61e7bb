package impersonate

import (
	"time"

	"github.com/google/uuid"
)

// ImpersonationSession is the marker attached to an authenticated session
// while an administrator is acting as another user. Its presence is the sole
// source of truth for "is impersonating"; it is only ever created or removed,
// never mutated.
type ImpersonationSession struct {
	AdminUserID  uuid.UUID `json:"admin_user_id"`
	AdminName    string    `json:"admin_name"`
	TargetUserID uuid.UUID `json:"target_user_id"`
	TargetName   string    `json:"target_name"`
	StartedAt    time.Time `json:"started_at"`
}

// Identity is one session identity record. Ending impersonation always
// creates a fresh Identity for the administrator; the impersonated identity
// is never reused, so it cannot be replayed.
type Identity struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// EndResult is returned by EndImpersonation: the administrator's fresh
// session identity plus the impersonated user's name for caller-side
// notification.
type EndResult struct {
	Identity   Identity `json:"identity"`
	TargetName string   `json:"target_name"`
}
