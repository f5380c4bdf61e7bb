package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doorpasses/trustcore/pkg/errors"
)

// Action identifies a privileged operation in the closed audit taxonomy.
// Unknown values are rejected at the boundary, never stored.
type Action string

const (
	ActionImpersonationStart   Action = "ADMIN_IMPERSONATION_START"
	ActionImpersonationEnd     Action = "ADMIN_IMPERSONATION_END"
	ActionAuditLogExported     Action = "AUDIT_LOG_EXPORTED"
	ActionAccessPassIssued     Action = "ACCESS_PASS_ISSUED"
	ActionAccessPassRevoked    Action = "ACCESS_PASS_REVOKED"
	ActionCardTemplateUpdated  Action = "CARD_TEMPLATE_UPDATED"
	ActionOrgSettingsUpdated   Action = "ORG_SETTINGS_UPDATED"
	ActionEncryptionKeyRotated Action = "ENCRYPTION_KEY_ROTATED"
)

var validActions = map[Action]struct{}{
	ActionImpersonationStart:   {},
	ActionImpersonationEnd:     {},
	ActionAuditLogExported:     {},
	ActionAccessPassIssued:     {},
	ActionAccessPassRevoked:    {},
	ActionCardTemplateUpdated:  {},
	ActionOrgSettingsUpdated:   {},
	ActionEncryptionKeyRotated: {},
}

// Valid reports whether the action is a member of the closed taxonomy
func (a Action) Valid() bool {
	_, ok := validActions[a]
	return ok
}

// ParseAction converts a string into an Action, rejecting unknown values
func ParseAction(s string) (Action, error) {
	action := Action(s)
	if !action.Valid() {
		return "", errors.Newf(errors.ErrCodeInvalidAction, "unknown audit action: %q", s)
	}
	return action, nil
}

// ParseActions converts a comma-separated list into Actions, rejecting
// unknown values. An empty input yields nil (no action filter).
func ParseActions(s string) ([]Action, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	actions := make([]Action, 0, len(parts))
	for _, part := range parts {
		action, err := ParseAction(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// Event is one immutable record of a privileged action. Events are created
// once by Service.Append and never mutated; there is no update or delete
// path anywhere in the package.
type Event struct {
	ID             int64                  `json:"id"`
	Action         Action                 `json:"action"`
	ActorUserID    uuid.UUID              `json:"actor_user_id"`
	TargetUserID   *uuid.UUID             `json:"target_user_id,omitempty"`
	OrganizationID *uuid.UUID             `json:"organization_id,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
	Message        string                 `json:"message"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// AppendRequest carries the caller-supplied fields of a new event.
// ID and OccurredAt are assigned by the ledger, never by the caller.
type AppendRequest struct {
	Action         Action                 `json:"action"`
	ActorUserID    uuid.UUID              `json:"actor_user_id"`
	TargetUserID   *uuid.UUID             `json:"target_user_id,omitempty"`
	OrganizationID *uuid.UUID             `json:"organization_id,omitempty"`
	Message        string                 `json:"message"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Filter narrows a ledger query. All fields are optional and conjunctive;
// the zero value matches every event.
type Filter struct {
	OrganizationID *uuid.UUID
	// UserID matches events where the user is either the actor or the target
	UserID *uuid.UUID
	// StartDate and EndDate are inclusive bounds on OccurredAt
	StartDate *time.Time
	EndDate   *time.Time
	Actions   []Action
}

// Matches reports whether an event satisfies every set constraint
func (f Filter) Matches(event Event) bool {
	if f.OrganizationID != nil {
		if event.OrganizationID == nil || *event.OrganizationID != *f.OrganizationID {
			return false
		}
	}
	if f.UserID != nil {
		isActor := event.ActorUserID == *f.UserID
		isTarget := event.TargetUserID != nil && *event.TargetUserID == *f.UserID
		if !isActor && !isTarget {
			return false
		}
	}
	if f.StartDate != nil && event.OccurredAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && event.OccurredAt.After(*f.EndDate) {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, action := range f.Actions {
			if event.Action == action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
