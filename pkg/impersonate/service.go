package impersonate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/doorpasses/trustcore/pkg/audit"
	"github.com/doorpasses/trustcore/pkg/errors"
	"github.com/doorpasses/trustcore/pkg/iam"
)

// Service orchestrates impersonation session takeover and handback.
//
// The structured audit ledger and the narrative note sink are independent:
// the note is a best-effort legacy channel whose failures are logged and
// swallowed, and even a structured append failure never leaves the caller
// stuck impersonating. Audit evidence is persisted before the session
// identity is swapped.
type Service struct {
	store     SessionStore
	ledger    *audit.Service
	narrative audit.NarrativeSink
	orgs      *iam.OrganizationService
	now       func() time.Time
}

// NewService creates a new impersonation service. The narrative sink and
// organization service may be nil; the legacy note channel is then skipped.
func NewService(store SessionStore, ledger *audit.Service, narrative audit.NarrativeSink, orgs *iam.OrganizationService) *Service {
	return &Service{
		store:     store,
		ledger:    ledger,
		narrative: narrative,
		orgs:      orgs,
		now:       time.Now,
	}
}

// NewServiceWithClock creates an impersonation service with an injected
// clock, for tests that need deterministic durations
func NewServiceWithClock(store SessionStore, ledger *audit.Service, narrative audit.NarrativeSink, orgs *iam.OrganizationService, now func() time.Time) *Service {
	svc := NewService(store, ledger, narrative, orgs)
	svc.now = now
	return svc
}

// IsImpersonating reports whether a session carries an impersonation marker
func (s *Service) IsImpersonating(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	session, err := s.store.GetImpersonation(ctx, sessionID)
	if err != nil {
		return false, errors.Persistence(err, "failed to read impersonation state")
	}
	return session != nil, nil
}

// StartImpersonation attaches an impersonation marker to a session and
// records the takeover in the audit ledger. A session can carry at most one
// marker at a time.
func (s *Service) StartImpersonation(ctx context.Context, sessionID uuid.UUID, session ImpersonationSession) error {
	existing, err := s.store.GetImpersonation(ctx, sessionID)
	if err != nil {
		return errors.Persistence(err, "failed to read impersonation state")
	}
	if existing != nil {
		return errors.New(errors.ErrCodeAlreadyImpersonating, "session is already impersonating")
	}

	if session.StartedAt.IsZero() {
		session.StartedAt = s.now().UTC()
	}

	if err := s.store.SetImpersonation(ctx, sessionID, session); err != nil {
		return errors.Persistence(err, "failed to set impersonation marker")
	}

	if _, err := s.ledger.Append(ctx, audit.AppendRequest{
		Action:       audit.ActionImpersonationStart,
		ActorUserID:  session.AdminUserID,
		TargetUserID: &session.TargetUserID,
		Message:      fmt.Sprintf("%s started impersonating %s", session.AdminName, session.TargetName),
		Metadata: map[string]interface{}{
			"target_name": session.TargetName,
		},
	}); err != nil {
		slog.Error("Failed to record impersonation start", "admin", session.AdminUserID, "err", err)
	}

	return nil
}

// EndImpersonation ends an active impersonation session. It records the
// audit trail (best-effort), creates a brand-new session identity for the
// administrator, and atomically swaps the session over to it.
//
// The only caller-visible failure before the swap is the absence of an
// active impersonation session. Later failures of the audit channels are
// logged but never block handback.
func (s *Service) EndImpersonation(ctx context.Context, sessionID uuid.UUID) (EndResult, error) {
	session, err := s.store.GetImpersonation(ctx, sessionID)
	if err != nil {
		return EndResult{}, errors.Persistence(err, "failed to read impersonation state")
	}
	if session == nil {
		return EndResult{}, errors.New(errors.ErrCodeNotImpersonating, "no active impersonation session")
	}

	endedAt := s.now().UTC()
	// The duration is always computed from the recorded timestamps, never
	// supplied by the caller.
	duration := endedAt.Sub(session.StartedAt).Milliseconds()

	s.recordNarrativeNote(ctx, session)

	if _, err := s.ledger.Append(ctx, audit.AppendRequest{
		Action:       audit.ActionImpersonationEnd,
		ActorUserID:  session.AdminUserID,
		TargetUserID: &session.TargetUserID,
		Message:      fmt.Sprintf("%s ended impersonation of %s", session.AdminName, session.TargetName),
		Metadata: map[string]interface{}{
			"duration":    duration,
			"target_name": session.TargetName,
		},
	}); err != nil {
		slog.Error("Failed to record impersonation end", "admin", session.AdminUserID, "err", err)
	}

	identity, err := s.store.CreateIdentity(ctx, session.AdminUserID)
	if err != nil {
		return EndResult{}, errors.Persistence(err, "failed to create session identity")
	}

	if err := s.store.SwapIdentity(ctx, sessionID, identity); err != nil {
		return EndResult{}, errors.Persistence(err, "failed to swap session identity")
	}

	return EndResult{
		Identity:   identity,
		TargetName: session.TargetName,
	}, nil
}

// recordNarrativeNote writes the human-readable legacy note anchored to the
// system audit organization. Every failure here is logged and swallowed:
// this channel must never block session handback.
func (s *Service) recordNarrativeNote(ctx context.Context, session *ImpersonationSession) {
	if s.narrative == nil || s.orgs == nil {
		return
	}

	org, err := s.orgs.SystemAuditOrganization(ctx)
	if err != nil {
		slog.Warn("System audit organization unavailable, skipping audit note", "err", err)
		return
	}

	note := fmt.Sprintf("%s ended impersonation of %s", session.AdminName, session.TargetName)
	if err := s.narrative.RecordNote(ctx, org.ID, note); err != nil {
		slog.Error("Failed to record audit note", "org", org.ID, "err", err)
	}
}
