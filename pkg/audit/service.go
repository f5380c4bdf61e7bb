package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/doorpasses/trustcore/pkg/errors"
)

// Service is the append-only audit ledger. Appends validate the action
// against the closed taxonomy and stamp the event with the ledger's clock;
// queries and exports are pure reads over the persisted events.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new audit ledger service
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// NewServiceWithClock creates an audit ledger service with an injected clock,
// for tests that need deterministic timestamps
func NewServiceWithClock(repo Repository, now func() time.Time) *Service {
	return &Service{
		repo: repo,
		now:  now,
	}
}

// Append validates and persists a new audit event. This is the sole write
// path into the ledger; the returned event carries the store-assigned ID and
// the ledger-assigned timestamp.
func (s *Service) Append(ctx context.Context, req AppendRequest) (Event, error) {
	if !req.Action.Valid() {
		return Event{}, errors.Newf(errors.ErrCodeInvalidAction, "unknown audit action: %q", req.Action)
	}

	event := Event{
		Action:         req.Action,
		ActorUserID:    req.ActorUserID,
		TargetUserID:   req.TargetUserID,
		OrganizationID: req.OrganizationID,
		OccurredAt:     s.now().UTC(),
		Message:        req.Message,
		Metadata:       req.Metadata,
	}

	stored, err := s.repo.Append(ctx, event)
	if err != nil {
		slog.Error("Failed to append audit event", "action", req.Action, "err", err)
		return Event{}, err
	}

	return stored, nil
}

// Query returns the events matching the filter ordered by occurred_at
// ascending. The result is a fresh snapshot on every call, not a live cursor.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Event, error) {
	return s.repo.Query(ctx, filter)
}
