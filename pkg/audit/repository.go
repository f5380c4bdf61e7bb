package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for audit event persistence.
// It is deliberately append-only: no update or delete methods exist.
type Repository interface {
	// Append persists a new event and returns it with its assigned ID.
	// ID uniqueness and monotonicity is the store's atomic-insert guarantee;
	// the ledger holds no in-process lock around it.
	Append(ctx context.Context, event Event) (Event, error)

	// Query returns the events matching the filter ordered by occurred_at
	// ascending, ties broken by insertion sequence
	Query(ctx context.Context, filter Filter) ([]Event, error)
}

// NarrativeSink records human-readable audit notes anchored to an
// organization. It is the optional, best-effort legacy channel beside the
// structured ledger: callers log its failures and move on, they never let it
// block the operation being audited.
type NarrativeSink interface {
	RecordNote(ctx context.Context, organizationID uuid.UUID, note string) error
}
