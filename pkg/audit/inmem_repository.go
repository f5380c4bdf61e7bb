package audit

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository implements Repository using an in-memory slice
type InMemRepository struct {
	events []Event
	nextID int64
	mu     sync.Mutex
}

// NewInMemRepository creates a new in-memory audit event repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		nextID: 1,
	}
}

// Append stores a new event and assigns it the next monotonic ID
func (r *InMemRepository) Append(ctx context.Context, event Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = r.nextID
	r.nextID++
	r.events = append(r.events, event)

	slog.Debug("Audit event appended", "id", event.ID, "action", event.Action)
	return event, nil
}

// Query returns matching events ordered by occurred_at ascending, ID tiebreak
func (r *InMemRepository) Query(ctx context.Context, filter Filter) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]Event, 0, len(r.events))
	for _, event := range r.events {
		if filter.Matches(event) {
			matched = append(matched, event)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})

	return matched, nil
}

// Len returns the number of stored events
func (r *InMemRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// InMemNarrativeSink implements NarrativeSink using an in-memory slice
type InMemNarrativeSink struct {
	notes []Note
	mu    sync.Mutex
}

// Note is one human-readable audit note anchored to an organization
type Note struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Note           string    `json:"note"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewInMemNarrativeSink creates a new in-memory narrative sink
func NewInMemNarrativeSink() *InMemNarrativeSink {
	return &InMemNarrativeSink{}
}

// RecordNote stores a note
func (s *InMemNarrativeSink) RecordNote(ctx context.Context, organizationID uuid.UUID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes = append(s.notes, Note{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Note:           note,
		CreatedAt:      time.Now().UTC(),
	})
	return nil
}

// Notes returns a copy of the recorded notes
func (s *InMemNarrativeSink) Notes() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes := make([]Note, len(s.notes))
	copy(notes, s.notes)
	return notes
}
