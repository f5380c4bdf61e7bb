package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doorpasses/trustcore/pkg/errors"
)

// PostgresRepository implements Repository using PostgreSQL.
// The audit_events table is append-only; ID monotonicity comes from its
// BIGSERIAL primary key.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL audit event repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

// Append persists a new event and returns it with its assigned ID
func (r *PostgresRepository) Append(ctx context.Context, event Event) (Event, error) {
	query := `
		INSERT INTO audit_events (
			action, actor_user_id, target_user_id, organization_id,
			occurred_at, message, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		) RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		string(event.Action),
		event.ActorUserID,
		event.TargetUserID,
		event.OrganizationID,
		event.OccurredAt,
		event.Message,
		event.Metadata,
	).Scan(&event.ID)
	if err != nil {
		return Event{}, errors.Persistence(err, "failed to append audit event")
	}

	return event, nil
}

// Query returns matching events ordered by occurred_at ascending, ID tiebreak
func (r *PostgresRepository) Query(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, action, actor_user_id, target_user_id, organization_id,
			occurred_at, message, metadata
		FROM audit_events
	`

	var conditions []string
	var args []interface{}

	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		conditions = append(conditions, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("(actor_user_id = $%d OR target_user_id = $%d)", len(args), len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}
	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, action := range filter.Actions {
			actions[i] = string(action)
		}
		args = append(args, actions)
		conditions = append(conditions, fmt.Sprintf("action = ANY($%d)", len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY occurred_at ASC, id ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Persistence(err, "failed to query audit events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var action string
		err := rows.Scan(
			&event.ID,
			&action,
			&event.ActorUserID,
			&event.TargetUserID,
			&event.OrganizationID,
			&event.OccurredAt,
			&event.Message,
			&event.Metadata,
		)
		if err != nil {
			return nil, errors.Persistence(err, "failed to scan audit event")
		}
		event.Action = Action(action)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Persistence(err, "failed to read audit events")
	}

	return events, nil
}

// FieldEncrypter encrypts a field value before it is persisted
type FieldEncrypter interface {
	Encrypt(plaintext string) (string, error)
}

// PostgresNarrativeSink implements NarrativeSink using PostgreSQL
type PostgresNarrativeSink struct {
	pool      *pgxpool.Pool
	encrypter FieldEncrypter
}

// NewPostgresNarrativeSink creates a new PostgreSQL narrative sink
func NewPostgresNarrativeSink(pool *pgxpool.Pool) *PostgresNarrativeSink {
	return &PostgresNarrativeSink{
		pool: pool,
	}
}

// NewPostgresNarrativeSinkWithEncryption creates a sink that encrypts note
// bodies before they are stored. Notes name the administrator and the
// impersonated user, so they are sensitive at rest.
func NewPostgresNarrativeSinkWithEncryption(pool *pgxpool.Pool, encrypter FieldEncrypter) *PostgresNarrativeSink {
	return &PostgresNarrativeSink{
		pool:      pool,
		encrypter: encrypter,
	}
}

// RecordNote stores a human-readable note anchored to an organization
func (s *PostgresNarrativeSink) RecordNote(ctx context.Context, organizationID uuid.UUID, note string) error {
	if s.encrypter != nil {
		encrypted, err := s.encrypter.Encrypt(note)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "failed to encrypt audit note")
		}
		note = encrypted
	}

	query := `
		INSERT INTO audit_notes (organization_id, note, created_at)
		VALUES ($1, $2, NOW())
	`

	_, err := s.pool.Exec(ctx, query, organizationID, note)
	if err != nil {
		return errors.Persistence(err, "failed to record audit note")
	}
	return nil
}
