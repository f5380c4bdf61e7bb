package impersonate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSessionStore implements SessionStore using PostgreSQL.
//
// The impersonation marker lives in nullable columns on the sessions row,
// not in a separate table, so it can never outlive its session. Identities
// are durable rows in session_identities; a session points at exactly one.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionStore creates a new PostgreSQL session store
func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{
		pool: pool,
	}
}

// GetImpersonation returns the impersonation marker for a session, or nil
func (s *PostgresSessionStore) GetImpersonation(ctx context.Context, sessionID uuid.UUID) (*ImpersonationSession, error) {
	query := `
		SELECT imp_admin_user_id, imp_admin_name, imp_target_user_id, imp_target_name, imp_started_at
		FROM sessions
		WHERE id = $1
	`

	var adminUserID, targetUserID *uuid.UUID
	var adminName, targetName sql.NullString
	var startedAt sql.NullTime

	err := s.pool.QueryRow(ctx, query, sessionID).Scan(
		&adminUserID, &adminName, &targetUserID, &targetName, &startedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Unknown session: no marker, nothing to end
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	if adminUserID == nil || targetUserID == nil || !startedAt.Valid {
		return nil, nil
	}

	return &ImpersonationSession{
		AdminUserID:  *adminUserID,
		AdminName:    adminName.String,
		TargetUserID: *targetUserID,
		TargetName:   targetName.String,
		StartedAt:    startedAt.Time,
	}, nil
}

// SetImpersonation attaches an impersonation marker to a session
func (s *PostgresSessionStore) SetImpersonation(ctx context.Context, sessionID uuid.UUID, session ImpersonationSession) error {
	query := `
		UPDATE sessions
		SET imp_admin_user_id = $2, imp_admin_name = $3,
			imp_target_user_id = $4, imp_target_name = $5, imp_started_at = $6
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, sessionID,
		session.AdminUserID, session.AdminName,
		session.TargetUserID, session.TargetName, session.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set impersonation marker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}

// CreateIdentity creates a brand-new session identity row
func (s *PostgresSessionStore) CreateIdentity(ctx context.Context, userID uuid.UUID) (Identity, error) {
	query := `
		INSERT INTO session_identities (id, user_id, issued_at)
		VALUES ($1, $2, NOW())
		RETURNING id, user_id, issued_at
	`

	identity := Identity{}
	err := s.pool.QueryRow(ctx, query, uuid.New(), userID).Scan(
		&identity.ID, &identity.UserID, &identity.IssuedAt,
	)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to create session identity: %w", err)
	}
	return identity, nil
}

// SwapIdentity atomically clears the impersonation marker and binds the
// session to the given identity in a single statement
func (s *PostgresSessionStore) SwapIdentity(ctx context.Context, sessionID uuid.UUID, identity Identity) error {
	query := `
		UPDATE sessions
		SET identity_id = $2, user_id = $3,
			imp_admin_user_id = NULL, imp_admin_name = NULL,
			imp_target_user_id = NULL, imp_target_name = NULL, imp_started_at = NULL
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, sessionID, identity.ID, identity.UserID)
	if err != nil {
		return fmt.Errorf("failed to swap session identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}
