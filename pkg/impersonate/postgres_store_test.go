package impersonate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const sessionSchema = `
CREATE TABLE session_identities (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	issued_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE sessions (
	id UUID PRIMARY KEY,
	identity_id UUID REFERENCES session_identities (id),
	user_id UUID NOT NULL,
	imp_admin_user_id UUID,
	imp_admin_name TEXT,
	imp_target_user_id UUID,
	imp_target_name TEXT,
	imp_started_at TIMESTAMPTZ
);
`

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, sessionSchema)
	require.NoError(t, err)

	return pool
}

func seedSession(t *testing.T, pool *pgxpool.Pool, store *PostgresSessionStore, userID uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	identity, err := store.CreateIdentity(ctx, userID)
	require.NoError(t, err)

	sessionID := uuid.New()
	_, err = pool.Exec(ctx,
		"INSERT INTO sessions (id, identity_id, user_id) VALUES ($1, $2, $3)",
		sessionID, identity.ID, userID,
	)
	require.NoError(t, err)
	return sessionID
}

func TestPostgresSessionStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool := setupPostgres(t)
	store := NewPostgresSessionStore(pool)
	ctx := context.Background()

	adminID := uuid.New()
	targetID := uuid.New()
	sessionID := seedSession(t, pool, store, adminID)

	t.Run("NoMarkerByDefault", func(t *testing.T) {
		marker, err := store.GetImpersonation(ctx, sessionID)
		require.NoError(t, err)
		assert.Nil(t, marker)
	})

	t.Run("UnknownSessionHasNoMarker", func(t *testing.T) {
		marker, err := store.GetImpersonation(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, marker)
	})

	t.Run("SetAndGetMarker", func(t *testing.T) {
		startedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		err := store.SetImpersonation(ctx, sessionID, ImpersonationSession{
			AdminUserID:  adminID,
			AdminName:    "Alex Admin",
			TargetUserID: targetID,
			TargetName:   "Jane Doe",
			StartedAt:    startedAt,
		})
		require.NoError(t, err)

		marker, err := store.GetImpersonation(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, marker)
		assert.Equal(t, adminID, marker.AdminUserID)
		assert.Equal(t, "Jane Doe", marker.TargetName)
		assert.True(t, startedAt.Equal(marker.StartedAt))
	})

	t.Run("SetMarkerOnUnknownSession", func(t *testing.T) {
		err := store.SetImpersonation(ctx, uuid.New(), ImpersonationSession{
			AdminUserID:  adminID,
			TargetUserID: targetID,
			StartedAt:    time.Now().UTC(),
		})
		require.Error(t, err)
	})

	t.Run("SwapIdentityClearsMarker", func(t *testing.T) {
		identity, err := store.CreateIdentity(ctx, adminID)
		require.NoError(t, err)
		assert.Equal(t, adminID, identity.UserID)

		err = store.SwapIdentity(ctx, sessionID, identity)
		require.NoError(t, err)

		marker, err := store.GetImpersonation(ctx, sessionID)
		require.NoError(t, err)
		assert.Nil(t, marker)

		var boundIdentity, boundUser uuid.UUID
		err = pool.QueryRow(ctx,
			"SELECT identity_id, user_id FROM sessions WHERE id = $1", sessionID,
		).Scan(&boundIdentity, &boundUser)
		require.NoError(t, err)
		assert.Equal(t, identity.ID, boundIdentity)
		assert.Equal(t, adminID, boundUser)
	})

	t.Run("FreshIdentityPerHandback", func(t *testing.T) {
		first, err := store.CreateIdentity(ctx, adminID)
		require.NoError(t, err)
		second, err := store.CreateIdentity(ctx, adminID)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})
}
