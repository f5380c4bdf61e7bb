package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/doorpasses/trustcore/pkg/fieldcrypt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const auditSchema = `
CREATE TABLE audit_events (
	id BIGSERIAL PRIMARY KEY,
	action TEXT NOT NULL,
	actor_user_id UUID NOT NULL,
	target_user_id UUID,
	organization_id UUID,
	occurred_at TIMESTAMPTZ NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	metadata JSONB
);

CREATE TABLE audit_notes (
	id BIGSERIAL PRIMARY KEY,
	organization_id UUID NOT NULL,
	note TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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

	_, err = pool.Exec(ctx, auditSchema)
	require.NoError(t, err)

	return pool
}

func TestPostgresRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool := setupPostgres(t)
	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	orgA := uuid.New()
	orgB := uuid.New()
	actor := uuid.New()
	target := uuid.New()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seed := []Event{
		{Action: ActionAccessPassIssued, ActorUserID: actor, OrganizationID: &orgA, OccurredAt: base, Message: "E1",
			Metadata: map[string]interface{}{"card_template": "template_123"}},
		{Action: ActionAccessPassRevoked, ActorUserID: uuid.New(), TargetUserID: &target, OrganizationID: &orgB,
			OccurredAt: base.Add(10 * time.Minute), Message: "E2"},
		{Action: ActionAccessPassRevoked, ActorUserID: uuid.New(), OrganizationID: &orgA,
			OccurredAt: base.Add(20 * time.Minute), Message: "E3"},
	}

	var lastID int64
	for _, event := range seed {
		stored, err := repo.Append(ctx, event)
		require.NoError(t, err)
		assert.Greater(t, stored.ID, lastID, "IDs are monotonic")
		lastID = stored.ID
	}

	t.Run("QueryAll", func(t *testing.T) {
		events, err := repo.Query(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, "E1", events[0].Message)
		assert.Equal(t, "template_123", events[0].Metadata["card_template"])
		assert.Equal(t, "E3", events[2].Message)
	})

	t.Run("QueryByOrganization", func(t *testing.T) {
		events, err := repo.Query(ctx, Filter{OrganizationID: &orgA})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "E1", events[0].Message)
		assert.Equal(t, "E3", events[1].Message)
	})

	t.Run("QueryByUserMatchesActorOrTarget", func(t *testing.T) {
		events, err := repo.Query(ctx, Filter{UserID: &target})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "E2", events[0].Message)
	})

	t.Run("QueryByActions", func(t *testing.T) {
		events, err := repo.Query(ctx, Filter{Actions: []Action{ActionAccessPassRevoked}})
		require.NoError(t, err)
		require.Len(t, events, 2)
	})

	t.Run("QueryByDateRange", func(t *testing.T) {
		start := base.Add(10 * time.Minute)
		end := base.Add(20 * time.Minute)
		events, err := repo.Query(ctx, Filter{StartDate: &start, EndDate: &end})
		require.NoError(t, err)
		require.Len(t, events, 2, "bounds are inclusive")
	})

	t.Run("NarrativeSink", func(t *testing.T) {
		sink := NewPostgresNarrativeSink(pool)
		err := sink.RecordNote(ctx, orgA, "Admin ended impersonation of Jane Doe")
		require.NoError(t, err)

		var count int
		err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_notes WHERE organization_id = $1", orgA).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("NarrativeSinkEncryptsAtRest", func(t *testing.T) {
		crypto, err := fieldcrypt.NewService(strings.Repeat("ab", 32))
		require.NoError(t, err)

		sink := NewPostgresNarrativeSinkWithEncryption(pool, crypto)
		err = sink.RecordNote(ctx, orgB, "Admin ended impersonation of John Smith")
		require.NoError(t, err)

		var stored string
		err = pool.QueryRow(ctx, "SELECT note FROM audit_notes WHERE organization_id = $1", orgB).Scan(&stored)
		require.NoError(t, err)
		assert.NotContains(t, stored, "John Smith")
		assert.True(t, fieldcrypt.IsEncrypted(stored))

		plain, legacy, err := crypto.Decrypt(stored)
		require.NoError(t, err)
		assert.False(t, legacy)
		assert.Equal(t, "Admin ended impersonation of John Smith", plain)
	})
}
