package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorpasses/trustcore/pkg/errors"
)

// testClock is a controllable clock for deterministic event timestamps
type testClock struct {
	current time.Time
}

func (c *testClock) now() time.Time {
	return c.current
}

func (c *testClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestLedger() (*Service, *InMemRepository, *testClock) {
	repo := NewInMemRepository()
	clock := &testClock{current: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	return NewServiceWithClock(repo, clock.now), repo, clock
}

func TestAppend(t *testing.T) {
	svc, _, clock := newTestLedger()
	ctx := context.Background()

	actor := uuid.New()
	target := uuid.New()
	org := uuid.New()

	event, err := svc.Append(ctx, AppendRequest{
		Action:         ActionAccessPassIssued,
		ActorUserID:    actor,
		TargetUserID:   &target,
		OrganizationID: &org,
		Message:        "issued access pass",
		Metadata:       map[string]interface{}{"card_template": "template_123"},
	})
	require.NoError(t, err)

	// Caller-supplied fields are stored exactly; ID and OccurredAt are
	// assigned by the ledger.
	assert.Equal(t, int64(1), event.ID)
	assert.Equal(t, ActionAccessPassIssued, event.Action)
	assert.Equal(t, actor, event.ActorUserID)
	assert.Equal(t, &target, event.TargetUserID)
	assert.Equal(t, &org, event.OrganizationID)
	assert.Equal(t, "issued access pass", event.Message)
	assert.Equal(t, "template_123", event.Metadata["card_template"])
	assert.Equal(t, clock.current, event.OccurredAt)

	second, err := svc.Append(ctx, AppendRequest{
		Action:      ActionAccessPassRevoked,
		ActorUserID: actor,
		Message:     "revoked access pass",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)
}

func TestAppendInvalidAction(t *testing.T) {
	svc, repo, _ := newTestLedger()
	ctx := context.Background()

	_, err := svc.Append(ctx, AppendRequest{
		Action:      Action("NOT_A_REAL_ACTION"),
		ActorUserID: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidAction))
	assert.Equal(t, 0, repo.Len(), "rejected append must not write")
}

// seedEvents appends three events ten minutes apart:
// E1(org A, pass issued), E2(org B, pass revoked), E3(org A, pass revoked)
func seedEvents(t *testing.T, svc *Service, clock *testClock, orgA, orgB uuid.UUID, actor uuid.UUID) []Event {
	t.Helper()
	ctx := context.Background()

	var events []Event
	for _, req := range []AppendRequest{
		{Action: ActionAccessPassIssued, ActorUserID: actor, OrganizationID: &orgA, Message: "E1"},
		{Action: ActionAccessPassRevoked, ActorUserID: uuid.New(), OrganizationID: &orgB, Message: "E2"},
		{Action: ActionAccessPassRevoked, ActorUserID: uuid.New(), OrganizationID: &orgA, Message: "E3"},
	} {
		event, err := svc.Append(ctx, req)
		require.NoError(t, err)
		events = append(events, event)
		clock.advance(10 * time.Minute)
	}
	return events
}

func TestQueryFilters(t *testing.T) {
	svc, _, clock := newTestLedger()
	ctx := context.Background()

	orgA := uuid.New()
	orgB := uuid.New()
	actor := uuid.New()
	seeded := seedEvents(t, svc, clock, orgA, orgB, actor)

	t.Run("EmptyFilterReturnsAllAscending", func(t *testing.T) {
		events, err := svc.Query(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, []string{"E1", "E2", "E3"}, messages(events))
	})

	t.Run("ByOrganization", func(t *testing.T) {
		events, err := svc.Query(ctx, Filter{OrganizationID: &orgA})
		require.NoError(t, err)
		assert.Equal(t, []string{"E1", "E3"}, messages(events))
	})

	t.Run("ByActions", func(t *testing.T) {
		events, err := svc.Query(ctx, Filter{Actions: []Action{ActionAccessPassRevoked}})
		require.NoError(t, err)
		assert.Equal(t, []string{"E2", "E3"}, messages(events))
	})

	t.Run("ByUser", func(t *testing.T) {
		events, err := svc.Query(ctx, Filter{UserID: &actor})
		require.NoError(t, err)
		assert.Equal(t, []string{"E1"}, messages(events))
	})

	t.Run("ByDateRangeInclusive", func(t *testing.T) {
		start := seeded[1].OccurredAt
		end := seeded[2].OccurredAt
		events, err := svc.Query(ctx, Filter{StartDate: &start, EndDate: &end})
		require.NoError(t, err)
		assert.Equal(t, []string{"E2", "E3"}, messages(events))
	})

	t.Run("Conjunctive", func(t *testing.T) {
		events, err := svc.Query(ctx, Filter{
			OrganizationID: &orgA,
			Actions:        []Action{ActionAccessPassRevoked},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"E3"}, messages(events))
	})

	t.Run("NoMatch", func(t *testing.T) {
		orgC := uuid.New()
		events, err := svc.Query(ctx, Filter{OrganizationID: &orgC})
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func messages(events []Event) []string {
	out := make([]string, len(events))
	for i, event := range events {
		out[i] = event.Message
	}
	return out
}

func TestQueryTieBreakByID(t *testing.T) {
	svc, _, _ := newTestLedger()
	ctx := context.Background()

	// Fixed clock: both events share the same occurred_at
	first, err := svc.Append(ctx, AppendRequest{Action: ActionOrgSettingsUpdated, ActorUserID: uuid.New(), Message: "first"})
	require.NoError(t, err)
	second, err := svc.Append(ctx, AppendRequest{Action: ActionOrgSettingsUpdated, ActorUserID: uuid.New(), Message: "second"})
	require.NoError(t, err)
	require.Equal(t, first.OccurredAt, second.OccurredAt)

	events, err := svc.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, messages(events))
}

func TestExportCSV(t *testing.T) {
	svc, _, clock := newTestLedger()
	ctx := context.Background()

	orgA := uuid.New()
	target := uuid.New()
	_, err := svc.Append(ctx, AppendRequest{
		Action:         ActionImpersonationEnd,
		ActorUserID:    uuid.New(),
		TargetUserID:   &target,
		OrganizationID: &orgA,
		Message:        `message with "quotes", commas and` + "\nnewline",
		Metadata:       map[string]interface{}{"duration": 120000},
	})
	require.NoError(t, err)
	clock.advance(time.Minute)
	_, err = svc.Append(ctx, AppendRequest{
		Action:      ActionAuditLogExported,
		ActorUserID: uuid.New(),
		Message:     "exported",
	})
	require.NoError(t, err)

	out, err := svc.ExportCSV(ctx, Filter{})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus one row per event")

	assert.Equal(t, csvColumns, records[0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, string(ActionImpersonationEnd), records[1][1])
	assert.Equal(t, target.String(), records[1][3])
	assert.Equal(t, orgA.String(), records[1][4])
	assert.Equal(t, `message with "quotes", commas and`+"\nnewline", records[1][6])

	// Metadata round-trips through the embedded JSON column
	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(records[1][7]), &metadata))
	assert.Equal(t, float64(120000), metadata["duration"])

	// occurred_at is ISO-8601
	_, err = time.Parse(time.RFC3339, records[1][5])
	assert.NoError(t, err)

	// Events without optional fields export empty cells and empty metadata object
	assert.Equal(t, "", records[2][3])
	assert.Equal(t, "", records[2][4])
	assert.Equal(t, "{}", records[2][7])
}

func TestExportJSON(t *testing.T) {
	svc, _, clock := newTestLedger()
	ctx := context.Background()

	orgA := uuid.New()
	orgB := uuid.New()
	seedEvents(t, svc, clock, orgA, orgB, uuid.New())

	filter := Filter{OrganizationID: &orgA}
	out, err := svc.ExportJSON(ctx, filter)
	require.NoError(t, err)

	var exported []Event
	require.NoError(t, json.Unmarshal(out, &exported))

	queried, err := svc.Query(ctx, filter)
	require.NoError(t, err)
	require.Len(t, exported, len(queried))
	for i := range queried {
		assert.Equal(t, queried[i].Action, exported[i].Action)
		assert.Equal(t, queried[i].ActorUserID, exported[i].ActorUserID)
		assert.True(t, queried[i].OccurredAt.Equal(exported[i].OccurredAt))
	}
}

func TestExportEmptyLedger(t *testing.T) {
	svc, _, _ := newTestLedger()
	ctx := context.Background()

	out, err := svc.ExportJSON(ctx, Filter{})
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(out))

	csvOut, err := svc.ExportCSV(ctx, Filter{})
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(csvOut)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1, "header only")
}

func TestParseActions(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		actions, err := ParseActions("")
		require.NoError(t, err)
		assert.Nil(t, actions)
	})

	t.Run("List", func(t *testing.T) {
		actions, err := ParseActions("ADMIN_IMPERSONATION_END, AUDIT_LOG_EXPORTED")
		require.NoError(t, err)
		assert.Equal(t, []Action{ActionImpersonationEnd, ActionAuditLogExported}, actions)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := ParseActions("ADMIN_IMPERSONATION_END,BOGUS")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidAction))
	})
}
