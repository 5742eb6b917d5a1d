package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/kauf3r/agent-trust-layer/audit"
	"github.com/kauf3r/agent-trust-layer/audit/postgres"
	"github.com/kauf3r/agent-trust-layer/schema"
)

func newMockStore(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return postgres.New(sqlx.NewDb(db, "postgres")), mock
}

func TestAppend_InsertsValidEvent(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO agent_action_events").WillReturnResult(sqlmock.NewResult(1, 1))

	res, err := store.Append(context.Background(), audit.Event{
		Domain: "asi", Workflow: "w", Agent: "planner-1", RunID: "r1",
		TrustLevel: schema.L0, Stage: schema.StagePlan, Intent: "tool_call:asi.get_bookings",
		Summary: "ok",
	})
	require.NoError(t, err)
	require.True(t, res.Ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_InvalidEventNeverReachesDB(t *testing.T) {
	store, mock := newMockStore(t)

	res, err := store.Append(context.Background(), audit.Event{})
	require.Error(t, err)
	require.False(t, res.Ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_FiltersByRunID(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	cols := []string{
		"id", "created_at", "domain", "workflow", "agent", "run_id", "trust_level", "stage",
		"intent", "tool_name", "tool_args", "tool_result", "artifact_refs", "warnings",
		"errors", "summary", "confidence", "approval_request_id", "sandbox_id", "sandbox_artifacts",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"11111111-1111-1111-1111-111111111111", now, "asi", "w", "planner-1", "r1", "L0", "plan",
		"tool_call:asi.get_bookings", nil, []byte(`{}`), []byte(`{}`), "{}", "{}",
		"{}", "ok", 0.0, nil, nil, "{}",
	)
	mock.ExpectQuery("SELECT \\* FROM agent_action_events").WillReturnRows(rows)

	events, err := store.Query(context.Background(), audit.Filter{RunID: "r1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "r1", events[0].RunID)
	require.NoError(t, mock.ExpectationsWereMet())
}
