package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/kauf3r/agent-trust-layer/approval"
	"github.com/kauf3r/agent-trust-layer/approval/postgres"
	"github.com/kauf3r/agent-trust-layer/schema"
)

func newMockStore(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return postgres.New(sqlx.NewDb(db, "postgres")), mock
}

func TestCreateRequest_InsertsComputedRow(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO approval_requests").WillReturnResult(sqlmock.NewResult(1, 1))

	req, err := store.CreateRequest(context.Background(), approval.Request{
		Domain: "asi", RunID: "r1", Workflow: "w", Requester: "worker",
		TrustLevel: schema.L3, ActionType: "post_alert",
	})
	require.NoError(t, err)
	require.Equal(t, schema.StatusPending, req.Status)
	require.NotEqual(t, uuid.Nil, req.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRequest_NotFoundMapsToErrNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM approval_requests").WillReturnRows(sqlmock.NewRows(nil))

	_, err := store.GetRequest(context.Background(), uuid.New())
	require.ErrorIs(t, err, approval.ErrNotFound)
}

func TestGetPendingRequests_CachesRepeatedCallsWithSameFilter(t *testing.T) {
	store, mock := newMockStore(t)
	cols := []string{
		"id", "created_at", "domain", "run_id", "workflow_name", "requester", "trust_level",
		"action_type", "action_payload", "status", "expires_at", "context", "reviewer_verdict",
		"reviewer_notes", "auto_approve_eligible", "auto_approve_reason",
	}
	mock.ExpectQuery("SELECT \\* FROM approval_requests").WillReturnRows(sqlmock.NewRows(cols))

	filter := approval.PendingFilter{RunID: "r1"}
	first, err := store.GetPendingRequests(context.Background(), filter)
	require.NoError(t, err)
	require.Empty(t, first)

	// A second call with the same filter must be served from the cache,
	// not issue a second query — sqlmock has only one expectation queued.
	second, err := store.GetPendingRequests(context.Background(), filter)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPendingRequests_CreateRequestInvalidatesCache(t *testing.T) {
	store, mock := newMockStore(t)
	cols := []string{
		"id", "created_at", "domain", "run_id", "workflow_name", "requester", "trust_level",
		"action_type", "action_payload", "status", "expires_at", "context", "reviewer_verdict",
		"reviewer_notes", "auto_approve_eligible", "auto_approve_reason",
	}
	mock.ExpectQuery("SELECT \\* FROM approval_requests").WillReturnRows(sqlmock.NewRows(cols))
	filter := approval.PendingFilter{RunID: "r1"}
	_, err := store.GetPendingRequests(context.Background(), filter)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO approval_requests").WillReturnResult(sqlmock.NewResult(1, 1))
	_, err = store.CreateRequest(context.Background(), approval.Request{
		Domain: "asi", RunID: "r1", Workflow: "w", Requester: "worker",
		TrustLevel: schema.L3, ActionType: "post_alert",
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT \\* FROM approval_requests").WillReturnRows(sqlmock.NewRows(cols))
	_, err = store.GetPendingRequests(context.Background(), filter)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRequest_PropagatesRow(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now().UTC()
	cols := []string{
		"id", "created_at", "domain", "run_id", "workflow_name", "requester", "trust_level",
		"action_type", "action_payload", "status", "expires_at", "context", "reviewer_verdict",
		"reviewer_notes", "auto_approve_eligible", "auto_approve_reason",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		id, now, "asi", "r1", "w", "worker", "L3",
		"post_alert", []byte(`{}`), "PENDING", now.Add(time.Hour), nil, nil,
		nil, true, nil,
	)
	mock.ExpectQuery("SELECT \\* FROM approval_requests").WillReturnRows(rows)

	got, err := store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.Equal(t, schema.L3, got.TrustLevel)
	require.Equal(t, schema.StatusPending, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
