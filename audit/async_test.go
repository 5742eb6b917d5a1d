package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kauf3r/agent-trust-layer/audit"
	"github.com/kauf3r/agent-trust-layer/audit/memstore"
	"github.com/kauf3r/agent-trust-layer/schema"
	"github.com/kauf3r/agent-trust-layer/telemetry"
)

func validEvent() audit.Event {
	return audit.Event{
		Domain:     "asi",
		Workflow:   "daily_ops_brief",
		Agent:      "planner",
		RunID:      "run-1",
		TrustLevel: schema.L0,
		Stage:      schema.StagePlan,
		Intent:     "fetch bookings",
	}
}

func TestAppend_ValidationFailureReturnsIDWithoutPersisting(t *testing.T) {
	store := memstore.New()
	async := audit.NewAsyncStore(store, telemetry.NewNoopLogger(), audit.Synchronous, 0)

	res, err := async.Append(context.Background(), audit.Event{})
	require.Error(t, err)
	require.False(t, res.Ok)
	require.NotEmpty(t, res.ID)

	events, err := store.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestAppend_FireAndForgetEventuallyPersists(t *testing.T) {
	store := memstore.New()
	async := audit.NewAsyncStore(store, telemetry.NewNoopLogger(), audit.FireAndForget, 4)
	defer async.Close()

	res, err := async.Append(context.Background(), validEvent())
	require.NoError(t, err)
	require.True(t, res.Ok)

	require.Eventually(t, func() bool {
		events, _ := store.Query(context.Background(), audit.Filter{RunID: "run-1"})
		return len(events) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestQuery_OrdersByCreatedAtDescending(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	first := validEvent()
	first.CreatedAt = time.Now().Add(-time.Minute)
	second := validEvent()
	second.CreatedAt = time.Now()

	_, err := store.Append(ctx, first)
	require.NoError(t, err)
	_, err = store.Append(ctx, second)
	require.NoError(t, err)

	events, err := store.Query(ctx, audit.Filter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.True(t, events[0].CreatedAt.After(events[1].CreatedAt))
}

func TestStats_BucketsByTrustStageDomainAndErrors(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	ok := validEvent()
	failing := validEvent()
	failing.Stage = schema.StageExecute
	failing.TrustLevel = schema.L2
	failing.Errors = []string{"boom"}

	_, err := store.Append(ctx, ok)
	require.NoError(t, err)
	_, err = store.Append(ctx, failing)
	require.NoError(t, err)

	stats, err := store.Stats(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.WithErrors)
	require.Equal(t, 1, stats.ByTrust[schema.L0])
	require.Equal(t, 1, stats.ByTrust[schema.L2])
}
