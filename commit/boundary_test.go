package commit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kauf3r/agent-trust-layer/approval"
	"github.com/kauf3r/agent-trust-layer/audit/memstore"
	"github.com/kauf3r/agent-trust-layer/commit"
	"github.com/kauf3r/agent-trust-layer/sandbox"
	"github.com/kauf3r/agent-trust-layer/schema"
)

type fakeApprovals struct {
	requests []approval.Request
}

func (f fakeApprovals) GetRequestsByRunID(_ context.Context, runID string) ([]approval.Request, error) {
	var out []approval.Request
	for _, r := range f.requests {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeStaged struct {
	changes map[string][]sandbox.StagedChange
}

func (f fakeStaged) GetStagedChanges(sandboxID string) []sandbox.StagedChange {
	return f.changes[sandboxID]
}

func passVerdict() *schema.Verdict {
	v := schema.VerdictPass
	return &v
}

func TestExecuteCommit_PostAlertSucceedsWithApprovedRequest(t *testing.T) {
	ctx := context.Background()
	approvals := fakeApprovals{requests: []approval.Request{{
		ID: uuid.New(), RunID: "run-1", ActionType: "post_alert",
		TrustLevel: schema.L3, Status: schema.StatusApproved,
		ReviewerVerdict: passVerdict(), ExpiresAt: time.Now().Add(time.Hour),
	}}}

	auditStore := memstore.New()
	b := commit.New(approvals, fakeStaged{}, auditStore)
	called := false
	b.RegisterHandler(schema.CommitPostAlert, func(_ context.Context, commitID string, _ map[string]any, _ []sandbox.StagedChange) (int, error) {
		called = true
		require.NotEmpty(t, commitID)
		return 1, nil
	})

	n, err := b.ExecuteCommit(ctx, "run-1", "post_alert", "sb-1", nil, "asi", "worker-1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, called)

	stats, err := auditStore.Stats(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 0, stats.WithErrors)
}

func TestExecuteCommit_ApplyChangesRequiresStagedChanges(t *testing.T) {
	ctx := context.Background()
	approvals := fakeApprovals{requests: []approval.Request{{
		ID: uuid.New(), RunID: "run-2", ActionType: "apply_changes",
		TrustLevel: schema.L3, Status: schema.StatusApproved,
		ReviewerVerdict: passVerdict(), ExpiresAt: time.Now().Add(time.Hour),
	}}}
	auditStore := memstore.New()
	b := commit.New(approvals, fakeStaged{changes: map[string][]sandbox.StagedChange{}}, auditStore)
	b.RegisterHandler(schema.CommitApplyChanges, func(_ context.Context, _ string, _ map[string]any, _ []sandbox.StagedChange) (int, error) {
		t.Fatal("handler must not run without staged changes")
		return 0, nil
	})

	_, err := b.ExecuteCommit(ctx, "run-2", "apply_changes", "sb-2", nil, "asi", "worker-1")
	require.Error(t, err)

	stats, err := auditStore.Stats(ctx, "run-2")
	require.NoError(t, err)
	require.Equal(t, 1, stats.WithErrors)
}

func TestExecuteCommit_NoMatchingApprovalDenies(t *testing.T) {
	ctx := context.Background()
	auditStore := memstore.New()
	b := commit.New(fakeApprovals{}, fakeStaged{}, auditStore)
	b.RegisterHandler(schema.CommitSendInvoice, func(_ context.Context, _ string, _ map[string]any, _ []sandbox.StagedChange) (int, error) {
		t.Fatal("handler must not run without an approval")
		return 0, nil
	})

	_, err := b.ExecuteCommit(ctx, "run-3", "send_invoice", "", nil, "asi", "worker-1")
	require.Error(t, err)
}
