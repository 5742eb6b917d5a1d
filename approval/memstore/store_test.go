package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kauf3r/agent-trust-layer/approval"
	"github.com/kauf3r/agent-trust-layer/approval/memstore"
	"github.com/kauf3r/agent-trust-layer/schema"
)

func pass() *schema.Verdict {
	v := schema.VerdictPass
	return &v
}

func TestCreateRequest_L4NeverAutoApproveEligible(t *testing.T) {
	s := memstore.New(nil)
	req, err := s.CreateRequest(context.Background(), approval.Request{
		Domain: "asi", RunID: "r1", Workflow: "w", Requester: "planner",
		TrustLevel: schema.L4, ActionType: "send_invoice", ReviewerVerdict: pass(),
	})
	require.NoError(t, err)
	require.False(t, req.AutoApproveEligible)
}

func TestAutoApprove_SucceedsForEligibleAllowedAction(t *testing.T) {
	ctx := context.Background()
	s := memstore.New(nil)
	req, err := s.CreateRequest(ctx, approval.Request{
		Domain: "asi", RunID: "r1", Workflow: "w", Requester: "worker",
		TrustLevel: schema.L3, ActionType: "post_alert", ReviewerVerdict: pass(),
	})
	require.NoError(t, err)
	require.True(t, req.AutoApproveEligible)

	dec, err := s.AutoApprove(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, approval.SystemAutoApprove, dec.DecidedBy)
	require.Equal(t, schema.DecisionApprove, dec.Decision)

	approved, err := s.IsApproved(ctx, req.ID)
	require.NoError(t, err)
	require.True(t, approved)
}

func TestAutoApprove_DeniedActionNeverEligible(t *testing.T) {
	ctx := context.Background()
	s := memstore.New(nil)
	req, err := s.CreateRequest(ctx, approval.Request{
		Domain: "asi", RunID: "r1", Workflow: "w", Requester: "worker",
		TrustLevel: schema.L3, ActionType: "mark_checkpoint_complete", ReviewerVerdict: pass(),
	})
	require.NoError(t, err)
	require.False(t, req.AutoApproveEligible)

	_, err = s.AutoApprove(ctx, req.ID)
	require.ErrorIs(t, err, approval.ErrNoDecisionProduced)
}

func TestCreateDecision_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	s := memstore.New(nil)
	req, err := s.CreateRequest(ctx, approval.Request{
		Domain: "asi", RunID: "r1", Workflow: "w", Requester: "worker",
		TrustLevel: schema.L3, ActionType: "post_alert", ReviewerVerdict: pass(),
	})
	require.NoError(t, err)

	_, err = s.CreateDecision(ctx, approval.Decision{RequestID: req.ID, DecidedBy: "alice", Decision: schema.DecisionApprove})
	require.NoError(t, err)

	_, err = s.CreateDecision(ctx, approval.Decision{RequestID: req.ID, DecidedBy: "bob", Decision: schema.DecisionApprove})
	require.ErrorIs(t, err, approval.ErrAlreadyDecided)

	r, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, schema.StatusApproved, r.Status)
}

func TestGetPendingRequests_ExcludesExpiredAtBoundary(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := memstore.New(func() time.Time { return current })

	req, err := s.CreateRequest(ctx, approval.Request{
		Domain: "asi", RunID: "r1", Workflow: "w", Requester: "worker",
		TrustLevel: schema.L3, ActionType: "post_alert",
	})
	require.NoError(t, err)

	pending, err := s.GetPendingRequests(ctx, approval.PendingFilter{RunID: "r1"})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// Advance the clock to exactly the expiry instant.
	current = req.ExpiresAt
	pending, err = s.GetPendingRequests(ctx, approval.PendingFilter{RunID: "r1"})
	require.NoError(t, err)
	require.Empty(t, pending, "request must be excluded exactly at now >= expiry")
}

func TestAutoApprove_ExpiredRequestProducesNoDecision(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := memstore.New(func() time.Time { return current })

	req, err := s.CreateRequest(ctx, approval.Request{
		Domain: "asi", RunID: "r1", Workflow: "w", Requester: "worker",
		TrustLevel: schema.L3, ActionType: "post_alert", ReviewerVerdict: pass(),
	})
	require.NoError(t, err)

	current = req.ExpiresAt.Add(time.Second)
	_, err = s.AutoApprove(ctx, req.ID)
	require.ErrorIs(t, err, approval.ErrNoDecisionProduced)
}

func TestExpireStaleRequests_Idempotent(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := memstore.New(func() time.Time { return current })

	req, err := s.CreateRequest(ctx, approval.Request{
		Domain: "asi", RunID: "r1", Workflow: "w", Requester: "worker",
		TrustLevel: schema.L3, ActionType: "post_alert",
	})
	require.NoError(t, err)

	current = req.ExpiresAt.Add(time.Second)
	n, err := s.ExpireStaleRequests(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.ExpireStaleRequests(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
