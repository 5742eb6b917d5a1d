package orchestrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kauf3r/agent-trust-layer/audit/memstore"
	"github.com/kauf3r/agent-trust-layer/orchestrate"
	"github.com/kauf3r/agent-trust-layer/router"
	"github.com/kauf3r/agent-trust-layer/schema"
)

type scriptedClient struct {
	turns []orchestrate.Turn
	i     int
}

func (c *scriptedClient) Complete(_ context.Context, _ string, _ []orchestrate.Message) (orchestrate.Turn, error) {
	t := c.turns[c.i]
	if c.i < len(c.turns)-1 {
		c.i++
	}
	return t, nil
}

type fakeRouter struct {
	responses map[string]router.Response
}

func (f *fakeRouter) Call(_ context.Context, req router.Request) router.Response {
	if r, ok := f.responses[req.ToolName]; ok {
		return r
	}
	return router.Response{Allowed: true, Result: map[string]any{}}
}

func simpleWorkflow(stages ...schema.Stage) schema.WorkflowDefinition {
	return schema.WorkflowDefinition{
		Name: "test-workflow", Domain: schema.DomainASI, Stages: stages,
		Agents: []schema.AgentDefinition{
			{Name: "planner", Role: schema.RolePlanner, SystemPrompt: "plan", MaxTurns: 2},
			{Name: "worker", Role: schema.RoleWorker, SystemPrompt: "work", MaxTurns: 2},
			{Name: "reviewer", Role: schema.RoleReviewer, SystemPrompt: "review", MaxTurns: 1},
		},
	}
}

func TestRun_CompletesPlanReviewCommitWithPassingReview(t *testing.T) {
	client := &scriptedClient{turns: []orchestrate.Turn{
		{Text: "planned"},
		{Text: "VERDICT: PASS"},
		{Text: "committed"},
	}}
	auditStore := memstore.New()
	o := orchestrate.New(&fakeRouter{responses: map[string]router.Response{}}, nil, auditStore, client, nil, nil)

	result := o.Run(context.Background(), orchestrate.Input{
		RunID: "run-1", Domain: "asi", Text: "go",
		Workflow: simpleWorkflow(schema.StagePlan, schema.StageReview, schema.StageCommit),
	})

	require.Equal(t, schema.RunCompleted, result.Status)
	require.Equal(t, "committed", result.FinalResult)
	require.NotNil(t, result.ReviewerVerdict)
	require.Equal(t, schema.VerdictPass, *result.ReviewerVerdict)
}

func TestRun_FailsWhenReviewerVerdictIsFail(t *testing.T) {
	client := &scriptedClient{turns: []orchestrate.Turn{
		{Text: "planned"},
		{Text: "VERDICT: FAIL"},
	}}
	o := orchestrate.New(&fakeRouter{responses: map[string]router.Response{}}, nil, memstore.New(), client, nil, nil)

	result := o.Run(context.Background(), orchestrate.Input{
		RunID: "run-2", Domain: "asi", Text: "go",
		Workflow: simpleWorkflow(schema.StagePlan, schema.StageReview, schema.StageCommit),
	})

	require.Equal(t, schema.RunFailed, result.Status)
	require.NotNil(t, result.ReviewerVerdict)
	require.Equal(t, schema.VerdictFail, *result.ReviewerVerdict)
}

func TestRun_FailsClosedWhenWorkflowInvalid(t *testing.T) {
	client := &scriptedClient{turns: []orchestrate.Turn{{Text: "x"}}}
	o := orchestrate.New(&fakeRouter{}, nil, memstore.New(), client, nil, nil)

	result := o.Run(context.Background(), orchestrate.Input{
		RunID: "run-3", Domain: "asi", Text: "go",
		Workflow: schema.WorkflowDefinition{Name: "bad"},
	})

	require.Equal(t, schema.RunFailed, result.Status)
}

func TestRun_PausesForApprovalWithNoApprovalStoreConfigured(t *testing.T) {
	client := &scriptedClient{turns: []orchestrate.Turn{
		{Text: "planned"},
		{Text: "VERDICT: PASS"},
		{ToolCalls: []orchestrate.ToolCall{{Name: "asi.send_invoice", Args: map[string]any{}}}},
	}}
	o := orchestrate.New(&fakeRouter{responses: map[string]router.Response{
		"asi.send_invoice": {Allowed: false, RequiresApproval: true, IsCommitTool: true, TrustLevel: schema.L4, Reason: "fail-closed: requires approval"},
	}}, nil, memstore.New(), client, nil, nil)

	result := o.Run(context.Background(), orchestrate.Input{
		RunID: "run-4", Domain: "asi", Text: "go",
		Workflow: simpleWorkflow(schema.StagePlan, schema.StageReview, schema.StageCommit),
	})

	require.Equal(t, schema.RunRequiresApproval, result.Status)
}
