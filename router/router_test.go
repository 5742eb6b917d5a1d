package router_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kauf3r/agent-trust-layer/audit/memstore"
	"github.com/kauf3r/agent-trust-layer/gate"
	"github.com/kauf3r/agent-trust-layer/router"
	"github.com/kauf3r/agent-trust-layer/schema"
)

func readTool(name string) schema.ToolDefinition {
	return schema.ToolDefinition{
		Name: name, Description: "test tool", Capability: schema.CapabilityRead,
		Risk: schema.RiskLow, ExecutionMode: schema.ExecutionDirect, Verification: schema.VerificationNone,
	}
}

func TestCall_UnknownToolDeniesAndAudits(t *testing.T) {
	auditStore := memstore.New()
	r := router.New(gate.NewConfig(), nil, nil, nil, auditStore, nil)

	resp := r.Call(context.Background(), router.Request{
		ToolName: "asi.unregistered", Stage: schema.StagePlan,
		Context: gate.CallContext{AgentName: "planner-1", RunID: "run-1"},
		Domain:  "asi", Workflow: "w",
	})
	require.False(t, resp.Allowed)

	stats, err := auditStore.Stats(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.WithErrors)
}

func TestCall_AllowedReadInvokesHandlerAndAuditsOnce(t *testing.T) {
	auditStore := memstore.New()
	r := router.New(gate.NewConfig(), nil, nil, nil, auditStore, nil)

	require.NoError(t, r.Register(readTool("asi.get_bookings"), func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"bookings": []string{"b1"}}, nil
	}))

	resp := r.Call(context.Background(), router.Request{
		ToolName: "asi.get_bookings", Stage: schema.StagePlan,
		Context: gate.CallContext{AgentName: "planner-1", RunID: "run-2"},
		Domain:  "asi", Workflow: "w",
	})
	require.True(t, resp.Allowed)
	require.NoError(t, resp.Err)

	stats, err := auditStore.Stats(context.Background(), "run-2")
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 0, stats.WithErrors)
}

func TestCallParallel_CollectsResultsByName(t *testing.T) {
	auditStore := memstore.New()
	r := router.New(gate.NewConfig(), nil, nil, nil, auditStore, nil)
	require.NoError(t, r.Register(readTool("asi.get_bookings"), func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	}))
	require.NoError(t, r.Register(readTool("asi.get_guests"), func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	}))

	batch := []router.BatchItem{
		{Name: "bookings", Request: router.Request{ToolName: "asi.get_bookings", Stage: schema.StagePlan, Context: gate.CallContext{AgentName: "p", RunID: "run-3"}, Domain: "asi", Workflow: "w"}},
		{Name: "guests", Request: router.Request{ToolName: "asi.get_guests", Stage: schema.StagePlan, Context: gate.CallContext{AgentName: "p", RunID: "run-3"}, Domain: "asi", Workflow: "w"}},
	}
	results := r.CallParallel(context.Background(), nil, batch)
	require.Len(t, results, 2)
	require.True(t, results["bookings"].Allowed)
	require.True(t, results["guests"].Allowed)
}
