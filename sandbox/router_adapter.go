package sandbox

import (
	"context"
	"fmt"

	"github.com/kauf3r/agent-trust-layer/router"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// RouterAdapter bridges *Sandbox to router.Sandboxer, the narrow interface
// the tool router depends on for gate.Decision.Sandboxed calls. Without it
// the router has no sandboxer to wire in and every sandboxed call falls
// through to direct, unisolated invocation.
type RouterAdapter struct {
	sandbox *Sandbox
}

// NewRouterAdapter wraps s for use as a router.Sandboxer.
func NewRouterAdapter(s *Sandbox) *RouterAdapter {
	return &RouterAdapter{sandbox: s}
}

// Run satisfies router.Sandboxer. The router has no per-call classification
// of what entity a tool call mutates, so the staged change is recorded as a
// generic ChangeUpdate; domain code that needs create/delete-specific
// staged-change metadata should call Sandbox.Execute directly instead of
// going through the router.
func (a *RouterAdapter) Run(ctx context.Context, toolName string, args map[string]any, handler schema.Handler) (map[string]any, error) {
	res := a.sandbox.Execute(ctx, ExecuteInput{
		ToolName:   toolName,
		Args:       args,
		ChangeType: schema.ChangeUpdate,
		Handler:    handler,
	})
	if !res.Success {
		if res.Err != nil {
			return nil, res.Err
		}
		return nil, fmt.Errorf("sandbox: denied: %s", res.FailureReason)
	}
	return res.Value, nil
}

var _ router.Sandboxer = (*RouterAdapter)(nil)
