// Package router implements the tool router from spec.md §4.G: it
// registers (ToolDefinition, Handler) pairs, validates and dispatches calls
// through the trust gate and sandbox, re-verifies commit tools through the
// commit boundary, and guarantees exactly one audit event per outcome.
package router

import (
	"context"
	"sync"

	"github.com/kauf3r/agent-trust-layer/audit"
	"github.com/kauf3r/agent-trust-layer/gate"
	"github.com/kauf3r/agent-trust-layer/schema"
	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// CommitVerifier is the narrow capability the router needs from the commit
// boundary: a second, independent barrier for commit-stage tool calls.
// commit.Boundary.Eligible satisfies this.
type CommitVerifier interface {
	Eligible(ctx context.Context, runID, toolName, sandboxID string) (allowed bool, reason string)
}

// Sandboxer runs a handler under isolation, returning the handler's result
// value directly (error on failure). The router doesn't interpret sandbox
// internals beyond this.
type Sandboxer interface {
	Run(ctx context.Context, toolName string, args map[string]any, handler schema.Handler) (map[string]any, error)
}

// Request is one call into the router.
type Request struct {
	ToolName string
	Args     map[string]any
	Stage    schema.Stage
	Context  gate.CallContext
	Domain   string
	Workflow string
}

// Response is the router's answer to one call.
type Response struct {
	Allowed             bool
	Result              map[string]any
	Reason              string
	Err                 error
	RequiresApproval    bool
	AutoApproveEligible bool
	IsCommitTool        bool
	TrustLevel          schema.TrustLevel
}

// Router is the tool router.
type Router struct {
	mu       sync.RWMutex
	tools    map[string]schema.ToolDefinition
	handlers map[string]schema.Handler

	gateConfig gate.Config
	approvals  gate.Approvals
	commit     CommitVerifier
	sandboxer  Sandboxer
	auditLog   audit.Store
	logger     telemetry.Logger
}

// New constructs a Router. approvals and commit may be nil; sandboxer may
// be nil if no tool in the registry requires sandboxing.
func New(cfg gate.Config, approvals gate.Approvals, commitVerifier CommitVerifier, sandboxer Sandboxer, auditLog audit.Store, logger telemetry.Logger) *Router {
	return &Router{
		tools: map[string]schema.ToolDefinition{}, handlers: map[string]schema.Handler{},
		gateConfig: cfg, approvals: approvals, commit: commitVerifier, sandboxer: sandboxer,
		auditLog: auditLog, logger: logger,
	}
}

// Register associates a validated ToolDefinition with its handler. Rejects
// ill-formed definitions without registering anything.
func (r *Router) Register(def schema.ToolDefinition, handler schema.Handler) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = def
	r.handlers[def.Name] = handler
	return nil
}

// Call performs the full dispatch sequence from spec.md §4.G.
func (r *Router) Call(ctx context.Context, req Request) Response {
	if req.ToolName == "" || req.Context.AgentName == "" || req.Context.RunID == "" {
		return r.finish(ctx, req, Response{Allowed: false, Reason: "fail-closed: request"}, schema.L4)
	}

	r.mu.RLock()
	tool, known := r.tools[req.ToolName]
	handler, hasHandler := r.handlers[req.ToolName]
	r.mu.RUnlock()

	if !known {
		return r.finish(ctx, req, Response{Allowed: false, Err: schema.ErrUnknownTool, Reason: "fail-closed: unknown tool"}, schema.L4)
	}
	if !hasHandler {
		return r.finish(ctx, req, Response{Allowed: false, Reason: "fail-closed: no handler registered"}, schema.L4)
	}

	decision := r.evaluate(ctx, tool, req)
	base := Response{
		RequiresApproval: decision.RequiresApproval, AutoApproveEligible: decision.AutoApproveEligible,
		IsCommitTool: decision.IsCommitTool, TrustLevel: decision.TrustLevel,
	}
	if !decision.Allowed {
		base.Allowed = false
		base.Reason = decision.Reason
		return r.finish(ctx, req, base, decision.TrustLevel)
	}

	if decision.IsCommitTool && r.commit != nil {
		allowed, reason := r.commit.Eligible(ctx, req.Context.RunID, req.ToolName, "")
		if !allowed {
			base.Allowed = false
			base.Reason = reason
			return r.finish(ctx, req, base, decision.TrustLevel)
		}
	}

	result, err := r.invoke(ctx, req, tool, handler, decision)
	base.Allowed = true
	base.Result = result
	base.Err = err
	if err != nil {
		base.Reason = "fail-closed: handler error: " + err.Error()
	}
	return r.finish(ctx, req, base, decision.TrustLevel)
}

func (r *Router) evaluate(ctx context.Context, tool schema.ToolDefinition, req Request) gate.Decision {
	if r.approvals != nil {
		return gate.EvaluateWithApproval(ctx, r.gateConfig, tool, req.Stage, req.Context, r.approvals)
	}
	return gate.Evaluate(r.gateConfig, tool, req.Stage, req.Context)
}

func (r *Router) invoke(ctx context.Context, req Request, tool schema.ToolDefinition, handler schema.Handler, decision gate.Decision) (map[string]any, error) {
	if decision.Sandboxed && r.sandboxer != nil {
		return r.sandboxer.Run(ctx, req.ToolName, req.Args, handler)
	}
	return handler(ctx, req.Args)
}

func (r *Router) finish(ctx context.Context, req Request, resp Response, trustLevel schema.TrustLevel) Response {
	if r.auditLog == nil {
		return resp
	}
	event := audit.Event{
		Domain: req.Domain, Workflow: req.Workflow, Agent: req.Context.AgentName,
		RunID: req.Context.RunID, TrustLevel: trustLevel, Stage: req.Stage,
		Intent: "tool_call:" + req.ToolName, ToolName: req.ToolName, ToolArgs: req.Args,
		ToolResult: resp.Result,
	}
	if !resp.Allowed {
		event.Errors = []string{resp.Reason}
		event.Summary = "tool call denied"
	} else if resp.Err != nil {
		event.Errors = []string{resp.Err.Error()}
		event.Summary = "tool call failed"
	} else {
		event.Summary = "tool call succeeded"
	}
	if _, err := r.auditLog.Append(ctx, event); err != nil && r.logger != nil {
		r.logger.Warn(ctx, "router: audit append failed", "tool", req.ToolName, "run_id", req.Context.RunID, "error", err)
	}
	return resp
}

// BatchItem is one call in a callParallel batch.
type BatchItem struct {
	Name    string
	Request Request
}

// CallParallel dispatches a batch of calls concurrently and collects
// results keyed by tool name. No ordering guarantee is made between
// concurrent calls beyond what the underlying handlers impose.
func (r *Router) CallParallel(ctx context.Context, limiter Limiter, batch []BatchItem) map[string]Response {
	out := make(map[string]Response, len(batch))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, item := range batch {
		wg.Add(1)
		go func(item BatchItem) {
			defer wg.Done()
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					mu.Lock()
					out[item.Name] = Response{Allowed: false, Reason: "fail-closed: rate limited", Err: err}
					mu.Unlock()
					return
				}
			}
			resp := r.Call(ctx, item.Request)
			mu.Lock()
			out[item.Name] = resp
			mu.Unlock()
		}(item)
	}
	wg.Wait()
	return out
}

// Limiter bounds concurrent dispatch; *rate.Limiter from golang.org/x/time/rate
// satisfies this via its Wait method.
type Limiter interface {
	Wait(ctx context.Context) error
}
