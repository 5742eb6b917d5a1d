// Package orchestrate implements the stage-sequenced workflow orchestrator
// from spec.md §4.I: it runs a workflow's stages in order, drives an LLM
// agent per stage through the tool router, threads the reviewer verdict
// and approval state through to commit, and creates/auto-approves approval
// requests when a tool call signals it needs one.
package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/kauf3r/agent-trust-layer/approval"
	"github.com/kauf3r/agent-trust-layer/audit"
	"github.com/kauf3r/agent-trust-layer/gate"
	"github.com/kauf3r/agent-trust-layer/router"
	"github.com/kauf3r/agent-trust-layer/schema"
	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// ToolRouter is the capability the orchestrator needs from the tool router.
type ToolRouter interface {
	Call(ctx context.Context, req router.Request) router.Response
}

// Notifier is the optional best-effort notification hook fired when an
// approval request requiring human sign-off is created.
type Notifier interface {
	NotifyRequestCreated(ctx context.Context, req approval.Request)
}

// Input is one workflow run's starting input.
type Input struct {
	RunID    string
	Domain   string
	Workflow schema.WorkflowDefinition
	Text     string
}

// Result is the orchestrator's answer for a completed or paused run.
type Result struct {
	RunID           string
	Status          schema.RunStatus
	FinalResult     string
	Events          []audit.Event
	Duration        time.Duration
	ApprovalID      string
	ReviewerVerdict *schema.Verdict
}

// Orchestrator runs workflows against the tool router, approval store, and
// LLM client it is constructed with.
type Orchestrator struct {
	router    ToolRouter
	approvals approval.Store
	auditLog  audit.Store
	llm       Client
	notifier  Notifier
	logger    telemetry.Logger
}

// New constructs an Orchestrator. notifier may be nil.
func New(toolRouter ToolRouter, approvals approval.Store, auditLog audit.Store, llm Client, notifier Notifier, logger telemetry.Logger) *Orchestrator {
	return &Orchestrator{router: toolRouter, approvals: approvals, auditLog: auditLog, llm: llm, notifier: notifier, logger: logger}
}

// terminal is a sentinel the stage loop uses to stop early with a result.
type terminal struct {
	result Result
}

// Run executes in.Workflow's stages in order per spec.md §4.I.
func (o *Orchestrator) Run(ctx context.Context, in Input) Result {
	start := time.Now()
	events := []audit.Event{}

	if err := in.Workflow.Validate(); err != nil {
		o.audit(ctx, &events, in, "", schema.StagePlan, schema.L4, "workflow validation failed", err.Error())
		return Result{RunID: in.RunID, Status: schema.RunFailed, Events: events, Duration: time.Since(start)}
	}

	var reviewerVerdict *schema.Verdict
	var approvalID string
	stageInput := in.Text

	for _, stage := range in.Workflow.Stages {
		role, err := schema.RoleForStage(stage)
		if err != nil {
			o.audit(ctx, &events, in, "", stage, schema.L4, "no role for stage", err.Error())
			return Result{RunID: in.RunID, Status: schema.RunFailed, Events: events, Duration: time.Since(start)}
		}
		agent, ok := in.Workflow.AgentForRole(role)
		if !ok {
			o.audit(ctx, &events, in, "", stage, schema.L4, "missing agent for stage", "fail-closed: no agent for role "+string(role))
			return Result{RunID: in.RunID, Status: schema.RunFailed, Events: events, Duration: time.Since(start)}
		}

		if stage == schema.StageCommit && reviewerVerdict == nil {
			o.audit(ctx, &events, in, agent.Name, stage, schema.L4, "commit without reviewer verdict", "fail-closed: no reviewer verdict captured")
			return Result{RunID: in.RunID, Status: schema.RunFailed, Events: events, Duration: time.Since(start)}
		}

		output, stageErr := o.runStage(ctx, in, *agent, stage, stageInput, reviewerVerdict, &approvalID, &events)
		if t, isTerm := stageErr.(*terminal); isTerm {
			t.result.Events = events
			t.result.Duration = time.Since(start)
			return t.result
		}

		if stage == schema.StageReview {
			verdict := ParseVerdict(output)
			if verdict == nil || *verdict == schema.VerdictFail {
				o.audit(ctx, &events, in, agent.Name, stage, schema.L1, "reviewer FAIL — commit blocked", "")
				return Result{RunID: in.RunID, Status: schema.RunFailed, Events: events, Duration: time.Since(start), ReviewerVerdict: verdict}
			}
			reviewerVerdict = verdict
		}

		stageInput = output
	}

	o.audit(ctx, &events, in, "", in.Workflow.Stages[len(in.Workflow.Stages)-1], schema.L0, "run completed", "")
	return Result{
		RunID: in.RunID, Status: schema.RunCompleted, FinalResult: stageInput,
		Events: events, Duration: time.Since(start), ApprovalID: approvalID, ReviewerVerdict: reviewerVerdict,
	}
}

// runStage drives agent through up to MaxTurns LLM exchanges, dispatching
// any tool calls through the router with the current reviewer verdict
// threaded in. Returns the final text, or a *terminal error if the run
// must stop (paused for approval or failed outright).
func (o *Orchestrator) runStage(ctx context.Context, in Input, agent schema.AgentDefinition, stage schema.Stage, stageInput string, reviewerVerdict *schema.Verdict, approvalID *string, events *[]audit.Event) (string, error) {
	history := []Message{{Role: "user", Content: stageInput}}
	var finalText string

	for turn := 0; turn < agent.MaxTurns; turn++ {
		out, err := o.llm.Complete(ctx, agent.SystemPrompt, history)
		if err != nil {
			o.audit(ctx, events, in, agent.Name, stage, schema.L4, "llm call failed", err.Error())
			return "", &terminal{Result{RunID: in.RunID, Status: schema.RunFailed}}
		}
		finalText = out.Text
		history = append(history, Message{Role: "assistant", Content: out.Text})

		if len(out.ToolCalls) == 0 {
			break
		}

		for _, call := range out.ToolCalls {
			resp := o.router.Call(ctx, router.Request{
				ToolName: call.Name, Args: call.Args, Stage: stage,
				Context: gate.CallContext{AgentName: agent.Name, RunID: in.RunID, ReviewerVerdict: reviewerVerdict},
				Domain:  in.Domain, Workflow: in.Workflow.Name,
			})

			if resp.RequiresApproval && !resp.Allowed {
				paused, term := o.handleApprovalRequired(ctx, in, agent, stage, call, resp, reviewerVerdict, approvalID, events)
				if term != nil {
					return "", term
				}
				if paused {
					return "", &terminal{Result{RunID: in.RunID, Status: schema.RunRequiresApproval, ApprovalID: *approvalID, ReviewerVerdict: reviewerVerdict}}
				}
				// Auto-approved: fall through and re-issue the call.
				resp = o.router.Call(ctx, router.Request{
					ToolName: call.Name, Args: call.Args, Stage: stage,
					Context: gate.CallContext{AgentName: agent.Name, RunID: in.RunID, ReviewerVerdict: reviewerVerdict},
					Domain:  in.Domain, Workflow: in.Workflow.Name,
				})
			}

			history = append(history, Message{Role: "tool", Content: fmt.Sprintf("%v", resp.Result)})
		}
	}

	return finalText, nil
}

// handleApprovalRequired implements spec.md §4.I step (e). Returns
// paused=true if the run must stop with status requires_approval, or a
// non-nil *terminal on unrecoverable failure.
func (o *Orchestrator) handleApprovalRequired(ctx context.Context, in Input, agent schema.AgentDefinition, stage schema.Stage, call ToolCall, resp router.Response, reviewerVerdict *schema.Verdict, approvalID *string, events *[]audit.Event) (paused bool, term error) {
	if o.approvals == nil || !resp.IsCommitTool || stage != schema.StageCommit {
		o.audit(ctx, events, in, agent.Name, stage, resp.TrustLevel, "paused: requires human approval", resp.Reason)
		return true, nil
	}

	spec, _ := schema.CommitToolSpecFor(call.Name)
	req, err := o.approvals.CreateRequest(ctx, approval.Request{
		Domain: in.Domain, RunID: in.RunID, Workflow: in.Workflow.Name, Requester: agent.Name,
		TrustLevel: resp.TrustLevel, ActionType: spec.ActionType, ActionPayload: call.Args,
		ReviewerVerdict: reviewerVerdict,
	})
	if err != nil {
		o.audit(ctx, events, in, agent.Name, stage, resp.TrustLevel, "approval request creation failed", err.Error())
		return false, &terminal{Result{RunID: in.RunID, Status: schema.RunFailed}}
	}
	*approvalID = req.ID.String()
	o.audit(ctx, events, in, agent.Name, stage, resp.TrustLevel, "approval request created", "")

	if req.AutoApproveEligible && reviewerVerdict != nil && *reviewerVerdict == schema.VerdictPass {
		if _, err := o.approvals.AutoApprove(ctx, req.ID); err == nil {
			o.audit(ctx, events, in, agent.Name, stage, resp.TrustLevel, "auto-approved", "")
			return false, nil
		}
	}

	if o.notifier != nil {
		o.notifier.NotifyRequestCreated(ctx, req)
	}
	o.audit(ctx, events, in, agent.Name, stage, resp.TrustLevel, "paused: requires human approval", "")
	return true, nil
}

func (o *Orchestrator) audit(ctx context.Context, events *[]audit.Event, in Input, agentName string, stage schema.Stage, trustLevel schema.TrustLevel, intent, errText string) {
	if o.auditLog == nil {
		return
	}
	event := audit.Event{
		Domain: in.Domain, Workflow: in.Workflow.Name, Agent: agentName, RunID: in.RunID,
		TrustLevel: trustLevel, Stage: stage, Intent: intent, Summary: intent,
	}
	if agentName == "" {
		event.Agent = "orchestrator"
	}
	if errText != "" {
		event.Errors = []string{errText}
	}
	if _, err := o.auditLog.Append(ctx, event); err != nil && o.logger != nil {
		o.logger.Warn(ctx, "orchestrate: audit append failed", "run_id", in.RunID, "error", err)
	}
	*events = append(*events, event)
}
