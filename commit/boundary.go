// Package commit implements the commit boundary from spec.md §4.F: the
// sole legitimate path from an agent to a production mutation. It owns the
// five fixed commit actions and re-verifies eight independent gates before
// any handler runs, as a second barrier alongside the trust gate.
package commit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kauf3r/agent-trust-layer/approval"
	"github.com/kauf3r/agent-trust-layer/audit"
	"github.com/kauf3r/agent-trust-layer/sandbox"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// Approvals is the read-only capability the commit boundary needs from the
// approval store: finding the request backing a run/tool pair.
type Approvals interface {
	GetRequestsByRunID(ctx context.Context, runID string) ([]approval.Request, error)
}

// StagedChanges is the read-only capability the boundary needs from the
// sandbox to check gate 8 (apply_changes requires a non-empty staged set)
// and to retrieve them for materialization.
type StagedChanges interface {
	GetStagedChanges(sandboxID string) []sandbox.StagedChange
}

// ActionHandler materializes one commit action given its staged changes (if
// any) and the original tool arguments. Handlers are idempotent per commit
// id: executeCommit generates a fresh id on every call.
type ActionHandler func(ctx context.Context, commitID string, args map[string]any, staged []sandbox.StagedChange) (changesApplied int, err error)

// Boundary is the commit boundary. It is constructed with the approval
// store and sandbox it re-verifies against, and an audit store so every
// execution — success or failure — produces exactly one event.
type Boundary struct {
	approvals Approvals
	staged    StagedChanges
	auditLog  audit.Store
	handlers  map[schema.CommitToolName]ActionHandler
}

// New constructs a Boundary. RegisterHandler must be called for each of the
// five commit tools before ExecuteCommit can succeed for it.
func New(approvals Approvals, staged StagedChanges, auditLog audit.Store) *Boundary {
	return &Boundary{
		approvals: approvals, staged: staged, auditLog: auditLog,
		handlers: map[schema.CommitToolName]ActionHandler{},
	}
}

// RegisterHandler associates a commit action name with the domain-supplied
// function that materializes it.
func (b *Boundary) RegisterHandler(name schema.CommitToolName, h ActionHandler) {
	b.handlers[name] = h
}

// Eligibility is the result of VerifyCommitEligibility: either Allowed, or
// Reason naming which of the eight gates failed.
type Eligibility struct {
	Allowed bool
	Reason  string
	Request *approval.Request
}

func ineligible(reason string) Eligibility {
	return Eligibility{Allowed: false, Reason: "fail-closed: " + reason}
}

// VerifyCommitEligibility runs the eight gates from spec.md §4.F in order.
func (b *Boundary) VerifyCommitEligibility(ctx context.Context, runID, toolName string, sandboxID string) Eligibility {
	// Gate 1: inputs non-empty and well-typed.
	if runID == "" || toolName == "" {
		return ineligible("inputs")
	}

	// Gate 2: tool is in the commit-tool registry.
	spec, ok := schema.CommitToolSpecFor(toolName)
	if !ok {
		return ineligible("unregistered commit tool")
	}

	// Gate 3: approval store yields a matching request for runID.
	requests, err := b.approvals.GetRequestsByRunID(ctx, runID)
	if err != nil {
		return ineligible("approval store error: " + err.Error())
	}
	var match *approval.Request
	for i := range requests {
		r := requests[i]
		if r.ActionType == spec.ActionType || r.ActionType == toolName {
			match = &r
			break
		}
	}
	if match == nil {
		return ineligible("no matching approval request")
	}

	// Gate 4: request trust level >= tool minimum.
	if match.TrustLevel < spec.MinTrustLevel {
		return ineligible("trust level below minimum")
	}

	// Gate 5: request status APPROVED.
	if match.Status != schema.StatusApproved {
		return ineligible("approval status not APPROVED")
	}

	// Gate 6: reviewer verdict PASS.
	if match.ReviewerVerdict == nil || *match.ReviewerVerdict != schema.VerdictPass {
		return ineligible("reviewer verdict not PASS")
	}

	// Gate 7: not expired.
	if match.Expired(time.Now()) {
		return ineligible("approval request expired")
	}

	// Gate 8: apply_changes requires a non-empty staged-change set.
	if spec.Name == schema.CommitApplyChanges {
		if b.staged == nil || len(b.staged.GetStagedChanges(sandboxID)) == 0 {
			return ineligible("no staged changes for apply_changes")
		}
	}

	return Eligibility{Allowed: true, Request: match}
}

// Eligible is the two-value form of VerifyCommitEligibility the tool router
// consults as its second, independent barrier for commit-stage calls.
func (b *Boundary) Eligible(ctx context.Context, runID, toolName, sandboxID string) (bool, string) {
	elig := b.VerifyCommitEligibility(ctx, runID, toolName, sandboxID)
	return elig.Allowed, elig.Reason
}

// ExecuteCommit verifies eligibility, then dispatches to the registered
// handler for toolName. Every call — success or failure — emits exactly
// one audit event at stage commit.
func (b *Boundary) ExecuteCommit(ctx context.Context, runID, toolName, sandboxID string, args map[string]any, domain, agent string) (changesApplied int, err error) {
	commitID := uuid.New().String()

	elig := b.VerifyCommitEligibility(ctx, runID, toolName, sandboxID)
	trustLevel := schema.L3
	if elig.Request != nil {
		trustLevel = elig.Request.TrustLevel
	}
	if !elig.Allowed {
		b.audit(ctx, domain, runID, agent, toolName, commitID, trustLevel, 0, elig.Reason)
		return 0, &DeniedError{Reason: elig.Reason}
	}

	handler, ok := b.handlers[schema.CommitToolName(toolName)]
	if !ok {
		reason := "fail-closed: no handler registered for " + toolName
		b.audit(ctx, domain, runID, agent, toolName, commitID, trustLevel, 0, reason)
		return 0, &DeniedError{Reason: reason}
	}

	var staged []sandbox.StagedChange
	if b.staged != nil {
		staged = b.staged.GetStagedChanges(sandboxID)
	}

	changesApplied, err = handler(ctx, commitID, args, staged)
	if err != nil {
		b.audit(ctx, domain, runID, agent, toolName, commitID, trustLevel, 0, err.Error())
		return 0, err
	}

	b.audit(ctx, domain, runID, agent, toolName, commitID, trustLevel, changesApplied, "")
	return changesApplied, nil
}

func (b *Boundary) audit(ctx context.Context, domain, runID, agent, toolName, commitID string, trustLevel schema.TrustLevel, changesApplied int, failureReason string) {
	if b.auditLog == nil {
		return
	}
	event := audit.Event{
		Domain: domain, Workflow: "commit", Agent: agent, RunID: runID,
		TrustLevel: trustLevel, Stage: schema.StageCommit,
		Intent:   "commit:" + toolName,
		ToolName: toolName,
		ToolArgs: map[string]any{"commit_id": commitID},
		Summary:  "commit executed",
	}
	if failureReason != "" {
		event.Errors = []string{failureReason}
		event.Summary = "commit denied"
	} else {
		event.ToolResult = map[string]any{"changes_applied": changesApplied}
	}
	_, _ = b.auditLog.Append(ctx, event)
}

// DeniedError is returned by ExecuteCommit when eligibility verification
// fails or no handler is registered for the tool.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return e.Reason }
