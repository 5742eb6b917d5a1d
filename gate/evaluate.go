package gate

import (
	"fmt"

	"github.com/kauf3r/agent-trust-layer/schema"
)

// CallContext carries the caller identity the gate validates before
// evaluating any tool-specific policy, plus the reviewer verdict captured so
// far in the run (nil before the review stage runs).
type CallContext struct {
	AgentName       string
	RunID           string
	ReviewerVerdict *schema.Verdict
}

// Decision is the trust gate's synchronous answer for one tool call.
type Decision struct {
	Allowed             bool
	TrustLevel          schema.TrustLevel
	Sandboxed           bool
	RequiresApproval    bool
	AutoApproveEligible bool
	IsCommitTool        bool
	Reason              string
}

func deny(level schema.TrustLevel, reason string) Decision {
	return Decision{Allowed: false, TrustLevel: level, Reason: "fail-closed: " + reason}
}

// Evaluate runs the nine-step algorithm from spec.md §4.E. It never panics
// and never returns an error value — every failure mode is represented as
// Allowed=false with an explanatory Reason, per spec.md §7's "policy
// outcomes are values" rule.
func Evaluate(cfg Config, tool schema.ToolDefinition, stage schema.Stage, ctx CallContext) Decision {
	// Step 1: validate tool, stage, and context.
	if tool.Name == "" || tool.Capability == "" || tool.Risk == "" {
		return deny(schema.L4, "tool definition")
	}
	if !stage.Valid() {
		return deny(schema.L4, "stage")
	}
	if ctx.AgentName == "" || ctx.RunID == "" {
		return deny(schema.L4, "context")
	}
	policy, ok := cfg.policyFor(stage)
	if !ok {
		return deny(schema.L4, "stage policy")
	}

	// Step 2: compute trust level and commit-tool flag.
	var override *schema.TrustLevel
	if lvl, ok := cfg.Overrides[tool.Name]; ok {
		override = &lvl
	}
	level := ClassifyTrustLevel(tool, override)
	isCommitTool := schema.IsCommitTool(tool.Name)

	// Step 3: trust level vs. stage maximum.
	if level > policy.MaxTrustLevel {
		return deny(level, fmt.Sprintf("trust level %s exceeds stage %s ceiling %s", level, stage, policy.MaxTrustLevel))
	}

	// Step 4: capability vs. stage-allowed set.
	if !policy.AllowedCapabilities[tool.Capability] {
		return deny(level, fmt.Sprintf("capability %s not permitted in stage %s", tool.Capability, stage))
	}

	// Step 5: sandboxed.
	sandboxed := policy.Sandboxed ||
		(cfg.SandboxWrites && (tool.Capability == schema.CapabilityWrite || tool.Capability == schema.CapabilitySideEffects)) ||
		tool.ExecutionMode == schema.ExecutionSandboxOnly

	// Step 6: requiresApproval.
	requiresApproval := level > cfg.ApprovalThreshold || policy.RequiresReviewerApproval || isCommitTool

	// Step 7: L4 always denies outright pending approval.
	if level == schema.L4 {
		return Decision{
			Allowed: false, TrustLevel: level, Sandboxed: true,
			RequiresApproval: true, IsCommitTool: isCommitTool,
			Reason: "fail-closed: human approval required",
		}
	}

	// Step 8: commit tool in the commit stage always needs the approval path.
	if isCommitTool && stage == schema.StageCommit {
		return Decision{
			Allowed: false, TrustLevel: level, Sandboxed: sandboxed,
			RequiresApproval: true, IsCommitTool: isCommitTool,
			Reason: "fail-closed: commit tool requires approval consultation",
		}
	}

	// Step 9: allow.
	return Decision{
		Allowed: true, TrustLevel: level, Sandboxed: sandboxed,
		RequiresApproval: requiresApproval, IsCommitTool: isCommitTool,
	}
}
