package gate

import (
	"context"

	"github.com/kauf3r/agent-trust-layer/approval"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// Approvals is the narrow, read-only capability the trust gate needs from
// the approval store. Depending on this interface rather than the full
// approval.Store breaks the approval-store/trust-gate/tool-router/
// commit-boundary reference cycle spec.md §9 calls out: the gate never
// writes an approval decision, it only reads.
type Approvals interface {
	GetRequestsByRunID(ctx context.Context, runID string) ([]approval.Request, error)
}

// matchesTool reports whether req's action type names tool. Per spec.md
// §9's open question, this is exact string match only — no fuzzy or
// suffix/prefix aliasing — matching commit/boundary.go's own equality
// checks for the same concern. Fuzzy matching would widen the fail-closed
// boundary in exactly the place it matters most: a request for one tool
// could be made to satisfy the approval check for a different one.
func matchesTool(actionType, toolName string) bool {
	return actionType == toolName
}

// EvaluateWithApproval runs Evaluate and, if it denies outright or needs no
// approval, returns that result unchanged. Otherwise it consults approvals
// for the run's requests and maps the matching request's status to a
// decision per spec.md §4.E.
func EvaluateWithApproval(ctx context.Context, cfg Config, tool schema.ToolDefinition, stage schema.Stage, callCtx CallContext, approvals Approvals) Decision {
	base := Evaluate(cfg, tool, stage, callCtx)
	if !base.RequiresApproval {
		return base
	}
	if base.Allowed {
		return base
	}
	if approvals == nil {
		return Decision{
			Allowed: false, TrustLevel: base.TrustLevel, Sandboxed: base.Sandboxed,
			RequiresApproval: true, IsCommitTool: base.IsCommitTool,
			Reason: "fail-closed: approval store not configured",
		}
	}

	requests, err := approvals.GetRequestsByRunID(ctx, callCtx.RunID)
	if err != nil {
		return Decision{
			Allowed: false, TrustLevel: base.TrustLevel, Sandboxed: base.Sandboxed,
			RequiresApproval: true, IsCommitTool: base.IsCommitTool,
			Reason: "fail-closed: approval store error: " + err.Error(),
		}
	}

	var match *approval.Request
	for i := range requests {
		if matchesTool(requests[i].ActionType, tool.Name) {
			r := requests[i]
			match = &r
			break
		}
	}

	if match == nil {
		return Decision{
			Allowed: false, TrustLevel: base.TrustLevel, Sandboxed: base.Sandboxed,
			RequiresApproval: true, IsCommitTool: base.IsCommitTool,
			Reason: "fail-closed: approval request required",
		}
	}

	switch match.Status {
	case schema.StatusApproved:
		if base.IsCommitTool && (match.ReviewerVerdict == nil || *match.ReviewerVerdict != schema.VerdictPass) {
			return Decision{
				Allowed: false, TrustLevel: base.TrustLevel, Sandboxed: base.Sandboxed,
				RequiresApproval: true, IsCommitTool: base.IsCommitTool,
				Reason: "fail-closed: reviewer verdict required",
			}
		}
		return Decision{
			Allowed: true, TrustLevel: base.TrustLevel, Sandboxed: base.Sandboxed,
			RequiresApproval: true, IsCommitTool: base.IsCommitTool,
			AutoApproveEligible: match.AutoApproveEligible,
		}
	case schema.StatusPending:
		eligible := match.AutoApproveEligible && callCtx.ReviewerVerdict != nil && *callCtx.ReviewerVerdict == schema.VerdictPass
		reason := "fail-closed: awaiting human approval"
		return Decision{
			Allowed: false, TrustLevel: base.TrustLevel, Sandboxed: base.Sandboxed,
			RequiresApproval: true, IsCommitTool: base.IsCommitTool,
			AutoApproveEligible: eligible, Reason: reason,
		}
	case schema.StatusRejected, schema.StatusExpired:
		return Decision{
			Allowed: false, TrustLevel: base.TrustLevel, Sandboxed: base.Sandboxed,
			RequiresApproval: true, IsCommitTool: base.IsCommitTool,
			Reason: "fail-closed: request " + string(match.Status),
		}
	default:
		return Decision{
			Allowed: false, TrustLevel: base.TrustLevel, Sandboxed: base.Sandboxed,
			RequiresApproval: true, IsCommitTool: base.IsCommitTool,
			Reason: "fail-closed: unknown approval status",
		}
	}
}
