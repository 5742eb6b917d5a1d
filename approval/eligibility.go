package approval

import (
	"errors"

	"github.com/kauf3r/agent-trust-layer/schema"
)

// ErrAlreadyDecided is returned by CreateDecision when the target request
// already has a decision; the uniqueness constraint on request id surfaces
// as this distinguishable error rather than a generic storage failure.
var ErrAlreadyDecided = errors.New("approval: request already decided")

// ErrNotFound is returned when a request or decision id has no matching row.
var ErrNotFound = errors.New("approval: not found")

// ErrNoDecisionProduced is returned by AutoApprove when any of its gates
// fail. It is not an exception — a gate failing is expected policy
// behavior, not a storage error.
var ErrNoDecisionProduced = errors.New("approval: no decision produced")

// denySet lists action types and workflow names that may never be
// auto-approved regardless of reviewer verdict.
var denySet = map[string]bool{
	"send_invoice":             true,
	"mark_checkpoint_complete": true,
	"billing_reconciliation":   true,
	"compliance_audit_pack":    true,
}

// allowSet lists action types and workflow names eligible for
// auto-approval once a PASS verdict is present.
var allowSet = map[string]bool{
	"post_alert":          true,
	"publish_daily_brief": true,
	"apply_changes":       true,
	"daily_ops_brief":     true,
	"alert_triage":        true,
}

// ComputeEligibility implements the spec.md §4.C auto-approve-eligibility
// rule:
//
//  1. trust level L4 -> false, unconditionally;
//  2. reviewer verdict != PASS -> false;
//  3. action type or workflow in the deny set -> false;
//  4. action type or workflow in the allow set -> true;
//  5. otherwise -> false.
func ComputeEligibility(level schema.TrustLevel, verdict *schema.Verdict, actionType, workflow string) bool {
	if level == schema.L4 {
		return false
	}
	if verdict == nil || *verdict != schema.VerdictPass {
		return false
	}
	if denySet[actionType] || denySet[workflow] {
		return false
	}
	if allowSet[actionType] || allowSet[workflow] {
		return true
	}
	return false
}
