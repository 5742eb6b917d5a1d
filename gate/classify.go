// Package gate implements the trust classifier / policy engine from
// spec.md §4.E: it derives a tool call's trust level and decides, stage by
// stage, whether the call may proceed, must run sandboxed, or needs
// approval — consulting the approval store only through the narrow
// read-only Approvals capability, per spec.md §9's cycle-breaking guidance.
package gate

import "github.com/kauf3r/agent-trust-layer/schema"

// ClassifyTrustLevel derives a tool's trust level per spec.md §4.E: an
// explicit override wins; otherwise risk=CRITICAL -> L4; risk=HIGH and
// capability=SIDE_EFFECTS -> L3; risk=HIGH or capability=WRITE -> L2;
// capability=PROPOSE -> L1; else L0.
func ClassifyTrustLevel(tool schema.ToolDefinition, override *schema.TrustLevel) schema.TrustLevel {
	if override != nil {
		return *override
	}
	switch {
	case tool.Risk == schema.RiskCritical:
		return schema.L4
	case tool.Risk == schema.RiskHigh && tool.Capability == schema.CapabilitySideEffects:
		return schema.L3
	case tool.Risk == schema.RiskHigh || tool.Capability == schema.CapabilityWrite:
		return schema.L2
	case tool.Capability == schema.CapabilityPropose:
		return schema.L1
	default:
		return schema.L0
	}
}
