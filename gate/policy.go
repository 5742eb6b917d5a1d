package gate

import "github.com/kauf3r/agent-trust-layer/schema"

// StagePolicy bounds what a stage permits: a trust-level ceiling, an
// allowed-capability set, whether calls must be sandboxed, and whether a
// reviewer approval is required before the call is allowed.
type StagePolicy struct {
	MaxTrustLevel            schema.TrustLevel
	AllowedCapabilities      map[schema.Capability]bool
	Sandboxed                bool
	RequiresReviewerApproval bool
}

func capSet(caps ...schema.Capability) map[schema.Capability]bool {
	out := make(map[schema.Capability]bool, len(caps))
	for _, c := range caps {
		out[c] = true
	}
	return out
}

// DefaultStagePolicies returns the spec.md §4.E stage defaults:
//
//   - plan:    L0..L1, {READ, PROPOSE}
//   - execute: L0..L2, {READ, PROPOSE, WRITE}, sandboxed
//   - review:  L0..L1, {READ, PROPOSE}
//   - commit:  up to L4, all capabilities, sandboxed, reviewer approval required
func DefaultStagePolicies() map[schema.Stage]StagePolicy {
	return map[schema.Stage]StagePolicy{
		schema.StagePlan: {
			MaxTrustLevel:       schema.L1,
			AllowedCapabilities: capSet(schema.CapabilityRead, schema.CapabilityPropose),
		},
		schema.StageExecute: {
			MaxTrustLevel:       schema.L2,
			AllowedCapabilities: capSet(schema.CapabilityRead, schema.CapabilityPropose, schema.CapabilityWrite),
			Sandboxed:           true,
		},
		schema.StageReview: {
			MaxTrustLevel:       schema.L1,
			AllowedCapabilities: capSet(schema.CapabilityRead, schema.CapabilityPropose),
		},
		schema.StageCommit: {
			MaxTrustLevel: schema.L4,
			AllowedCapabilities: capSet(
				schema.CapabilityRead, schema.CapabilityPropose,
				schema.CapabilityWrite, schema.CapabilitySideEffects,
			),
			Sandboxed:                true,
			RequiresReviewerApproval: true,
		},
	}
}

// Config is the trust gate's policy configuration. Overrides and stage
// policies may be loaded from YAML (see config package) without a rebuild.
type Config struct {
	// Overrides maps a tool name to an explicit trust-level override,
	// taking precedence over the risk/capability derivation.
	Overrides map[string]schema.TrustLevel

	// SandboxWrites, when true, forces sandboxing for any WRITE or
	// SIDE_EFFECTS capability regardless of stage policy.
	SandboxWrites bool

	// ApprovalThreshold: trust levels strictly above this always require
	// approval, regardless of stage.
	ApprovalThreshold schema.TrustLevel

	// StagePolicies overrides DefaultStagePolicies per stage; missing
	// entries fall back to the default for that stage.
	StagePolicies map[schema.Stage]StagePolicy
}

// NewConfig returns a Config with spec-default stage policies and an
// approval threshold of L2 (L3 and L4 always require approval).
func NewConfig() Config {
	return Config{
		Overrides:         map[string]schema.TrustLevel{},
		ApprovalThreshold: schema.L2,
		StagePolicies:     DefaultStagePolicies(),
	}
}

func (c Config) policyFor(stage schema.Stage) (StagePolicy, bool) {
	if p, ok := c.StagePolicies[stage]; ok {
		return p, true
	}
	p, ok := DefaultStagePolicies()[stage]
	return p, ok
}
