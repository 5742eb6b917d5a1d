package gate

import (
	"context"

	"github.com/open-policy-agent/opa/rego"

	"github.com/kauf3r/agent-trust-layer/schema"
	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// RegoOverride is an optional, purely-restrictive secondary check: it can
// turn an Allowed=true decision into a denial but can never loosen a denial
// into an allow. A missing policy or a failed evaluation is treated as "no
// opinion" and never changes the decision, so the gate stays fail-closed
// with or without OPA attached; a policy that fails to compile makes
// NewRegoOverride return an error.
type RegoOverride struct {
	query   rego.PreparedEvalQuery
	enabled bool
	logger  telemetry.Logger
}

// NewRegoOverride compiles a Rego module exposing a boolean
// data.trustgate.deny rule. An empty module disables the override.
func NewRegoOverride(ctx context.Context, module string, logger telemetry.Logger) (*RegoOverride, error) {
	if module == "" {
		return &RegoOverride{logger: logger}, nil
	}
	q, err := rego.New(
		rego.Query("data.trustgate.deny"),
		rego.Module("trustgate.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &RegoOverride{query: q, enabled: true, logger: logger}, nil
}

// Apply evaluates the policy against decision and tool/stage context. Any
// error, empty result, or missing query object leaves decision unchanged;
// only an explicit `true` can downgrade Allowed to false.
func (r *RegoOverride) Apply(ctx context.Context, decision Decision, tool schema.ToolDefinition, stage schema.Stage) Decision {
	if r == nil || !r.enabled || !decision.Allowed {
		return decision
	}

	input := map[string]any{
		"tool":        tool.Name,
		"capability":  string(tool.Capability),
		"risk":        string(tool.Risk),
		"stage":       string(stage),
		"trust_level": decision.TrustLevel.String(),
	}

	results, err := r.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		if r.logger != nil {
			r.logger.Warn(ctx, "gate: opa evaluation failed, ignoring override", "error", err)
		}
		return decision
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return decision
	}
	deny, _ := results[0].Expressions[0].Value.(bool)
	if !deny {
		return decision
	}

	decision.Allowed = false
	decision.Reason = "fail-closed: denied by rego policy"
	return decision
}
