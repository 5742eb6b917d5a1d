package sandbox

import (
	"context"
	"time"

	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// Passthrough runs the handler directly, in-process, with no isolation at
// all. It exists only for NODE_ENV=test and the explicit, warned-about
// development opt-out; Factory refuses to select it in production.
type Passthrough struct {
	Logger telemetry.Logger
}

// Execute invokes in.Run directly and logs a warning every time, since any
// direct execution bypasses the resource limits spec.md §4.D mandates.
func (p Passthrough) Execute(ctx context.Context, in Input) Result {
	if p.Logger != nil {
		p.Logger.Warn(ctx, "sandbox: passthrough execution, no isolation applied", "sandbox_id", in.SandboxID, "tool", in.ToolName)
	}
	if blocked := ValidateEnv(in.Limits.Env); blocked != "" {
		return Result{Success: false, SandboxID: in.SandboxID, FailureReason: ReasonBlockedEnvVarRequested, DeniedByPolicy: true}
	}

	start := time.Now()
	value, err := in.Run(ctx, in.Args)
	res := Result{
		SandboxID: in.SandboxID,
		Value:     value,
		Err:       err,
		Duration:  time.Since(start),
		Success:   err == nil,
	}
	if err != nil {
		res.FailureReason = ReasonUnknownError
	}
	return res
}

var _ Isolation = Passthrough{}
