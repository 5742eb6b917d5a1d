package sandbox

import "context"

// Denier is the fail-closed isolation strategy: it never runs a handler. The
// factory selects it when a configuration names a blocked environment
// variable; Docker unavailability is reported as a denial by DockerIsolation
// and Breaker themselves.
type Denier struct {
	Reason FailureReason
}

// Execute always denies, never invoking in.Run.
func (d Denier) Execute(_ context.Context, in Input) Result {
	reason := d.Reason
	if reason == "" {
		reason = ReasonUnknownError
	}
	return Result{
		Success:        false,
		SandboxID:      in.SandboxID,
		FailureReason:  reason,
		DeniedByPolicy: true,
	}
}

var _ Isolation = Denier{}
