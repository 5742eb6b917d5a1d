package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"

	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// DockerIsolation is a disclosed partial implementation of spec.md §4.D's
// isolation boundary. Handlers are native in-process Go code
// (schema.Handler), not external executables, so there is no process this
// package can place inside a container's namespaces, cgroups, or seccomp
// profile — the read-only-rootfs/tmpfs/no-new-privileges/dropped-capability/
// non-root/resource-ceiling envelope spec.md §4.D describes applies to a
// containerized process and cannot be retrofitted onto an in-process
// closure without a subprocess or RPC boundary this package does not
// implement. What DockerIsolation actually provides:
//   - a Docker-availability and image-pull probe that fails closed
//     (DeniedByPolicy=true) before Input.Run is ever invoked, so an
//     environment without a working container runtime never silently
//     falls back to direct execution;
//   - a wall-clock timeout on the handler's goroutine, independent of the
//     probe container's own lifetime.
//
// The handler itself still runs in the host process. Real process-level
// isolation (resource ceilings, capability drops, network denial) is not
// enforced on it; see DESIGN.md's sandbox entry.
type DockerIsolation struct {
	Image  string
	Logger telemetry.Logger
}

// NewDockerIsolation constructs a DockerIsolation using a minimal sidecar
// image for the isolation probe/container.
func NewDockerIsolation(logger telemetry.Logger) *DockerIsolation {
	return &DockerIsolation{Image: "alpine:3.20", Logger: logger}
}

// Execute runs the Docker-availability probe described on DockerIsolation,
// then runs the handler in the host process bounded by the configured
// timeout. It does not execute the handler inside the probe container.
func (d *DockerIsolation) Execute(ctx context.Context, in Input) Result {
	if in.SandboxID == "" || in.Run == nil {
		return Result{SandboxID: in.SandboxID, FailureReason: ReasonInvalidInput, DeniedByPolicy: true}
	}
	if blocked := ValidateEnv(in.Limits.Env); blocked != "" {
		return Result{SandboxID: in.SandboxID, FailureReason: ReasonBlockedEnvVarRequested, DeniedByPolicy: true}
	}
	if len(in.Limits.NetworkAllowed) > 0 {
		for _, host := range in.Limits.NetworkAllowed {
			if host == "" {
				return Result{SandboxID: in.SandboxID, FailureReason: ReasonNetworkAllowlistInvalid, DeniedByPolicy: true}
			}
		}
	}

	limits := in.Limits
	if limits.Timeout == 0 {
		limits = NewLimits()
	}

	// probeReq is never used to run the handler; it only proves the
	// runtime can launch a container at all before Input.Run is reached.
	probeReq := testcontainers.ContainerRequest{
		Image:      d.Image,
		Cmd:        []string{"sleep", "infinity"},
		Privileged: false,
	}

	startCtx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	probeContainer, err := testcontainers.GenericContainer(startCtx, testcontainers.GenericContainerRequest{
		ContainerRequest: probeReq,
		Started:          true,
	})
	if err != nil {
		reason := classifyStartupError(err)
		if d.Logger != nil {
			d.Logger.Warn(ctx, "sandbox: docker isolation unavailable", "sandbox_id", in.SandboxID, "reason", reason, "error", err)
		}
		return Result{SandboxID: in.SandboxID, FailureReason: reason, DeniedByPolicy: true}
	}
	defer func() {
		_ = probeContainer.Terminate(context.Background())
	}()

	runCtx, runCancel := context.WithTimeout(ctx, limits.Timeout)
	defer runCancel()

	start := time.Now()
	done := make(chan struct {
		value map[string]any
		err   error
	}, 1)
	go func() {
		v, err := in.Run(runCtx, in.Args)
		done <- struct {
			value map[string]any
			err   error
		}{v, err}
	}()

	select {
	case out := <-done:
		res := Result{
			SandboxID: in.SandboxID,
			Value:     out.value,
			Err:       out.err,
			Duration:  time.Since(start),
			Success:   out.err == nil,
		}
		if out.err != nil {
			res.FailureReason = ReasonUnknownError
		}
		return res
	case <-runCtx.Done():
		return Result{
			SandboxID:     in.SandboxID,
			Duration:      time.Since(start),
			TimedOut:      true,
			ExitCode:      124,
			FailureReason: ReasonExecutionTimeout,
		}
	}
}

func classifyStartupError(err error) FailureReason {
	msg := err.Error()
	switch {
	case contains(msg, "pull"):
		return ReasonImagePullFailed
	case contains(msg, "Cannot connect to the Docker daemon") || contains(msg, "docker daemon"):
		return ReasonDockerNotRunning
	case contains(msg, "executable file not found") || contains(msg, "not available"):
		return ReasonDockerNotAvailable
	default:
		return ReasonContainerStartupFailed
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

var _ Isolation = (*DockerIsolation)(nil)

// probe opens a minimal container to verify the Docker daemon is reachable,
// without running any handler. Neither Breaker nor NewIsolation calls it.
func probe(ctx context.Context, image string) error {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: image,
			Cmd:   []string{"true"},
		},
		Started: false,
	})
	if err != nil {
		return fmt.Errorf("docker probe: %w", err)
	}
	return c.Terminate(ctx)
}
