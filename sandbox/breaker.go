package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// Breaker wraps an Isolation with a circuit breaker over Docker
// availability: repeated DOCKER_NOT_AVAILABLE/DOCKER_NOT_RUNNING denials
// trip it open, after which the breaker itself answers calls with a
// DOCKER_NOT_AVAILABLE denial without reaching the inner isolation; the
// half-open state re-checks once the configured interval elapses.
type Breaker struct {
	inner Isolation
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps inner in a circuit breaker that opens after 5
// consecutive Docker-unavailability denials and probes again after 15s.
func NewBreaker(inner Isolation, logger telemetry.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        "sandbox-docker",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn(context.Background(), "sandbox: circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	}
	return &Breaker{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs inner.Execute through the breaker. A Result that denies for a
// Docker-availability reason counts as a breaker failure; any other outcome,
// including a policy denial unrelated to Docker, counts as success so it
// never trips the breaker.
func (b *Breaker) Execute(ctx context.Context, in Input) Result {
	out, err := b.cb.Execute(func() (any, error) {
		res := b.inner.Execute(ctx, in)
		if res.DeniedByPolicy && isDockerAvailabilityReason(res.FailureReason) {
			return res, errors.New(string(res.FailureReason))
		}
		return res, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Result{SandboxID: in.SandboxID, FailureReason: ReasonDockerNotAvailable, DeniedByPolicy: true}
		}
		if res, ok := out.(Result); ok {
			return res
		}
		return Result{SandboxID: in.SandboxID, FailureReason: ReasonUnknownError, DeniedByPolicy: true}
	}
	return out.(Result)
}

func isDockerAvailabilityReason(r FailureReason) bool {
	return r == ReasonDockerNotAvailable || r == ReasonDockerNotRunning
}

var _ Isolation = (*Breaker)(nil)
