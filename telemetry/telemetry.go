// Package telemetry defines the logging, metrics, and tracing seams used
// throughout the gateway. Components depend on these interfaces, never on
// a concrete backend, so diagnostics route through an injected logger
// instead of ad hoc console writes (spec.md §9's open question resolved in
// favor of a logger interface).
package telemetry

import (
	"context"
	"time"
)

type (
	// Logger emits structured log messages. Implementations must be safe
	// for concurrent use from any goroutine, including background writers.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters and timers for runtime operations.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, d time.Duration, tags ...string)
	}

	// Tracer starts spans around gate decisions, sandbox executions, and
	// commit attempts.
	Tracer interface {
		StartSpan(ctx context.Context, name string) (context.Context, Span)
	}

	// Span is a single trace span; implementations of End record status.
	Span interface {
		End()
		SetError(err error)
	}
)
