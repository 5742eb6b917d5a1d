package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// DeliveryMode selects how AsyncStore.Append waits for persistence.
type DeliveryMode int

const (
	// FireAndForget hands the event to a background writer and returns
	// immediately with a success indicator; persistence failures are
	// logged out-of-band and never propagated. This is the default.
	FireAndForget DeliveryMode = iota
	// Synchronous awaits persistence and surfaces any error.
	Synchronous
)

// AsyncStore wraps a durable Store with the fire-and-forget / synchronous
// delivery split spec.md §4.B requires. A bounded queue plus a single
// background writer goroutine gives the same "hand off and keep going"
// posture as goa-ai's hooks.Bus fan-out, scoped down to one audit sink.
type AsyncStore struct {
	inner  Store
	logger telemetry.Logger
	mode   DeliveryMode

	queue chan Event
	wg    sync.WaitGroup
	done  chan struct{}
}

// NewAsyncStore wraps inner with the given delivery mode. queueSize bounds
// how many fire-and-forget events may be pending before Append starts
// blocking (backpressure instead of unbounded memory growth); zero selects
// a default of 1024.
func NewAsyncStore(inner Store, logger telemetry.Logger, mode DeliveryMode, queueSize int) *AsyncStore {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	s := &AsyncStore{
		inner:  inner,
		logger: logger,
		mode:   mode,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.drain()
	return s
}

func (s *AsyncStore) drain() {
	defer s.wg.Done()
	for {
		select {
		case e, ok := <-s.queue:
			if !ok {
				return
			}
			if _, err := s.inner.Append(context.Background(), e); err != nil {
				s.logger.Error(context.Background(), "audit: background persistence failed",
					"run_id", e.RunID, "error", err.Error())
			}
		case <-s.done:
			for {
				select {
				case e := <-s.queue:
					if _, err := s.inner.Append(context.Background(), e); err != nil {
						s.logger.Error(context.Background(), "audit: background persistence failed",
							"run_id", e.RunID, "error", err.Error())
					}
				default:
					return
				}
			}
		}
	}
}

// Append validates event and either persists synchronously or enqueues it
// for the background writer, per the configured DeliveryMode.
func (s *AsyncStore) Append(ctx context.Context, event Event) (AppendResult, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	res := AppendResult{ID: event.ID}
	if err := event.Validate(); err != nil {
		return res, err
	}

	if s.mode == Synchronous {
		if _, err := s.inner.Append(ctx, event); err != nil {
			return res, err
		}
		res.Ok = true
		return res, nil
	}

	select {
	case s.queue <- event:
	default:
		// Queue full: persist inline rather than drop the event outright.
		if _, err := s.inner.Append(context.Background(), event); err != nil {
			s.logger.Error(ctx, "audit: overflow persistence failed", "run_id", event.RunID, "error", err.Error())
		}
	}
	res.Ok = true
	return res, nil
}

// Query delegates to the wrapped store.
func (s *AsyncStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	return s.inner.Query(ctx, filter)
}

// Stats delegates to the wrapped store.
func (s *AsyncStore) Stats(ctx context.Context, runID string) (Stats, error) {
	return s.inner.Stats(ctx, runID)
}

// Close stops the background writer, draining any events already queued.
func (s *AsyncStore) Close() {
	close(s.done)
	s.wg.Wait()
}

var _ Store = (*AsyncStore)(nil)
