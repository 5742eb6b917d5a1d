package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// runWorkflowName and runActivityName identify the single workflow/activity
// pair this engine registers. Every run executes the same workflow; the
// orchestrator's own stage sequencing, not Temporal, decides what happens
// inside it.
const (
	runWorkflowName = "TrustGatedRun"
	runActivityName = "TrustGatedRunActivity"
)

// TemporalOptions configures TemporalEngine.
type TemporalOptions struct {
	// Client is a pre-configured Temporal client. Required.
	Client client.Client
	// TaskQueue is the queue the worker polls and StartRun schedules against.
	TaskQueue string
	// Logger receives worker lifecycle messages. If nil, logging is skipped.
	Logger telemetry.Logger
}

// TemporalEngine implements Engine using Temporal as the durable execution
// backend: the orchestrator's Run — which calls an LLM and external tools
// and is therefore not replay-deterministic — runs entirely inside a single
// activity, while a thin workflow function provides the durable handle,
// retry policy, and cross-restart resumability Temporal offers. This mirrors
// how the teacher's Temporal adapter wraps a non-deterministic handler
// behind ExecuteActivity rather than attempting to make agent/LLM calls
// replay-safe.
type TemporalEngine struct {
	client       client.Client
	taskQueue    string
	logger       telemetry.Logger
	worker       worker.Worker
	orchestrator *Orchestrator
}

// NewTemporalEngine constructs a TemporalEngine and registers its workflow
// and activity with a worker on opts.TaskQueue. Call Start to begin polling.
func NewTemporalEngine(opts TemporalOptions, o *Orchestrator) (*TemporalEngine, error) {
	if opts.Client == nil {
		return nil, errors.New("fail-closed: temporal client required")
	}
	if opts.TaskQueue == "" {
		return nil, errors.New("fail-closed: task queue required")
	}
	e := &TemporalEngine{client: opts.Client, taskQueue: opts.TaskQueue, logger: opts.Logger, orchestrator: o}

	w := worker.New(opts.Client, opts.TaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(runWorkflowFunc, workflow.RegisterOptions{Name: runWorkflowName})
	w.RegisterActivityWithOptions(e.runActivity, activity.RegisterOptions{Name: runActivityName})
	e.worker = w
	return e, nil
}

// Start begins polling opts.TaskQueue for work. Blocks until ctx is done or
// an unrecoverable worker error occurs.
func (e *TemporalEngine) Start(ctx context.Context) error {
	if e.logger != nil {
		e.logger.Info(ctx, "temporal engine: starting worker", "task_queue", e.taskQueue)
	}
	stop := make(chan interface{})
	go func() {
		select {
		case <-ctx.Done():
		case <-worker.InterruptCh():
		}
		close(stop)
	}()
	return e.worker.Run(stop)
}

// runActivity is the Temporal activity body: it simply delegates to the
// orchestrator's synchronous Run.
func (e *TemporalEngine) runActivity(ctx context.Context, in Input) (Result, error) {
	return e.orchestrator.Run(ctx, in), nil
}

// runWorkflowFunc is the durable workflow entry point: it executes the run
// activity once and returns its result. The activity runs with a 15-minute
// start-to-close timeout set here and Temporal's default retry policy;
// StartRun sets only the workflow id and task queue. The workflow function
// itself stays deliberately thin.
func runWorkflowFunc(ctx workflow.Context, in Input) (Result, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
	}
	actCtx := workflow.WithActivityOptions(ctx, ao)
	var result Result
	err := workflow.ExecuteActivity(actCtx, runActivityName, in).Get(actCtx, &result)
	return result, err
}

type temporalHandle struct {
	run client.WorkflowRun
}

func (h *temporalHandle) Wait(ctx context.Context) (Result, error) {
	var result Result
	err := h.run.Get(ctx, &result)
	return result, err
}

// StartRun schedules in as a Temporal workflow execution and returns a
// handle bound to the resulting run.
func (e *TemporalEngine) StartRun(ctx context.Context, in Input) (RunHandle, error) {
	if in.RunID == "" {
		return nil, errors.New("fail-closed: run id required")
	}
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("trustgated-%s", in.RunID),
		TaskQueue: e.taskQueue,
	}
	run, err := e.client.ExecuteWorkflow(ctx, opts, runWorkflowName, in)
	if err != nil {
		return nil, err
	}
	return &temporalHandle{run: run}, nil
}

var _ Engine = (*TemporalEngine)(nil)
