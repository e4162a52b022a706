package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/teano-uTTu-9788/AiCan/internal/config"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
	"github.com/teano-uTTu-9788/AiCan/pkg/log"
)

type (
	// Engine drives jobs through their workflow's steps. Each job runs in
	// its own goroutine; the trigger call never waits for it
	Engine struct {
		tracker    *Tracker
		actions    *ActionRegistry
		conditions *Conditions
		notifier   Notifier
		hub        *EventHub
		metrics    *metrics
		config     *config.Config
		ctx        context.Context
		cancel     context.CancelFunc
		wg         sync.WaitGroup
		mu         sync.Mutex
		stopped    bool
	}

	// Dependencies are the collaborators of an Engine. Nil fields are
	// replaced with empty defaults, and a nil Meter uses the global
	// OpenTelemetry provider
	Dependencies struct {
		Tracker    *Tracker
		Actions    *ActionRegistry
		Conditions *Conditions
		Notifier   Notifier
		Hub        *EventHub
		Meter      metric.MeterProvider
	}
)

// New creates a new orchestrator instance with the specified configuration
// and collaborators
func New(cfg *config.Config, deps Dependencies) *Engine {
	if deps.Tracker == nil {
		deps.Tracker = NewTracker()
	}
	if deps.Actions == nil {
		deps.Actions = NewActionRegistry()
	}
	if deps.Conditions == nil {
		deps.Conditions = NewConditions()
	}
	if deps.Hub == nil {
		deps.Hub = NewEventHub()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		tracker:    deps.Tracker,
		actions:    deps.Actions,
		conditions: deps.Conditions,
		notifier:   deps.Notifier,
		hub:        deps.Hub,
		metrics:    newMetrics(deps.Meter),
		config:     cfg,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RegisterWorkflow validates a workflow definition and adds it to the
// tracker. Every step's action must already be registered and every
// condition must compile
func (e *Engine) RegisterWorkflow(wf *api.Workflow) error {
	if err := wf.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	for i, step := range wf.Steps {
		if _, ok := e.actions.Get(step.Action); !ok {
			return fmt.Errorf("%w: %s (workflow %s, step %d)",
				ErrUnknownAction, step.Action, wf.ID, i)
		}
		if err := e.conditions.Compile(step.Condition); err != nil {
			return fmt.Errorf("%w (workflow %s, step %d)", err, wf.ID, i)
		}
	}

	e.tracker.Register(wf)
	slog.Info("Workflow registered",
		log.WorkflowID(wf.ID),
		slog.String("name", wf.Name),
		slog.Int("steps", len(wf.Steps)))
	return nil
}

// TriggerWorkflow creates a job for the named workflow and starts running
// it in the background. The returned job is the initial snapshot
func (e *Engine) TriggerWorkflow(
	ctx context.Context, idOrName string, initial api.Args,
) (*api.Job, error) {
	wf, err := e.tracker.Workflow(idOrName)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil, ErrEngineStopped
	}

	job, err := e.tracker.Create(wf.ID, initial)
	if err != nil {
		return nil, err
	}

	slog.Info("Job started",
		log.JobID(job.ID),
		log.WorkflowID(wf.ID))
	e.metrics.jobStarted(wf.ID)
	e.publish(&api.JobEvent{
		Type:       api.EventJobStarted,
		JobID:      job.ID,
		WorkflowID: wf.ID,
		Status:     job.Status,
	})

	e.wg.Go(func() {
		e.runJob(wf, job.ID)
	})
	return job, nil
}

// GetJob returns a snapshot of the job
func (e *Engine) GetJob(id api.JobID) (*api.Job, error) {
	return e.tracker.Get(id)
}

// ListJobs returns snapshots of every job in creation order
func (e *Engine) ListJobs() []*api.Job {
	return e.tracker.Jobs()
}

// ListWorkflows returns every registered workflow definition
func (e *Engine) ListWorkflows() []*api.Workflow {
	return e.tracker.Workflows()
}

// GetWorkflow looks up a workflow definition by ID or name
func (e *Engine) GetWorkflow(idOrName string) (*api.Workflow, error) {
	return e.tracker.Workflow(idOrName)
}

// FindJobByWorkflow returns the first job started from the workflow
func (e *Engine) FindJobByWorkflow(id api.WorkflowID) (*api.Job, error) {
	return e.tracker.FindByWorkflowID(id)
}

// CompleteExternal marks a running job completed on behalf of an external
// system, merging data into its context
func (e *Engine) CompleteExternal(
	id api.JobID, data api.Args,
) (*api.Job, error) {
	return e.finishJob(id, api.JobCompleted, "", data)
}

// FailExternal marks a running job failed on behalf of an external system
func (e *Engine) FailExternal(
	id api.JobID, msg string, data api.Args,
) (*api.Job, error) {
	if msg == "" {
		msg = "failed by external system"
	}
	return e.finishJob(id, api.JobFailed, msg, data)
}

// Status summarizes the workflows and jobs known to the engine
func (e *Engine) Status() *api.EngineStatus {
	counts := e.tracker.Counts()
	return &api.EngineStatus{
		Workflows: len(e.tracker.Workflows()),
		Running:   counts[api.JobRunning],
		Completed: counts[api.JobCompleted],
		Failed:    counts[api.JobFailed],
	}
}

// Hub returns the hub that job events are published to
func (e *Engine) Hub() *EventHub {
	return e.hub
}

// Actions returns the engine's action registry
func (e *Engine) Actions() *ActionRegistry {
	return e.actions
}

// Stop refuses new triggers and waits up to the configured shutdown timeout
// for running jobs. Jobs still running after that are abandoned
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		e.hub.Close()
		slog.Info("Engine stopped")
		return nil
	case <-time.After(e.config.ShutdownTimeout):
		e.cancel()
		e.hub.Close()
		return ErrShutdownTimeout
	}
}
