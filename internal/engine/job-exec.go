package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
	"github.com/teano-uTTu-9788/AiCan/pkg/log"
)

const (
	outcomeCompleted = "completed"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"

	notifyTimeout = 30 * time.Second
)

func (e *Engine) runJob(wf *api.Workflow, id api.JobID) {
	defer func() {
		if r := recover(); r != nil {
			_, _ = e.finishJob(id, api.JobFailed,
				fmt.Sprintf("%s: %v", ErrActionPanic, r), nil)
		}
	}()

	for i, step := range wf.Steps {
		if err := e.tracker.Advance(id, i); err != nil {
			e.abandon(id, err)
			return
		}
		job, err := e.tracker.Get(id)
		if err != nil {
			e.abandon(id, err)
			return
		}

		ok, err := e.conditions.Evaluate(step.Condition, job.Context)
		if err != nil {
			_, _ = e.finishJob(id, api.JobFailed, err.Error(), nil)
			return
		}
		if !ok {
			e.stepSkipped(job, i, step)
			continue
		}

		res, err := e.execute(step.Action, job.Context)
		if err != nil {
			e.metrics.stepVisited(step.Action, outcomeFailed)
			slog.Warn("Step failed",
				log.JobID(id),
				log.Action(step.Action),
				log.Error(err))
			_, _ = e.finishJob(id, api.JobFailed, err.Error(), nil)
			return
		}

		rec := &api.StepRecord{
			Step:      step.Type,
			Action:    step.Action,
			Result:    res.Clone(),
			Timestamp: time.Now(),
		}
		if err := e.tracker.Record(id, rec); err != nil {
			e.abandon(id, err)
			return
		}
		e.stepCompleted(job, i, step)
	}

	if err := e.tracker.Advance(id, len(wf.Steps)); err != nil {
		e.abandon(id, err)
		return
	}
	_, _ = e.finishJob(id, api.JobCompleted, "", nil)
}

// execute invokes an action with a private copy of the context. Panics are
// converted into errors so they take the same path as any other failure
func (e *Engine) execute(
	name api.ActionName, args api.Args,
) (res api.Args, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &ExternalServiceError{
				Action: name,
				Err:    fmt.Errorf("%w: %v", ErrActionPanic, r),
			}
		}
	}()

	action, ok := e.actions.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	res, err = action.Execute(e.ctx, args.Clone())
	if err != nil {
		return nil, &ExternalServiceError{Action: name, Err: err}
	}
	return res, nil
}

// finishJob is the only path by which a job becomes terminal. It records the
// outcome, then reports it to the event hub, metrics and notifier
func (e *Engine) finishJob(
	id api.JobID, status api.JobStatus, msg string, update api.Args,
) (*api.Job, error) {
	job, err := e.tracker.Finish(id, status, msg, update)
	if err != nil {
		if errors.Is(err, ErrJobTerminal) {
			slog.Info("Job already finished",
				log.JobID(id),
				log.Status(status))
		} else {
			slog.Error("Failed to finish job",
				log.JobID(id),
				log.Error(err))
		}
		return nil, err
	}

	ev := &api.JobEvent{
		Type:       api.EventWorkflowCompleted,
		JobID:      job.ID,
		WorkflowID: job.WorkflowID,
		Status:     job.Status,
		Step:       job.CurrentStep,
		Duration:   job.Duration().Milliseconds(),
		Error:      job.Error,
		Job:        job,
	}
	if status == api.JobFailed {
		ev.Type = api.EventWorkflowError
		slog.Error("Job failed",
			log.JobID(job.ID),
			log.WorkflowID(job.WorkflowID),
			log.ErrorString(job.Error))
	} else {
		slog.Info("Job completed",
			log.JobID(job.ID),
			log.WorkflowID(job.WorkflowID),
			slog.Int64("duration_ms", ev.Duration))
	}

	e.metrics.jobFinished(job)
	e.publish(ev)
	e.notify(ev)
	return job, nil
}

// abandon stops a job loop whose job was finished out from under it, which
// happens when an external system reports the outcome first
func (e *Engine) abandon(id api.JobID, err error) {
	if errors.Is(err, ErrJobTerminal) {
		slog.Info("Job finished externally, stopping execution",
			log.JobID(id))
		return
	}
	slog.Error("Job execution aborted",
		log.JobID(id),
		log.Error(err))
}

func (e *Engine) stepSkipped(job *api.Job, idx int, step *api.Step) {
	slog.Debug("Step skipped",
		log.JobID(job.ID),
		log.Action(step.Action),
		slog.String("condition", step.Condition))
	e.metrics.stepVisited(step.Action, outcomeSkipped)
	e.publish(&api.JobEvent{
		Type:       api.EventStepSkipped,
		JobID:      job.ID,
		WorkflowID: job.WorkflowID,
		Status:     api.JobRunning,
		Action:     step.Action,
		Step:       idx,
	})
}

func (e *Engine) stepCompleted(job *api.Job, idx int, step *api.Step) {
	slog.Debug("Step completed",
		log.JobID(job.ID),
		log.Action(step.Action))
	e.metrics.stepVisited(step.Action, outcomeCompleted)
	e.publish(&api.JobEvent{
		Type:       api.EventStepCompleted,
		JobID:      job.ID,
		WorkflowID: job.WorkflowID,
		Status:     api.JobRunning,
		Action:     step.Action,
		Step:       idx,
	})
}

func (e *Engine) publish(ev *api.JobEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e.hub.Publish(ev)
}

func (e *Engine) notify(ev *api.JobEvent) {
	if e.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Notifier panicked",
				log.JobID(ev.JobID),
				slog.Any("panic", r))
		}
	}()
	if err := e.notifier.Notify(ctx, ev); err != nil {
		slog.Warn("Notification failed",
			log.JobID(ev.JobID),
			log.Event(ev.Type),
			log.Error(err))
	}
}
