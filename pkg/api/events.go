package api

import "time"

type (
	// EventType identifies the kind of job lifecycle event
	EventType string

	// JobEvent is published for every observable change in a job's life
	JobEvent struct {
		Timestamp  time.Time  `json:"timestamp"`
		Job        *Job       `json:"job,omitempty"`
		Type       EventType  `json:"type"`
		JobID      JobID      `json:"jobId"`
		WorkflowID WorkflowID `json:"workflowId"`
		Status     JobStatus  `json:"status"`
		Action     ActionName `json:"action,omitempty"`
		Error      string     `json:"error,omitempty"`
		Step       int        `json:"step"`
		Duration   int64      `json:"durationMs,omitempty"`
	}
)

const (
	EventJobStarted        EventType = "job_started"
	EventStepCompleted     EventType = "step_completed"
	EventStepSkipped       EventType = "step_skipped"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventWorkflowError     EventType = "workflow_error"
)

// IsTerminal reports whether the event ends a job
func (e *JobEvent) IsTerminal() bool {
	return e.Type == EventWorkflowCompleted || e.Type == EventWorkflowError
}
