package api

import (
	"slices"
	"time"
)

type (
	// JobID is an opaque unique identifier for a job
	JobID string

	// JobStatus represents the lifecycle state of a job
	JobStatus string

	// Job is one running instance of a workflow definition
	Job struct {
		StartTime   time.Time     `json:"startTime"`
		EndTime     *time.Time    `json:"endTime,omitempty"`
		Context     Args          `json:"context"`
		ID          JobID         `json:"id"`
		WorkflowID  WorkflowID    `json:"workflowId"`
		Status      JobStatus     `json:"status"`
		Error       string        `json:"error,omitempty"`
		StepHistory []*StepRecord `json:"stepHistory"`
		CurrentStep int           `json:"currentStep"`
	}

	// StepRecord is the history entry of a step that ran successfully
	StepRecord struct {
		Timestamp time.Time  `json:"timestamp"`
		Result    Args       `json:"result"`
		Step      StepType   `json:"step"`
		Action    ActionName `json:"action"`
	}

	// JobDigest provides summary information about a job
	JobDigest struct {
		StartTime   time.Time  `json:"startTime"`
		EndTime     *time.Time `json:"endTime,omitempty"`
		ID          JobID      `json:"id"`
		WorkflowID  WorkflowID `json:"workflowId"`
		Status      JobStatus  `json:"status"`
		Error       string     `json:"error,omitempty"`
		CurrentStep int        `json:"currentStep"`
	}
)

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status is final
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// IsTerminal reports whether the job has completed or failed
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Duration returns the elapsed time of the job, measured to its end time if
// it has one, or to now if it is still running
func (j *Job) Duration() time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return time.Since(j.StartTime)
}

// Clone returns a copy of the job that shares no mutable state with the
// original. Step records are immutable once appended, so they are shared
func (j *Job) Clone() *Job {
	res := *j
	res.Context = j.Context.Clone()
	res.StepHistory = slices.Clone(j.StepHistory)
	if res.StepHistory == nil {
		res.StepHistory = []*StepRecord{}
	}
	if j.EndTime != nil {
		end := *j.EndTime
		res.EndTime = &end
	}
	return &res
}

// Digest summarizes the job
func (j *Job) Digest() *JobDigest {
	res := &JobDigest{
		StartTime:   j.StartTime,
		ID:          j.ID,
		WorkflowID:  j.WorkflowID,
		Status:      j.Status,
		Error:       j.Error,
		CurrentStep: j.CurrentStep,
	}
	if j.EndTime != nil {
		end := *j.EndTime
		res.EndTime = &end
	}
	return res
}
