package engine

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// Tracker is the registry of workflow definitions and job records. Every
// job it hands out is a copy, so callers never observe one mid-update
type Tracker struct {
	workflows map[api.WorkflowID]*api.Workflow
	names     map[string]api.WorkflowID
	jobs      map[api.JobID]*api.Job
	order     []api.JobID
	mu        sync.RWMutex
}

// NewTracker creates an empty Tracker
func NewTracker() *Tracker {
	return &Tracker{
		workflows: map[api.WorkflowID]*api.Workflow{},
		names:     map[string]api.WorkflowID{},
		jobs:      map[api.JobID]*api.Job{},
	}
}

// Register inserts or overwrites a workflow definition by ID
func (t *Tracker) Register(wf *api.Workflow) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.workflows[wf.ID]; ok && t.names[old.Name] == wf.ID {
		delete(t.names, old.Name)
	}
	t.workflows[wf.ID] = wf
	if wf.Name != "" {
		t.names[wf.Name] = wf.ID
	}
}

// Workflow looks up a definition by ID, falling back to its name
func (t *Tracker) Workflow(idOrName string) (*api.Workflow, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if wf, ok := t.workflows[api.WorkflowID(idOrName)]; ok {
		return wf, nil
	}
	if id, ok := t.names[idOrName]; ok {
		return t.workflows[id], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, idOrName)
}

// Workflows returns every registered definition, ordered by ID
func (t *Tracker) Workflows() []*api.Workflow {
	t.mu.RLock()
	defer t.mu.RUnlock()

	res := make([]*api.Workflow, 0, len(t.workflows))
	for _, wf := range t.workflows {
		res = append(res, wf)
	}
	slices.SortFunc(res, func(a, b *api.Workflow) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return res
}

// Create allocates a new running job for the workflow. No job is created
// when the workflow is unknown
func (t *Tracker) Create(
	workflowID api.WorkflowID, initial api.Args,
) (*api.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.workflows[workflowID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	job := &api.Job{
		ID:          api.JobID(uuid.New().String()),
		WorkflowID:  workflowID,
		Status:      api.JobRunning,
		Context:     initial.Clone(),
		StepHistory: []*api.StepRecord{},
		StartTime:   time.Now(),
	}
	t.jobs[job.ID] = job
	t.order = append(t.order, job.ID)
	return job.Clone(), nil
}

// Get returns a snapshot of the job
func (t *Tracker) Get(id api.JobID) (*api.Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job.Clone(), nil
}

// FindByWorkflowID returns the first job, by creation order, that was
// started from the workflow
func (t *Tracker) FindByWorkflowID(id api.WorkflowID) (*api.Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, jobID := range t.order {
		if job := t.jobs[jobID]; job.WorkflowID == id {
			return job.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: workflow %s", ErrJobNotFound, id)
}

// Jobs returns snapshots of every job in creation order
func (t *Tracker) Jobs() []*api.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	res := make([]*api.Job, len(t.order))
	for i, id := range t.order {
		res[i] = t.jobs[id].Clone()
	}
	return res
}

// Counts tallies jobs by status
func (t *Tracker) Counts() map[api.JobStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	res := map[api.JobStatus]int{
		api.JobRunning:   0,
		api.JobCompleted: 0,
		api.JobFailed:    0,
	}
	for _, job := range t.jobs {
		res[job.Status]++
	}
	return res
}

// Advance moves a running job's step cursor forward. The cursor never moves
// backward
func (t *Tracker) Advance(id api.JobID, step int) error {
	return t.update(id, func(job *api.Job) error {
		if step > job.CurrentStep {
			job.CurrentStep = step
		}
		return nil
	})
}

// Record appends a successful step to the job's history and merges its
// result into the job context
func (t *Tracker) Record(id api.JobID, rec *api.StepRecord) error {
	return t.update(id, func(job *api.Job) error {
		job.StepHistory = append(job.StepHistory, rec)
		job.Context = job.Context.Merge(rec.Result)
		return nil
	})
}

// Finish moves a running job into a terminal status, merging any final
// context update. A job that is already terminal is left untouched
func (t *Tracker) Finish(
	id api.JobID, status api.JobStatus, errMsg string, update api.Args,
) (*api.Job, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrStatusNotFinal, status)
	}

	var res *api.Job
	err := t.update(id, func(job *api.Job) error {
		now := time.Now()
		job.Status = status
		job.Error = errMsg
		job.EndTime = &now
		if len(update) > 0 {
			job.Context = job.Context.Merge(update.Clone())
		}
		res = job.Clone()
		return nil
	})
	return res, err
}

func (t *Tracker) update(id api.JobID, fn func(*api.Job) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.IsTerminal() {
		return fmt.Errorf("%w: %s (%s)", ErrJobTerminal, id, job.Status)
	}
	return fn(job)
}
