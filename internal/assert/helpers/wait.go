package helpers

import (
	"testing"
	"time"

	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// DefaultTimeout bounds every wait helper
const DefaultTimeout = 5 * time.Second

const pollInterval = 5 * time.Millisecond

// EventWaiter waits for job events matching a filter. Create before
// triggering the job
type EventWaiter struct {
	consumer engine.EventConsumer
	filter   func(*api.JobEvent) bool
}

// WaitForJob polls until the job reaches a terminal status and returns its
// final snapshot
func WaitForJob(
	t *testing.T, eng *engine.Engine, id api.JobID,
) *api.Job {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		job, err := eng.GetJob(id)
		if err != nil {
			t.Fatalf("job %s: %v", id, err)
		}
		if job.IsTerminal() {
			return job
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("timeout waiting for job %s", id)
	return nil
}

// WaitForJob is a convenience wrapper over the package function
func (env *TestEngineEnv) WaitForJob(t *testing.T, id api.JobID) *api.Job {
	t.Helper()
	return WaitForJob(t, env.Engine, id)
}

// SubscribeToJob creates a waiter for events of a single job with one of
// the given types
func (env *TestEngineEnv) SubscribeToJob(
	id api.JobID, types ...api.EventType,
) *EventWaiter {
	return &EventWaiter{
		consumer: env.Hub.NewConsumer(),
		filter: func(ev *api.JobEvent) bool {
			if id != "" && ev.JobID != id {
				return false
			}
			for _, typ := range types {
				if ev.Type == typ {
					return true
				}
			}
			return len(types) == 0
		},
	}
}

// SubscribeToTerminal creates a waiter for the completion or failure of
// any job
func (env *TestEngineEnv) SubscribeToTerminal() *EventWaiter {
	return env.SubscribeToJob("",
		api.EventWorkflowCompleted, api.EventWorkflowError,
	)
}

// Wait blocks until count matching events arrive and returns them
func (w *EventWaiter) Wait(t *testing.T, count int) []*api.JobEvent {
	t.Helper()
	defer w.consumer.Close()

	deadline := time.NewTimer(DefaultTimeout)
	defer deadline.Stop()

	var res []*api.JobEvent
	for len(res) < count {
		select {
		case ev, ok := <-w.consumer.Receive():
			if !ok {
				t.Fatalf("event consumer closed after %d events", len(res))
			}
			if ev != nil && w.filter(ev) {
				res = append(res, ev)
			}
		case <-deadline.C:
			t.Fatalf("timeout waiting for %d events, got %d", count, len(res))
		}
	}
	return res
}
