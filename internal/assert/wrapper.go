package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teano-uTTu-9788/AiCan/internal/config"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// Wrapper wraps testify assertions with orchestrator-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 10 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus orchestrator-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// JobStatus asserts the status of a job
func (w *Wrapper) JobStatus(job *api.Job, expected api.JobStatus) {
	w.Helper()
	w.Equal(expected, job.Status)
	if expected.IsTerminal() {
		w.NotNil(job.EndTime, "terminal job should have an end time")
	} else {
		w.Nil(job.EndTime, "running job should not have an end time")
	}
}

// JobHistory asserts the actions recorded in a job's step history, in order
func (w *Wrapper) JobHistory(job *api.Job, expected ...api.ActionName) {
	w.Helper()
	actual := make([]api.ActionName, len(job.StepHistory))
	for i, rec := range job.StepHistory {
		actual[i] = rec.Action
	}
	if len(expected) == 0 {
		w.Empty(actual)
		return
	}
	w.Equal(expected, actual)
}

// JobContextEquals asserts that a context key has the expected value
func (w *Wrapper) JobContextEquals(job *api.Job, key api.Name, expected any) {
	w.Helper()
	val, ok := job.Context[key]
	w.True(ok, "job should have context key: %s", key)
	w.Equal(expected, val)
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= 65535)
	w.True(cfg.ShutdownTimeout > 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}
