package workflows_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	testify "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teano-uTTu-9788/AiCan/internal/actions"
	"github.com/teano-uTTu-9788/AiCan/internal/assert"
	"github.com/teano-uTTu-9788/AiCan/internal/assert/helpers"
	"github.com/teano-uTTu-9788/AiCan/internal/client"
	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/internal/workflows"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// services answers for n8n, Vercel, Notion and Slack so the built-in
// workflows can run against the real actions
type services struct {
	*httptest.Server
	mu       sync.Mutex
	testBody string
	testCode int
	testRuns int
	pages    int
	posts    int
}

func newServices(t *testing.T) *services {
	t.Helper()
	s := &services{
		testBody: `{"passed":true}`,
		testCode: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/run-tests",
		func(w http.ResponseWriter, _ *http.Request) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.testRuns++
			w.WriteHeader(s.testCode)
			_, _ = io.WriteString(w, s.testBody)
		},
	)
	mux.HandleFunc("POST /webhook/{path}",
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"success":true}`)
		},
	)
	mux.HandleFunc("POST /v13/deployments",
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w,
				`{"id":"dpl_1","url":"app.vercel.app","readyState":"QUEUED"}`)
		},
	)
	mux.HandleFunc("GET /v13/deployments/{id}",
		func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{
				"id":         r.PathValue("id"),
				"url":        "app.vercel.app",
				"readyState": client.StateReady,
			})
		},
	)
	mux.HandleFunc("POST /v1/pages", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		s.pages++
		s.mu.Unlock()
		_, _ = io.WriteString(w, `{"id":"page-1"}`)
	})
	mux.HandleFunc("POST /slack", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		s.posts++
		s.mu.Unlock()
		_, _ = io.WriteString(w, "ok")
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *services) failTests(code int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testCode = code
	s.testBody = body
}

func (s *services) counts() (testRuns, pages, posts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testRuns, s.pages, s.posts
}

func newLiveEngine(t *testing.T, s *services) *engine.Engine {
	t.Helper()
	cfg := helpers.NewTestConfig()
	h := client.NewHTTPClient(cfg.HTTPClientTimeout, "test")

	reg := engine.NewActionRegistry()
	require.NoError(t, actions.Register(reg, actions.Services{
		Vercel: client.NewVercel(h, client.VercelConfig{
			BaseURL: s.URL,
			Token:   "tok",
			Project: "app",
		}),
		N8n:    client.NewN8n(h, s.URL, "key"),
		Notion: client.NewNotion(h, s.URL, "secret", "db-1"),
		Slack:  client.NewSlack(h, s.URL+"/slack"),
	}, actions.Config{
		PollInterval: 5 * time.Millisecond,
		MaxWait:      time.Second,
	}))

	eng := engine.New(cfg, engine.Dependencies{Actions: reg})
	t.Cleanup(func() { _ = eng.Stop() })

	wfs, err := workflows.Defaults()
	require.NoError(t, err)
	require.NoError(t, workflows.Register(eng, wfs))
	return eng
}

func trigger(
	t *testing.T, eng *engine.Engine, wf api.WorkflowID, initial api.Args,
) *api.Job {
	t.Helper()
	job, err := eng.TriggerWorkflow(t.Context(), string(wf), initial)
	require.NoError(t, err)
	return helpers.WaitForJob(t, eng, job.ID)
}

func TestErrorRecoveryRetriesFailedAction(t *testing.T) {
	as := assert.New(t)
	s := newServices(t)
	eng := newLiveEngine(t, s)

	job := trigger(t, eng, workflows.ErrorRecovery, api.Args{
		"repository":    "org/repo",
		"branch":        "main",
		"failed_action": string(api.ActionRunTests),
		"error":         "CI timeout waiting for runner",
	})

	as.JobStatus(job, api.JobCompleted)
	as.JobHistory(job,
		api.ActionAnalyzeError,
		api.ActionRetryFailedStep,
		api.ActionSendNotification,
	)
	testify.Equal(t, true, job.Context["retry_attempted"])
	testify.Equal(t, true, job.Context["retry_succeeded"])
	testify.Equal(t, true, job.Context["tests_passed"])

	runs, pages, _ := s.counts()
	testify.Equal(t, 1, runs)
	testify.Zero(t, pages)
}

func TestErrorRecoveryEscalatesFailedRetry(t *testing.T) {
	as := assert.New(t)
	s := newServices(t)
	s.failTests(http.StatusServiceUnavailable, `{"message":"busy"}`)
	eng := newLiveEngine(t, s)

	job := trigger(t, eng, workflows.ErrorRecovery, api.Args{
		"repository":    "org/repo",
		"branch":        "main",
		"failed_action": string(api.ActionRunTests),
		"error":         "connection reset by peer",
	})

	as.JobStatus(job, api.JobCompleted)
	as.JobHistory(job,
		api.ActionAnalyzeError,
		api.ActionRetryFailedStep,
		api.ActionEscalateToHuman,
		api.ActionSendNotification,
	)
	testify.Equal(t, false, job.Context["retry_succeeded"])
	testify.Contains(t, job.Context["retry_error"], "HTTP 503")
	testify.Equal(t, true, job.Context["escalated"])

	_, pages, posts := s.counts()
	testify.Equal(t, 1, pages)
	testify.Equal(t, 2, posts)
}

func TestErrorRecoveryEscalatesUnretried(t *testing.T) {
	as := assert.New(t)
	s := newServices(t)
	eng := newLiveEngine(t, s)

	job := trigger(t, eng, workflows.ErrorRecovery, api.Args{
		"error": "deployment failure: timeout waiting for build",
	})

	as.JobStatus(job, api.JobCompleted)
	as.JobHistory(job,
		api.ActionAnalyzeError,
		api.ActionRetryFailedStep,
		api.ActionEscalateToHuman,
		api.ActionSendNotification,
	)
	testify.Equal(t, true, job.Context["retryable"])
	testify.Equal(t, false, job.Context["retry_attempted"])
	testify.Equal(t, true, job.Context["escalated"])
}

func TestStagingDeploymentTestsFailLive(t *testing.T) {
	as := assert.New(t)
	s := newServices(t)
	s.failTests(http.StatusOK, `{"passed":false}`)
	eng := newLiveEngine(t, s)

	job := trigger(t, eng, workflows.StagingDeployment, api.Args{
		"repository": "org/repo",
		"branch":     "main",
	})

	as.JobStatus(job, api.JobCompleted)
	as.JobHistory(job, api.ActionRunTests, api.ActionSendNotification)
	testify.Empty(t, job.Error)
}
