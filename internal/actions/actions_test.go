package actions_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teano-uTTu-9788/AiCan/internal/actions"
	"github.com/teano-uTTu-9788/AiCan/internal/client"
	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

type saas struct {
	*httptest.Server
	hooks    map[string]string
	states   []string
	slack    []string
	notion   []map[string]any
	hookCode int
	mu       sync.Mutex
}

func newSaaS(t *testing.T) *saas {
	t.Helper()
	s := &saas{
		hooks:    map[string]string{},
		hookCode: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/{path}", func(
		w http.ResponseWriter, r *http.Request,
	) {
		s.mu.Lock()
		defer s.mu.Unlock()
		w.WriteHeader(s.hookCode)
		_, _ = io.WriteString(w, s.hooks[r.PathValue("path")])
	})
	mux.HandleFunc("POST /v13/deployments", func(
		w http.ResponseWriter, r *http.Request,
	) {
		_, _ = io.WriteString(w,
			`{"id":"dpl_1","url":"app.vercel.app","readyState":"QUEUED"}`)
	})
	mux.HandleFunc("GET /v13/deployments/{id}", func(
		w http.ResponseWriter, r *http.Request,
	) {
		s.mu.Lock()
		defer s.mu.Unlock()
		state := client.StateBuilding
		if len(s.states) > 0 {
			state = s.states[0]
			if len(s.states) > 1 {
				s.states = s.states[1:]
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":         r.PathValue("id"),
			"url":        "app.vercel.app",
			"readyState": state,
		})
	})
	mux.HandleFunc("POST /slack", func(
		w http.ResponseWriter, r *http.Request,
	) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.slack = append(s.slack, body["text"])
		s.mu.Unlock()
		_, _ = io.WriteString(w, "ok")
	})
	mux.HandleFunc("POST /v1/pages", func(
		w http.ResponseWriter, r *http.Request,
	) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.notion = append(s.notion, body)
		s.mu.Unlock()
		_, _ = io.WriteString(w, `{"id":"page-1"}`)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *saas) setHook(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[path] = body
}

func (s *saas) setStates(states ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = states
}

func (s *saas) slackMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.slack...)
}

func (s *saas) services(withMessaging bool) actions.Services {
	h := client.NewHTTPClient(2*time.Second, "test")
	svc := actions.Services{
		Vercel: client.NewVercel(h, client.VercelConfig{
			BaseURL: s.URL,
			Token:   "tok",
			Project: "app",
		}),
		N8n:    client.NewN8n(h, s.URL, "key"),
		Notion: client.NewNotion(h, s.URL, "", ""),
		Slack:  client.NewSlack(h, ""),
	}
	if withMessaging {
		svc.Notion = client.NewNotion(h, s.URL, "secret", "db-1")
		svc.Slack = client.NewSlack(h, s.URL+"/slack")
	}
	return svc
}

func newRegistry(
	t *testing.T, s *saas, withMessaging bool,
) *engine.ActionRegistry {
	t.Helper()
	reg := engine.NewActionRegistry()
	err := actions.Register(reg, s.services(withMessaging), actions.Config{
		PollInterval: 10 * time.Millisecond,
		MaxWait:      200 * time.Millisecond,
	})
	require.NoError(t, err)
	return reg
}

func invoke(
	t *testing.T, reg *engine.ActionRegistry, name api.ActionName,
	args api.Args,
) (api.Args, error) {
	t.Helper()
	return reg.Invoke(context.Background(), name, args)
}

func TestRegisterAll(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)

	names := reg.Names()
	for _, name := range []api.ActionName{
		api.ActionRunTests, api.ActionBuildApplication,
		api.ActionDeployToPreview, api.ActionDeployToStaging,
		api.ActionDeployToProduction, api.ActionRunIntegrationTests,
		api.ActionValidateDeployment, api.ActionMonitorDeployment,
		api.ActionSendNotification, api.ActionAnalyzeError,
		api.ActionRetryFailedStep, api.ActionEscalateToHuman,
	} {
		assert.Contains(t, names, name)
	}
	assert.Len(t, names, 12)
}

func TestRunTests(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)
	s.setHook(actions.HookRunTests, `{"passed":true,"summary":"42 passed"}`)

	res, err := invoke(t, reg, api.ActionRunTests, api.Args{
		actions.KeyRepository: "org/app",
	})
	require.NoError(t, err)
	assert.Equal(t, true, res[actions.KeyTestsPassed])
	assert.Equal(t, "42 passed", res[actions.KeyTestSummary])
}

func TestRunTestsFailure(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)
	s.setHook(actions.HookRunTests, `{"passed":false}`)

	res, err := invoke(t, reg, api.ActionRunTests, api.Args{})
	require.NoError(t, err)
	assert.Equal(t, false, res[actions.KeyTestsPassed])
}

func TestRunTestsHTTPError(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)
	s.mu.Lock()
	s.hookCode = http.StatusBadGateway
	s.mu.Unlock()

	_, err := invoke(t, reg, api.ActionRunTests, api.Args{})
	assert.ErrorIs(t, err, client.ErrHTTPError)
}

func TestBuildApplication(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)
	s.setHook(actions.HookBuild,
		`{"success":true,"build_id":"b-7","artifact_url":"s3://a/b"}`)

	res, err := invoke(t, reg, api.ActionBuildApplication, api.Args{})
	require.NoError(t, err)
	assert.Equal(t, true, res[actions.KeyBuildSucceeded])
	assert.Equal(t, "b-7", res[actions.KeyBuildID])
	assert.Equal(t, "s3://a/b", res[actions.KeyArtifactURL])
}

func TestIntegrationTestsStaging(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)
	s.setHook(actions.HookIntegrationTests, `{"passed":true}`)

	res, err := invoke(t, reg, api.ActionRunIntegrationTests, api.Args{
		actions.KeyEnvironment: actions.EnvStaging,
	})
	require.NoError(t, err)
	assert.Equal(t, true, res[actions.KeyIntegrationTestsPassed])
	assert.Equal(t, true, res[actions.KeyStagingTestsPassed])

	res, err = invoke(t, reg, api.ActionRunIntegrationTests, api.Args{
		actions.KeyEnvironment: actions.EnvPreview,
	})
	require.NoError(t, err)
	assert.NotContains(t, res, actions.KeyStagingTestsPassed)
}

func TestDeploy(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)

	res, err := invoke(t, reg, api.ActionDeployToStaging, api.Args{
		actions.KeyRepository: "org/app",
		actions.KeyBranch:     "main",
	})
	require.NoError(t, err)
	assert.Equal(t, actions.EnvStaging, res[actions.KeyEnvironment])
	assert.Equal(t, "dpl_1", res[actions.KeyDeploymentID])
	assert.Equal(t, "https://app.vercel.app", res[actions.KeyDeploymentURL])
	assert.Equal(t, client.StateQueued, res[actions.KeyDeploymentState])
	assert.Equal(t, false, res[actions.KeyDeploymentReady])
}

func TestDeployMissingInput(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)

	_, err := invoke(t, reg, api.ActionDeployToPreview, api.Args{
		actions.KeyBranch: "feature/x",
	})
	assert.ErrorIs(t, err, actions.ErrMissingInput)

	_, err = invoke(t, reg, api.ActionDeployToPreview, api.Args{
		actions.KeyRepository: "org/app",
	})
	assert.ErrorIs(t, err, actions.ErrMissingInput)
}

func TestValidateDeploymentReady(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)
	s.setStates(client.StateBuilding, client.StateBuilding, client.StateReady)

	res, err := invoke(t, reg, api.ActionValidateDeployment, api.Args{
		actions.KeyDeploymentID: "dpl_1",
	})
	require.NoError(t, err)
	assert.Equal(t, true, res[actions.KeyDeploymentReady])
	assert.Equal(t, client.StateReady, res[actions.KeyDeploymentState])
}

func TestValidateDeploymentError(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)
	s.setStates(client.StateError)

	_, err := invoke(t, reg, api.ActionValidateDeployment, api.Args{
		actions.KeyDeploymentID: "dpl_1",
	})
	assert.ErrorIs(t, err, actions.ErrDeploymentFailed)
}

func TestValidateDeploymentTimeout(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)
	s.setStates(client.StateBuilding)

	_, err := invoke(t, reg, api.ActionValidateDeployment, api.Args{
		actions.KeyDeploymentID: "dpl_1",
	})
	assert.ErrorIs(t, err, actions.ErrDeploymentTimeout)
}

func TestValidateDeploymentMissingID(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)

	_, err := invoke(t, reg, api.ActionValidateDeployment, api.Args{})
	assert.ErrorIs(t, err, actions.ErrMissingInput)
}

func TestMonitorDeployment(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)
	s.setStates(client.StateReady)

	res, err := invoke(t, reg, api.ActionMonitorDeployment, api.Args{
		actions.KeyDeploymentID: "dpl_1",
	})
	require.NoError(t, err)
	assert.Equal(t, true, res[actions.KeyMonitoringHealthy])
}

func TestSendNotification(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, true)

	res, err := invoke(t, reg, api.ActionSendNotification, api.Args{
		actions.KeyRepository:    "org/app",
		actions.KeyBranch:        "main",
		actions.KeyDeploymentURL: "https://app.vercel.app",
	})
	require.NoError(t, err)
	assert.Equal(t, true, res[actions.KeyNotificationSent])

	msgs := s.slackMessages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "org/app@main")
	assert.Contains(t, msgs[0], "https://app.vercel.app")
}

func TestSendNotificationUnconfigured(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)

	res, err := invoke(t, reg, api.ActionSendNotification, api.Args{})
	require.NoError(t, err)
	assert.Equal(t, false, res[actions.KeyNotificationSent])
	assert.Empty(t, s.slackMessages())
}

func TestAnalyzeError(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)

	cases := []struct {
		msg       string
		category  string
		retryable bool
	}{
		{"context deadline exceeded", actions.CategoryTimeout, true},
		{"HTTP 503: unavailable", actions.CategoryNetwork, true},
		{"HTTP 401: bad token", actions.CategoryClient, false},
		{"unit tests failed", actions.CategoryTest, false},
		{"compile error in main.go", actions.CategoryBuild, false},
		{"something odd", actions.CategoryUnknown, false},
		{"", actions.CategoryUnknown, false},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			res, err := invoke(t, reg, api.ActionAnalyzeError, api.Args{
				actions.KeyError: tc.msg,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.category, res[actions.KeyErrorCategory])
			assert.Equal(t, tc.retryable, res[actions.KeyRetryable])
			assert.Equal(t, !tc.retryable, res[actions.KeyShouldEscalate])
		})
	}
}

func TestRetryFailedStep(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)
	s.setHook(actions.HookRunTests, `{"passed":true}`)

	res, err := invoke(t, reg, api.ActionRetryFailedStep, api.Args{
		actions.KeyFailedAction: string(api.ActionRunTests),
	})
	require.NoError(t, err)
	assert.Equal(t, true, res[actions.KeyRetryAttempted])
	assert.Equal(t, true, res[actions.KeyRetrySucceeded])
	assert.Equal(t, true, res[actions.KeyTestsPassed])
}

func TestRetryFailedStepFails(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)

	res, err := invoke(t, reg, api.ActionRetryFailedStep, api.Args{
		actions.KeyFailedAction: string(api.ActionValidateDeployment),
	})
	require.NoError(t, err)
	assert.Equal(t, true, res[actions.KeyRetryAttempted])
	assert.Equal(t, false, res[actions.KeyRetrySucceeded])
	assert.Contains(t, res[actions.KeyRetryError], "deployment_id")
}

func TestRetryFailedStepNothingToRetry(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)

	for _, name := range []string{"", string(api.ActionRetryFailedStep)} {
		res, err := invoke(t, reg, api.ActionRetryFailedStep, api.Args{
			actions.KeyFailedAction: name,
		})
		require.NoError(t, err)
		assert.Equal(t, false, res[actions.KeyRetryAttempted])
	}
}

func TestEscalateToHuman(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, true)

	res, err := invoke(t, reg, api.ActionEscalateToHuman, api.Args{
		actions.KeyRepository:   "org/app",
		actions.KeyFailedAction: "deploy_to_production",
		actions.KeyError:        "HTTP 401: bad token",
	})
	require.NoError(t, err)
	assert.Equal(t, true, res[actions.KeyEscalated])
	assert.Equal(t, "page-1", res[actions.KeyEscalationPageID])

	msgs := s.slackMessages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.Contains(msgs[0], "HTTP 401"))

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.notion, 1)
	props := s.notion[0]["properties"].(map[string]any)
	assert.Contains(t, props, "Name")
	assert.Contains(t, props, "Error")
}

func TestEscalateWithoutChannel(t *testing.T) {
	s := newSaaS(t)
	reg := newRegistry(t, s, false)

	_, err := invoke(t, reg, api.ActionEscalateToHuman, api.Args{})
	assert.ErrorIs(t, err, actions.ErrNoEscalationChannel)
}
