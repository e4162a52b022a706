package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teano-uTTu-9788/AiCan/internal/config"
	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// TestEngineEnv holds all the components needed for engine testing
type TestEngineEnv struct {
	Engine   *engine.Engine
	Tracker  *engine.Tracker
	Actions  *engine.ActionRegistry
	Mock     *MockActions
	Notifier *MockNotifier
	Hub      *engine.EventHub
	Config   *config.Config
	Cleanup  func()
}

// AllActions lists every action name a workflow may reference
var AllActions = []api.ActionName{
	api.ActionRunTests,
	api.ActionBuildApplication,
	api.ActionDeployToPreview,
	api.ActionDeployToStaging,
	api.ActionDeployToProduction,
	api.ActionRunIntegrationTests,
	api.ActionValidateDeployment,
	api.ActionMonitorDeployment,
	api.ActionSendNotification,
	api.ActionAnalyzeError,
	api.ActionRetryFailedStep,
	api.ActionEscalateToHuman,
}

// NewTestConfig creates a default configuration with debug logging and
// short timers
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.DeployPollInterval = 10 * time.Millisecond
	cfg.DeployMaxWait = 200 * time.Millisecond
	cfg.HTTPClientTimeout = 2 * time.Second
	return cfg
}

// NewTestEngine creates an engine whose every action name is bound to a
// shared MockActions
func NewTestEngine(t *testing.T) *TestEngineEnv {
	t.Helper()

	cfg := NewTestConfig()
	tracker := engine.NewTracker()
	actions := engine.NewActionRegistry()
	mock := NewMockActions()
	mock.RegisterAll(actions, AllActions...)
	notifier := NewMockNotifier()
	hub := engine.NewEventHub()

	eng := engine.New(cfg, engine.Dependencies{
		Tracker:  tracker,
		Actions:  actions,
		Notifier: notifier,
		Hub:      hub,
	})

	env := &TestEngineEnv{
		Engine:   eng,
		Tracker:  tracker,
		Actions:  actions,
		Mock:     mock,
		Notifier: notifier,
		Hub:      hub,
		Config:   cfg,
	}
	env.Cleanup = func() {
		_ = eng.Stop()
	}
	return env
}

// RegisterWorkflow registers a workflow built from the given steps
func (env *TestEngineEnv) RegisterWorkflow(
	t *testing.T, id api.WorkflowID, steps ...*api.Step,
) *api.Workflow {
	t.Helper()
	wf := NewWorkflow(id, steps...)
	require.NoError(t, env.Engine.RegisterWorkflow(wf))
	return wf
}

// NewWorkflow creates a workflow whose name is its ID
func NewWorkflow(id api.WorkflowID, steps ...*api.Step) *api.Workflow {
	return &api.Workflow{
		ID:    id,
		Name:  string(id),
		Steps: steps,
	}
}

// NewStep creates a step of the given action, typed after the action
func NewStep(action api.ActionName) *api.Step {
	return &api.Step{
		Type:   stepTypes[action],
		Action: action,
	}
}

// NewGuardedStep creates a step that only runs when the condition holds
func NewGuardedStep(action api.ActionName, cond string) *api.Step {
	step := NewStep(action)
	step.Condition = cond
	return step
}

var stepTypes = map[api.ActionName]api.StepType{
	api.ActionRunTests:            api.StepTypeTest,
	api.ActionBuildApplication:    api.StepTypeBuild,
	api.ActionDeployToPreview:     api.StepTypeDeploy,
	api.ActionDeployToStaging:     api.StepTypeDeploy,
	api.ActionDeployToProduction:  api.StepTypeDeploy,
	api.ActionRunIntegrationTests: api.StepTypeTest,
	api.ActionValidateDeployment:  api.StepTypeValidate,
	api.ActionMonitorDeployment:   api.StepTypeMonitor,
	api.ActionSendNotification:    api.StepTypeNotify,
	api.ActionAnalyzeError:        api.StepTypeAnalyze,
	api.ActionRetryFailedStep:     api.StepTypeRetry,
	api.ActionEscalateToHuman:     api.StepTypeEscalate,
}
