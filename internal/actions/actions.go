package actions

import (
	"errors"
	"time"

	"github.com/teano-uTTu-9788/AiCan/internal/client"
	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

type (
	// Services are the SaaS clients the actions call out to
	Services struct {
		Vercel *client.Vercel
		N8n    *client.N8n
		Notion *client.Notion
		Slack  *client.Slack
	}

	// Config bounds the deployment polling actions
	Config struct {
		PollInterval time.Duration
		MaxWait      time.Duration
	}

	actions struct {
		svc      Services
		cfg      Config
		registry *engine.ActionRegistry
	}
)

// Context keys read and written by the actions
const (
	KeyRepository             api.Name = "repository"
	KeyBranch                 api.Name = "branch"
	KeyCommit                 api.Name = "commit"
	KeyEnvironment            api.Name = "environment"
	KeyTestsPassed            api.Name = "tests_passed"
	KeyTestSummary            api.Name = "test_summary"
	KeyBuildSucceeded         api.Name = "build_succeeded"
	KeyBuildID                api.Name = "build_id"
	KeyArtifactURL            api.Name = "artifact_url"
	KeyDeploymentID           api.Name = "deployment_id"
	KeyDeploymentURL          api.Name = "deployment_url"
	KeyDeploymentState        api.Name = "deployment_state"
	KeyDeploymentReady        api.Name = "deployment_ready"
	KeyStagingTestsPassed     api.Name = "staging_tests_passed"
	KeyIntegrationTestsPassed api.Name = "integration_tests_passed"
	KeyMonitoringHealthy      api.Name = "monitoring_healthy"
	KeyNotificationSent       api.Name = "notification_sent"
	KeyError                  api.Name = "error"
	KeyFailedAction           api.Name = "failed_action"
	KeyErrorCategory          api.Name = "error_category"
	KeyRetryable              api.Name = "retryable"
	KeyShouldEscalate         api.Name = "should_escalate"
	KeyRetryAttempted         api.Name = "retry_attempted"
	KeyRetrySucceeded         api.Name = "retry_succeeded"
	KeyRetryError             api.Name = "retry_error"
	KeyEscalated              api.Name = "escalated"
	KeyEscalationPageID       api.Name = "escalation_page_id"
	KeyMessage                api.Name = "message"
)

// Deployment environments
const (
	EnvPreview    = "preview"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

var (
	ErrMissingInput        = errors.New("missing required context key")
	ErrDeploymentFailed    = errors.New("deployment failed")
	ErrDeploymentTimeout   = errors.New("deployment not ready before timeout")
	ErrNoEscalationChannel = errors.New("no escalation channel configured")
)

// Register binds every built-in action to its name in the registry
func Register(
	reg *engine.ActionRegistry, svc Services, cfg Config,
) error {
	a := &actions{svc: svc, cfg: cfg, registry: reg}
	all := map[api.ActionName]engine.ActionFunc{
		api.ActionRunTests:            a.runTests,
		api.ActionBuildApplication:    a.buildApplication,
		api.ActionRunIntegrationTests: a.runIntegrationTests,
		api.ActionDeployToPreview:     a.deployTo(EnvPreview),
		api.ActionDeployToStaging:     a.deployTo(EnvStaging),
		api.ActionDeployToProduction:  a.deployTo(EnvProduction),
		api.ActionValidateDeployment:  a.validateDeployment,
		api.ActionMonitorDeployment:   a.monitorDeployment,
		api.ActionSendNotification:    a.sendNotification,
		api.ActionAnalyzeError:        a.analyzeError,
		api.ActionRetryFailedStep:     a.retryFailedStep,
		api.ActionEscalateToHuman:     a.escalateToHuman,
	}
	for name, fn := range all {
		if err := reg.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}
