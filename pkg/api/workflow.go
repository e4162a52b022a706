package api

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// WorkflowID uniquely identifies a workflow definition
	WorkflowID string

	// ActionName names a registered step action
	ActionName string

	// StepType classifies a step for history and reporting purposes
	StepType string

	// Workflow is an immutable, ordered list of steps
	Workflow struct {
		ID          WorkflowID `json:"id" yaml:"id"`
		Name        string     `json:"name" yaml:"name"`
		Description string     `json:"description,omitempty" yaml:"description,omitempty"`
		Steps       []*Step    `json:"steps" yaml:"steps"`
	}

	// Step is a single named action within a workflow, optionally guarded
	// by a condition
	Step struct {
		Type      StepType   `json:"type" yaml:"type"`
		Action    ActionName `json:"action" yaml:"action"`
		Condition string     `json:"condition,omitempty" yaml:"condition,omitempty"`
	}
)

const (
	StepTypeTest     StepType = "test"
	StepTypeBuild    StepType = "build"
	StepTypeDeploy   StepType = "deploy"
	StepTypeValidate StepType = "validate"
	StepTypeMonitor  StepType = "monitor"
	StepTypeNotify   StepType = "notify"
	StepTypeAnalyze  StepType = "analyze"
	StepTypeRetry    StepType = "retry"
	StepTypeEscalate StepType = "escalate"
)

const (
	ActionRunTests            ActionName = "run_tests"
	ActionBuildApplication    ActionName = "build_application"
	ActionDeployToPreview     ActionName = "deploy_to_preview"
	ActionDeployToStaging     ActionName = "deploy_to_staging"
	ActionDeployToProduction  ActionName = "deploy_to_production"
	ActionRunIntegrationTests ActionName = "run_integration_tests"
	ActionValidateDeployment  ActionName = "validate_deployment"
	ActionMonitorDeployment   ActionName = "monitor_deployment"
	ActionSendNotification    ActionName = "send_notification"
	ActionAnalyzeError        ActionName = "analyze_error"
	ActionRetryFailedStep     ActionName = "retry_failed_step"
	ActionEscalateToHuman     ActionName = "escalate_to_human"
)

var (
	ErrWorkflowIDEmpty   = errors.New("workflow ID empty")
	ErrWorkflowNameEmpty = errors.New("workflow name empty")
	ErrWorkflowNoSteps   = errors.New("workflow has no steps")
	ErrStepNil           = errors.New("workflow step is nil")
	ErrStepTypeEmpty     = errors.New("step type empty")
	ErrStepActionEmpty   = errors.New("step action empty")
)

// Validate checks the structural integrity of a workflow definition. Action
// and condition names are not checked here; that requires the registries
func (w *Workflow) Validate() error {
	if strings.TrimSpace(string(w.ID)) == "" {
		return ErrWorkflowIDEmpty
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("%w: %s", ErrWorkflowNameEmpty, w.ID)
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("%w: %s", ErrWorkflowNoSteps, w.ID)
	}
	for i, step := range w.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("%w (workflow %s, step %d)", err, w.ID, i)
		}
	}
	return nil
}

// Actions returns the action name of every step, in step order
func (w *Workflow) Actions() []ActionName {
	res := make([]ActionName, len(w.Steps))
	for i, step := range w.Steps {
		res[i] = step.Action
	}
	return res
}

func (s *Step) validate() error {
	if s == nil {
		return ErrStepNil
	}
	if s.Type == "" {
		return ErrStepTypeEmpty
	}
	if s.Action == "" {
		return ErrStepActionEmpty
	}
	return nil
}
