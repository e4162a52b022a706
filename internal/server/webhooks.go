package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/teano-uTTu-9788/AiCan/internal/workflows"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
	"github.com/teano-uTTu-9788/AiCan/pkg/log"
)

// githubTrigger is the workflow a GitHub event resolves to
type githubTrigger struct {
	init     api.Args
	workflow api.WorkflowID
}

const (
	headerSignature = "X-Hub-Signature-256"
	headerEvent     = "X-GitHub-Event"
	signaturePrefix = "sha256="

	branchMain       = "main"
	branchRelease    = "release/"
	refHeadsPrefix   = "refs/heads/"
	conclusionFailed = "failure"
)

// WorkflowForBranch maps a pushed branch onto the deployment workflow that
// handles it
func WorkflowForBranch(branch string) api.WorkflowID {
	switch {
	case branch == branchMain:
		return workflows.StagingDeployment
	case strings.HasPrefix(branch, branchRelease):
		return workflows.ProductionDeployment
	default:
		return workflows.PreviewDeployment
	}
}

// Sign computes the X-Hub-Signature-256 header value for a payload
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a X-Hub-Signature-256 header value against the
// payload in constant time
func VerifySignature(secret string, payload []byte, header string) error {
	if header == "" {
		return ErrMissingSignature
	}
	sig, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return ErrSignature
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return ErrSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrSignature
	}
	return nil
}

func (s *Server) handleGitHub(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	if !s.verifyGitHub(c, body) {
		return
	}

	event := c.GetHeader(headerEvent)
	if event == "ping" {
		c.JSON(http.StatusOK, api.MessageResponse{Message: "pong"})
		return
	}
	if !gjson.ValidBytes(body) {
		writeError(c, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	trig := githubEventTrigger(event, body)
	if trig == nil {
		slog.Debug("GitHub event ignored",
			slog.String("github_event", event))
		c.JSON(http.StatusAccepted, api.MessageResponse{
			Message: fmt.Sprintf("event %q ignored", event),
		})
		return
	}

	job, err := s.engine.TriggerWorkflow(
		c.Request.Context(), string(trig.workflow), trig.init,
	)
	if err != nil {
		slog.Error("Failed to trigger workflow from GitHub",
			log.WorkflowID(trig.workflow),
			log.Error(err))
		writeError(c, statusFor(err), err)
		return
	}

	slog.Info("GitHub event triggered workflow",
		slog.String("github_event", event),
		log.WorkflowID(job.WorkflowID),
		log.JobID(job.ID))
	c.JSON(http.StatusOK, api.TriggerResponse{
		JobID:      job.ID,
		WorkflowID: job.WorkflowID,
		Status:     api.TriggerStarted,
	})
}

// verifyGitHub writes the error response and returns false when the
// request must be rejected
func (s *Server) verifyGitHub(c *gin.Context, body []byte) bool {
	secret := s.config.GitHubWebhookSecret
	if secret == "" {
		if s.config.IsProduction() {
			slog.Error("Rejecting GitHub webhook, secret not configured")
			writeError(c, http.StatusInternalServerError, ErrSecretNotSet)
			return false
		}
		slog.Warn("Accepting unsigned GitHub webhook, " +
			"GITHUB_WEBHOOK_SECRET is not set")
		return true
	}

	err := VerifySignature(secret, body, c.GetHeader(headerSignature))
	if err != nil {
		slog.Warn("GitHub webhook rejected",
			log.Error(err))
		writeError(c, http.StatusUnauthorized, err)
		return false
	}
	return true
}

// githubEventTrigger returns nil for events that start no workflow
func githubEventTrigger(event string, body []byte) *githubTrigger {
	repo := gjson.GetBytes(body, "repository.full_name").String()
	switch event {
	case "push":
		return pushTrigger(repo, body)
	case "pull_request":
		return pullRequestTrigger(repo, body)
	case "release":
		return releaseTrigger(repo, body)
	case "workflow_run":
		return failureTrigger(repo, body, "workflow_run")
	case "check_suite":
		return failureTrigger(repo, body, "check_suite")
	case "deployment_status":
		return deploymentStatusTrigger(repo, body)
	default:
		return nil
	}
}

func pushTrigger(repo string, body []byte) *githubTrigger {
	if gjson.GetBytes(body, "deleted").Bool() {
		return nil
	}
	branch, ok := strings.CutPrefix(
		gjson.GetBytes(body, "ref").String(), refHeadsPrefix,
	)
	if !ok || branch == "" {
		return nil
	}
	return &githubTrigger{
		workflow: WorkflowForBranch(branch),
		init: api.Args{
			"repository": repo,
			"branch":     branch,
			"commit":     gjson.GetBytes(body, "after").String(),
			"pusher":     gjson.GetBytes(body, "pusher.name").String(),
		},
	}
}

func pullRequestTrigger(repo string, body []byte) *githubTrigger {
	switch gjson.GetBytes(body, "action").String() {
	case "opened", "synchronize", "reopened":
	default:
		return nil
	}
	return &githubTrigger{
		workflow: workflows.PreviewDeployment,
		init: api.Args{
			"repository":   repo,
			"branch":       gjson.GetBytes(body, "pull_request.head.ref").String(),
			"commit":       gjson.GetBytes(body, "pull_request.head.sha").String(),
			"pull_request": gjson.GetBytes(body, "number").Int(),
		},
	}
}

func releaseTrigger(repo string, body []byte) *githubTrigger {
	if gjson.GetBytes(body, "action").String() != "published" {
		return nil
	}
	return &githubTrigger{
		workflow: workflows.ProductionDeployment,
		init: api.Args{
			"repository":  repo,
			"branch":      gjson.GetBytes(body, "release.target_commitish").String(),
			"tag":         gjson.GetBytes(body, "release.tag_name").String(),
			"environment": "production",
		},
	}
}

// failureTrigger starts error recovery for a failed CI run. The checks are
// rerun through run_tests on the same commit
func failureTrigger(repo string, body []byte, kind string) *githubTrigger {
	run := gjson.GetBytes(body, kind)
	if run.Get("conclusion").String() != conclusionFailed {
		return nil
	}
	source := run.Get("name").String()
	if source == "" {
		source = run.Get("app.name").String()
	}
	return &githubTrigger{
		workflow: workflows.ErrorRecovery,
		init: api.Args{
			"repository":    repo,
			"branch":        run.Get("head_branch").String(),
			"commit":        run.Get("head_sha").String(),
			"failed_action": string(api.ActionRunTests),
			"error":         fmt.Sprintf("%s concluded with failure", source),
		},
	}
}

// deploymentStatusTrigger starts error recovery for a failed deployment,
// which is retried by redeploying the same commit to its environment
func deploymentStatusTrigger(repo string, body []byte) *githubTrigger {
	state := gjson.GetBytes(body, "deployment_status.state").String()
	if state != "failure" && state != "error" {
		return nil
	}
	env := gjson.GetBytes(body, "deployment.environment").String()
	return &githubTrigger{
		workflow: workflows.ErrorRecovery,
		init: api.Args{
			"repository":    repo,
			"branch":        gjson.GetBytes(body, "deployment.ref").String(),
			"commit":        gjson.GetBytes(body, "deployment.sha").String(),
			"environment":   env,
			"failed_action": string(RedeployAction(env)),
			"error": fmt.Sprintf("deployment %s: %s", state,
				gjson.GetBytes(body, "deployment_status.description").String()),
		},
	}
}

// RedeployAction picks the deploy action for a GitHub deployment
// environment name
func RedeployAction(env string) api.ActionName {
	switch env := strings.ToLower(env); {
	case strings.Contains(env, "production"):
		return api.ActionDeployToProduction
	case strings.Contains(env, "preview"):
		return api.ActionDeployToPreview
	default:
		return api.ActionDeployToStaging
	}
}

func (s *Server) handleN8n(c *gin.Context) {
	wfID := api.WorkflowID(c.Param("workflowID"))

	var ev api.ExternalEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		writeError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %s", ErrInvalidBody, err))
		return
	}

	success, err := eventOutcome(&ev)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	id, err := s.correlate(wfID, ev.JobID)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}

	var job *api.Job
	if success {
		job, err = s.engine.CompleteExternal(id, ev.Data)
	} else {
		job, err = s.engine.FailExternal(id, ev.Error, ev.Data)
	}
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// correlate resolves the job an external event refers to. An explicit job
// ID wins; otherwise the first job of the workflow is used
func (s *Server) correlate(
	wfID api.WorkflowID, jobID api.JobID,
) (api.JobID, error) {
	if jobID != "" {
		job, err := s.engine.GetJob(jobID)
		if err != nil {
			return "", err
		}
		if job.WorkflowID != wfID {
			slog.Warn("External event workflow mismatch",
				log.JobID(jobID),
				log.WorkflowID(wfID),
				slog.String("job_workflow", string(job.WorkflowID)))
		}
		return jobID, nil
	}

	job, err := s.engine.FindJobByWorkflow(wfID)
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

func eventOutcome(ev *api.ExternalEvent) (bool, error) {
	if ev.IsSuccess() {
		return true, nil
	}
	switch ev.Status {
	case "failed", "failure", "error":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownEventStatus, ev.Status)
	}
}

