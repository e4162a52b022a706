package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

type (
	// Vercel creates and inspects deployments through the Vercel REST API
	Vercel struct {
		http    *HTTPClient
		baseURL string
		token   string
		teamID  string
		project string
	}

	// VercelConfig locates a Vercel project
	VercelConfig struct {
		BaseURL string
		Token   string
		TeamID  string
		Project string
	}

	// DeploymentRequest describes a git-sourced deployment
	DeploymentRequest struct {
		Repository string
		Ref        string
		Target     string
	}

	// Deployment is the subset of a Vercel deployment the orchestrator uses
	Deployment struct {
		ID     string `json:"id"`
		URL    string `json:"url"`
		State  string `json:"state"`
		Target string `json:"target,omitempty"`
	}
)

// Deployment ready states reported by Vercel
const (
	StateReady    = "READY"
	StateError    = "ERROR"
	StateCanceled = "CANCELED"
	StateBuilding = "BUILDING"
	StateQueued   = "QUEUED"
)

// NewVercel creates a Vercel client
func NewVercel(h *HTTPClient, cfg VercelConfig) *Vercel {
	return &Vercel{
		http:    h,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		teamID:  cfg.TeamID,
		project: cfg.Project,
	}
}

// Configured reports whether an API token is present
func (v *Vercel) Configured() bool {
	return v.token != ""
}

// CreateDeployment starts a deployment of the configured project
func (v *Vercel) CreateDeployment(
	ctx context.Context, req DeploymentRequest,
) (*Deployment, error) {
	if !v.Configured() {
		return nil, fmt.Errorf("%w: vercel", ErrNotConfigured)
	}

	body := map[string]any{
		"name": v.project,
		"gitSource": map[string]any{
			"type": "github",
			"repo": req.Repository,
			"ref":  req.Ref,
		},
	}
	if req.Target != "" && req.Target != "preview" {
		body["target"] = req.Target
	}

	res, err := v.http.do(ctx, request{
		method:  http.MethodPost,
		url:     v.url("/v13/deployments"),
		headers: v.headers(),
		body:    body,
	})
	if err != nil {
		return nil, err
	}
	return parseDeployment(res)
}

// GetDeployment fetches the current state of a deployment
func (v *Vercel) GetDeployment(
	ctx context.Context, id string,
) (*Deployment, error) {
	if !v.Configured() {
		return nil, fmt.Errorf("%w: vercel", ErrNotConfigured)
	}
	res, err := v.http.do(ctx, request{
		method:  http.MethodGet,
		url:     v.url("/v13/deployments/" + url.PathEscape(id)),
		headers: v.headers(),
	})
	if err != nil {
		return nil, err
	}
	return parseDeployment(res)
}

// Ping checks that the token is accepted
func (v *Vercel) Ping(ctx context.Context) error {
	if !v.Configured() {
		return fmt.Errorf("%w: vercel", ErrNotConfigured)
	}
	_, err := v.http.do(ctx, request{
		method:  http.MethodGet,
		url:     v.url("/v2/user"),
		headers: v.headers(),
	})
	return err
}

func (v *Vercel) url(path string) string {
	res := v.baseURL + path
	if v.teamID != "" {
		res += "?teamId=" + url.QueryEscape(v.teamID)
	}
	return res
}

func (v *Vercel) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + v.token,
	}
}

func parseDeployment(body []byte) (*Deployment, error) {
	id := gjson.GetBytes(body, "id")
	if !id.Exists() {
		return nil, fmt.Errorf("%w: deployment has no id", ErrBadResponse)
	}
	state := gjson.GetBytes(body, "readyState").String()
	if state == "" {
		state = gjson.GetBytes(body, "status").String()
	}
	res := &Deployment{
		ID:     id.String(),
		URL:    gjson.GetBytes(body, "url").String(),
		State:  state,
		Target: gjson.GetBytes(body, "target").String(),
	}
	if res.URL != "" && !strings.Contains(res.URL, "://") {
		res.URL = "https://" + res.URL
	}
	return res, nil
}

// IsTerminalState reports whether a deployment will not change state again
func IsTerminalState(state string) bool {
	switch state {
	case StateReady, StateError, StateCanceled:
		return true
	default:
		return false
	}
}
