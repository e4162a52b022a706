package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// Orchestrator talks to the orchestrator's own HTTP API
type Orchestrator struct {
	http    *HTTPClient
	baseURL string
}

// NewOrchestrator creates a client for the API served at baseURL
func NewOrchestrator(h *HTTPClient, baseURL string) *Orchestrator {
	return &Orchestrator{
		http:    h,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Trigger starts the named workflow with an initial context
func (o *Orchestrator) Trigger(
	ctx context.Context, name string, initial api.Args,
) (*api.TriggerResponse, error) {
	if initial == nil {
		initial = api.Args{}
	}
	return getJSON[api.TriggerResponse](ctx, o, request{
		method: http.MethodPost,
		url:    o.baseURL + "/workflows/trigger/" + url.PathEscape(name),
		body:   initial,
	})
}

// Job fetches the full record of a job
func (o *Orchestrator) Job(ctx context.Context, id api.JobID) (*api.Job, error) {
	return getJSON[api.Job](ctx, o, request{
		method: http.MethodGet,
		url: o.baseURL + "/workflows/" +
			url.PathEscape(string(id)) + "/status",
	})
}

// Jobs lists digests of every job
func (o *Orchestrator) Jobs(ctx context.Context) (*api.JobsListResponse, error) {
	return getJSON[api.JobsListResponse](ctx, o, request{
		method: http.MethodGet,
		url:    o.baseURL + "/workflows",
	})
}

// Archived lists digests of archived jobs, most recently finished first. A
// limit of zero leaves the choice to the server
func (o *Orchestrator) Archived(
	ctx context.Context, limit int,
) (*api.JobsListResponse, error) {
	u := o.baseURL + "/workflows/archive"
	if limit > 0 {
		u += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	return getJSON[api.JobsListResponse](ctx, o, request{
		method: http.MethodGet,
		url:    u,
	})
}

// Workflows lists the registered workflow definitions
func (o *Orchestrator) Workflows(
	ctx context.Context,
) (*api.WorkflowsListResponse, error) {
	return getJSON[api.WorkflowsListResponse](ctx, o, request{
		method: http.MethodGet,
		url:    o.baseURL + "/workflows/definitions",
	})
}

// Health fetches the service health report
func (o *Orchestrator) Health(ctx context.Context) (*api.HealthResponse, error) {
	return getJSON[api.HealthResponse](ctx, o, request{
		method: http.MethodGet,
		url:    o.baseURL + "/health",
	})
}

// Ping checks that the API answers its health endpoint
func (o *Orchestrator) Ping(ctx context.Context) error {
	_, err := o.Health(ctx)
	return err
}

func getJSON[T any](ctx context.Context, o *Orchestrator, r request) (*T, error) {
	body, err := o.http.do(ctx, r)
	if err != nil {
		return nil, err
	}
	var res T
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
