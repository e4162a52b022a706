package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teano-uTTu-9788/AiCan/internal/client"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

const userAgent = "tu-orchestrator-test"

func newHTTP() *client.HTTPClient {
	return client.NewHTTPClient(5*time.Second, userAgent)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var res map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&res))
	return res
}

func TestVercelCreateDeployment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v13/deployments", r.URL.Path)
			assert.Equal(t, "team-1", r.URL.Query().Get("teamId"))
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, userAgent, r.Header.Get("User-Agent"))

			body := decodeBody(t, r)
			assert.Equal(t, "site", body["name"])
			assert.Equal(t, "production", body["target"])
			src := body["gitSource"].(map[string]any)
			assert.Equal(t, "org/repo", src["repo"])
			assert.Equal(t, "release/1.0", src["ref"])

			_, _ = io.WriteString(w,
				`{"id":"dpl_1","url":"site-abc.vercel.app","readyState":"QUEUED"}`)
		},
	))
	defer server.Close()

	v := client.NewVercel(newHTTP(), client.VercelConfig{
		BaseURL: server.URL + "/",
		Token:   "tok",
		TeamID:  "team-1",
		Project: "site",
	})
	dep, err := v.CreateDeployment(context.Background(),
		client.DeploymentRequest{
			Repository: "org/repo",
			Ref:        "release/1.0",
			Target:     "production",
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "dpl_1", dep.ID)
	assert.Equal(t, "https://site-abc.vercel.app", dep.URL)
	assert.Equal(t, client.StateQueued, dep.State)
}

func TestVercelPreviewOmitsTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			body := decodeBody(t, r)
			assert.NotContains(t, body, "target")
			_, _ = io.WriteString(w, `{"id":"dpl_2","readyState":"BUILDING"}`)
		},
	))
	defer server.Close()

	v := client.NewVercel(newHTTP(), client.VercelConfig{
		BaseURL: server.URL, Token: "tok",
	})
	dep, err := v.CreateDeployment(context.Background(),
		client.DeploymentRequest{Target: "preview"},
	)
	require.NoError(t, err)
	assert.Equal(t, client.StateBuilding, dep.State)
	assert.Empty(t, dep.URL)
}

func TestVercelGetDeployment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/v13/deployments/dpl_1", r.URL.Path)
			_, _ = io.WriteString(w,
				`{"id":"dpl_1","url":"https://x.vercel.app","status":"READY"}`)
		},
	))
	defer server.Close()

	v := client.NewVercel(newHTTP(), client.VercelConfig{
		BaseURL: server.URL, Token: "tok",
	})
	dep, err := v.GetDeployment(context.Background(), "dpl_1")
	require.NoError(t, err)
	assert.Equal(t, client.StateReady, dep.State)
	assert.Equal(t, "https://x.vercel.app", dep.URL)
	assert.True(t, client.IsTerminalState(dep.State))
	assert.False(t, client.IsTerminalState(client.StateBuilding))
}

func TestVercelErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/bad") {
				_, _ = io.WriteString(w, `{"nope":true}`)
				return
			}
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"code":"forbidden"}}`)
		},
	))
	defer server.Close()

	v := client.NewVercel(newHTTP(), client.VercelConfig{
		BaseURL: server.URL, Token: "tok",
	})
	_, err := v.GetDeployment(context.Background(), "x")
	assert.ErrorIs(t, err, client.ErrHTTPError)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "forbidden")

	_, err = v.GetDeployment(context.Background(), "bad")
	assert.ErrorIs(t, err, client.ErrBadResponse)

	assert.Error(t, v.Ping(context.Background()))

	unset := client.NewVercel(newHTTP(), client.VercelConfig{})
	assert.False(t, unset.Configured())
	_, err = unset.CreateDeployment(context.Background(),
		client.DeploymentRequest{})
	assert.ErrorIs(t, err, client.ErrNotConfigured)
	assert.ErrorIs(t, unset.Ping(context.Background()), client.ErrNotConfigured)
}

func TestN8nTriggerWebhook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/webhook/run-tests":
				assert.Equal(t, "key", r.Header.Get("X-N8N-API-KEY"))
				body := decodeBody(t, r)
				assert.Equal(t, "main", body["branch"])
				_, _ = io.WriteString(w, `{"passed":true}`)
			case "/healthz":
				_, _ = io.WriteString(w, `{"status":"ok"}`)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		},
	))
	defer server.Close()

	n := client.NewN8n(newHTTP(), server.URL, "key")
	res, err := n.TriggerWebhook(context.Background(), "/run-tests",
		api.Args{"branch": "main"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"passed":true}`, string(res))
	assert.NoError(t, n.Ping(context.Background()))

	_, err = n.TriggerWebhook(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, client.ErrHTTPError)

	unset := client.NewN8n(newHTTP(), "", "")
	_, err = unset.TriggerWebhook(context.Background(), "x", nil)
	assert.ErrorIs(t, err, client.ErrNotConfigured)
}

func TestNotionCreatePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1/users/me" {
				_, _ = io.WriteString(w, `{"object":"user"}`)
				return
			}
			assert.Equal(t, "/v1/pages", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.NotEmpty(t, r.Header.Get("Notion-Version"))

			body := decodeBody(t, r)
			parent := body["parent"].(map[string]any)
			assert.Equal(t, "db-1", parent["database_id"])
			props := body["properties"].(map[string]any)
			assert.Contains(t, props, "Name")
			assert.Contains(t, props, "Status")
			_, _ = io.WriteString(w, `{"id":"page-1"}`)
		},
	))
	defer server.Close()

	n := client.NewNotion(newHTTP(), server.URL, "secret", "db-1")
	id, err := n.CreatePage(context.Background(), "Job failed",
		map[string]string{"Status": "failed"})
	require.NoError(t, err)
	assert.Equal(t, "page-1", id)
	assert.NoError(t, n.Ping(context.Background()))

	unset := client.NewNotion(newHTTP(), server.URL, "secret", "")
	_, err = unset.CreatePage(context.Background(), "x", nil)
	assert.ErrorIs(t, err, client.ErrNotConfigured)
}

func TestSlackPost(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			body := decodeBody(t, r)
			got, _ = body["text"].(string)
			_, _ = io.WriteString(w, "ok")
		},
	))
	defer server.Close()

	s := client.NewSlack(newHTTP(), server.URL)
	require.NoError(t, s.Post(context.Background(), "deployed"))
	assert.Equal(t, "deployed", got)
	assert.NoError(t, s.Ping(context.Background()))

	unset := client.NewSlack(newHTTP(), "")
	assert.ErrorIs(t, unset.Post(context.Background(), "x"),
		client.ErrNotConfigured)
	assert.ErrorIs(t, unset.Ping(context.Background()),
		client.ErrNotConfigured)
}

func TestHTTPClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		},
	))
	defer server.Close()

	h := client.NewHTTPClient(20*time.Millisecond, userAgent)
	s := client.NewSlack(h, server.URL)
	assert.Error(t, s.Post(context.Background(), "slow"))
}
