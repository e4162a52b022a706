package cli_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teano-uTTu-9788/AiCan/internal/cli"
	"github.com/teano-uTTu-9788/AiCan/internal/client"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

type fakeAPI struct {
	*httptest.Server
	mu        sync.Mutex
	triggered api.Args
	health    api.HealthStatus
	limit     string
}

func (f *fakeAPI) lastTrigger() api.Args {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggered
}

func (f *fakeAPI) lastLimit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limit
}

func (f *fakeAPI) setHealth(s api.HealthStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health = s
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{health: api.HealthHealthy}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /workflows/trigger/{name}",
		func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("name") != "ci-cd-pipeline" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"error":"workflow not found"}`)
				return
			}
			var initial api.Args
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&initial))
			f.mu.Lock()
			f.triggered = initial
			f.mu.Unlock()
			writeJSON(w, api.TriggerResponse{
				JobID:      "j-1",
				WorkflowID: "ci-cd-pipeline",
				Status:     api.TriggerStarted,
			})
		},
	)
	mux.HandleFunc("GET /workflows/{id}/status",
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, api.Job{
				ID:         api.JobID(r.PathValue("id")),
				WorkflowID: "ci-cd-pipeline",
				Status:     api.JobCompleted,
			})
		},
	)
	mux.HandleFunc("GET /workflows", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, api.JobsListResponse{
			Jobs:  []*api.JobDigest{{ID: "j-1", Status: api.JobRunning}},
			Count: 1,
		})
	})
	mux.HandleFunc("GET /workflows/definitions",
		func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, api.WorkflowsListResponse{
				Workflows: []*api.Workflow{{ID: "ci-cd-pipeline"}},
				Count:     1,
			})
		},
	)
	mux.HandleFunc("GET /workflows/archive",
		func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.limit = r.URL.Query().Get("limit")
			f.mu.Unlock()
			writeJSON(w, api.JobsListResponse{
				Jobs:  []*api.JobDigest{{ID: "old-1", Status: api.JobFailed}},
				Count: 1,
			})
		},
	)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		status := f.health
		f.mu.Unlock()
		writeJSON(w, api.HealthResponse{
			Service:  "tu-orchestrator",
			Status:   status,
			Services: map[string]bool{"slack": status == api.HealthHealthy},
		})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	cmd := cli.NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestTrigger(t *testing.T) {
	f := newFakeAPI(t)

	out, err := execute(t, "--server", f.URL, "trigger", "ci-cd-pipeline",
		"--set", "branch=main",
		"-s", "attempt=3",
		"-s", "dry_run=true",
		"-s", "note=a=b",
	)
	require.NoError(t, err)

	var res api.TriggerResponse
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, api.JobID("j-1"), res.JobID)

	initial := f.lastTrigger()
	assert.Equal(t, "main", initial["branch"])
	assert.Equal(t, float64(3), initial["attempt"])
	assert.Equal(t, true, initial["dry_run"])
	assert.Equal(t, "a=b", initial["note"])
}

func TestTriggerJSONContext(t *testing.T) {
	f := newFakeAPI(t)

	_, err := execute(t, "--server", f.URL, "trigger", "ci-cd-pipeline",
		"--json", `{"repository":"org/repo","branch":"dev"}`,
		"--set", "branch=main",
	)
	require.NoError(t, err)
	initial := f.lastTrigger()
	assert.Equal(t, "org/repo", initial["repository"])
	assert.Equal(t, "main", initial["branch"])
}

func TestTriggerInvalidInput(t *testing.T) {
	f := newFakeAPI(t)

	_, err := execute(t, "--server", f.URL, "trigger", "ci-cd-pipeline",
		"--set", "novalue")
	assert.ErrorIs(t, err, cli.ErrInvalidAssignment)

	_, err = execute(t, "--server", f.URL, "trigger", "ci-cd-pipeline",
		"--json", `[1,2]`)
	assert.ErrorIs(t, err, cli.ErrInvalidContext)

	_, err = execute(t, "--server", f.URL, "trigger", "ci-cd-pipeline",
		"--json", `null`)
	assert.ErrorIs(t, err, cli.ErrInvalidContext)

	_, err = execute(t, "--server", f.URL, "trigger")
	assert.Error(t, err)
}

func TestTriggerUnknownWorkflow(t *testing.T) {
	f := newFakeAPI(t)

	_, err := execute(t, "--server", f.URL, "trigger", "missing")
	assert.ErrorIs(t, err, client.ErrHTTPError)
}

func TestStatus(t *testing.T) {
	f := newFakeAPI(t)

	out, err := execute(t, "--server", f.URL, "status", "j-9")
	require.NoError(t, err)

	var job api.Job
	require.NoError(t, json.Unmarshal([]byte(out), &job))
	assert.Equal(t, api.JobID("j-9"), job.ID)
	assert.Equal(t, api.JobCompleted, job.Status)
}

func TestListings(t *testing.T) {
	f := newFakeAPI(t)

	out, err := execute(t, "--server", f.URL, "jobs")
	require.NoError(t, err)
	var jobs api.JobsListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	assert.Equal(t, 1, jobs.Count)

	out, err = execute(t, "--server", f.URL, "workflows")
	require.NoError(t, err)
	var wfs api.WorkflowsListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &wfs))
	assert.Equal(t, api.WorkflowID("ci-cd-pipeline"), wfs.Workflows[0].ID)
}

func TestArchived(t *testing.T) {
	f := newFakeAPI(t)

	out, err := execute(t, "--server", f.URL, "archived")
	require.NoError(t, err)
	var jobs api.JobsListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs.Jobs, 1)
	assert.Equal(t, api.JobID("old-1"), jobs.Jobs[0].ID)
	assert.Empty(t, f.lastLimit())

	_, err = execute(t, "--server", f.URL, "archived", "-n", "5")
	require.NoError(t, err)
	assert.Equal(t, "5", f.lastLimit())

	_, err = execute(t, "--server", f.URL, "archived", "--limit=-1")
	assert.ErrorIs(t, err, cli.ErrInvalidLimit)
}

func TestHealthStrict(t *testing.T) {
	f := newFakeAPI(t)

	_, err := execute(t, "--server", f.URL, "health", "--strict")
	assert.NoError(t, err)

	f.setHealth(api.HealthDegraded)
	out, err := execute(t, "--server", f.URL, "health")
	assert.NoError(t, err)
	assert.Contains(t, out, `"degraded"`)

	_, err = execute(t, "--server", f.URL, "health", "--strict")
	assert.ErrorIs(t, err, cli.ErrDegraded)
}

func TestServerFromEnvironment(t *testing.T) {
	f := newFakeAPI(t)
	t.Setenv("TUCTL_SERVER", f.URL)

	_, err := execute(t, "health")
	assert.NoError(t, err)
}

func TestServerFromConfigFile(t *testing.T) {
	f := newFakeAPI(t)
	path := filepath.Join(t.TempDir(), "tuctl.yaml")
	require.NoError(t, os.WriteFile(path,
		[]byte("server: "+f.URL+"\ntimeout: 5s\n"), 0o600))

	_, err := execute(t, "--config", path, "jobs")
	assert.NoError(t, err)
}

func TestBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o600))

	_, err := execute(t, "--config", path, "jobs")
	assert.ErrorIs(t, err, cli.ErrReadConfig)
}

func TestInvalidTimeout(t *testing.T) {
	_, err := execute(t, "--timeout", "0s", "jobs")
	assert.ErrorIs(t, err, cli.ErrInvalidTimeout)

	_, err = execute(t, "--server", " ", "jobs")
	assert.ErrorIs(t, err, cli.ErrServerRequired)
}
