package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
	"github.com/teano-uTTu-9788/AiCan/pkg/log"
)

func (s *Server) triggerWorkflow(c *gin.Context) {
	name := c.Param("name")

	body, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	initial, err := parseContext(body)
	if err != nil {
		slog.Warn("Invalid trigger body",
			slog.String("workflow", name),
			log.Error(err))
		writeError(c, http.StatusBadRequest, err)
		return
	}

	job, err := s.engine.TriggerWorkflow(c.Request.Context(), name, initial)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusOK, api.TriggerResponse{
		JobID:      job.ID,
		WorkflowID: job.WorkflowID,
		Status:     api.TriggerStarted,
	})
}

func (s *Server) getJobStatus(c *gin.Context) {
	id := api.JobID(c.Param("jobID"))
	job, err := s.engine.GetJob(id)
	if err != nil && s.archive != nil && engine.IsNotFound(err) {
		job, err = s.archivedJob(c, id)
	}
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) listJobs(c *gin.Context) {
	jobs := s.engine.ListJobs()
	digests := make([]*api.JobDigest, 0, len(jobs))
	for _, j := range jobs {
		digests = append(digests, j.Digest())
	}
	c.JSON(http.StatusOK, api.JobsListResponse{
		Jobs:  digests,
		Count: len(digests),
	})
}

func (s *Server) listDefinitions(c *gin.Context) {
	wfs := s.engine.ListWorkflows()
	c.JSON(http.StatusOK, api.WorkflowsListResponse{
		Workflows: wfs,
		Count:     len(wfs),
	})
}

// parseContext decodes a trigger body into an initial job context. An empty
// body or a JSON null yields an empty context
func parseContext(body []byte) (api.Args, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return api.Args{}, nil
	}
	var res api.Args
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBody, err)
	}
	if res == nil {
		return api.Args{}, nil
	}
	return res, nil
}
