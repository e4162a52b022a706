package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// Archive reads back jobs that have been evicted from the engine's tracker
type Archive interface {
	Get(
		ctx context.Context, id api.JobID, wfIDs []api.WorkflowID,
	) (*api.Job, error)
	Recent(ctx context.Context, limit int) ([]*api.JobDigest, error)
}

const defaultArchiveLimit = 50

// SetArchive enables the archive fallback for job status lookups and the
// archived job listing. It must be called before SetupRoutes
func (s *Server) SetArchive(a Archive) {
	s.archive = a
}

func (s *Server) archivedJob(c *gin.Context, id api.JobID) (*api.Job, error) {
	wfs := s.engine.ListWorkflows()
	wfIDs := make([]api.WorkflowID, 0, len(wfs))
	for _, wf := range wfs {
		wfIDs = append(wfIDs, wf.ID)
	}
	return s.archive.Get(c.Request.Context(), id, wfIDs)
}

func (s *Server) listArchived(c *gin.Context) {
	if s.archive == nil {
		writeError(c, statusFor(ErrNoArchive), ErrNoArchive)
		return
	}

	limit := defaultArchiveLimit
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, ErrInvalidLimit)
			return
		}
		limit = n
	}

	jobs, err := s.archive.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, api.JobsListResponse{
		Jobs:  jobs,
		Count: len(jobs),
	})
}
