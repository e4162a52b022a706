package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// MetricsSource produces a point-in-time view of the collected metrics
type MetricsSource interface {
	Snapshot(ctx context.Context) (*api.MetricsResponse, error)
}

// SetMetrics exposes the source on GET /metrics. It must be called before
// SetupRoutes
func (s *Server) SetMetrics(m MetricsSource) {
	s.metrics = m
}

func (s *Server) handleMetrics(c *gin.Context) {
	res, err := s.metrics.Snapshot(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
