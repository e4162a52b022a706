package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/teano-uTTu-9788/AiCan/internal/archive"
	"github.com/teano-uTTu-9788/AiCan/internal/config"
	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// Server implements the HTTP API server for the orchestrator
type Server struct {
	engine  *engine.Engine
	config  *config.Config
	health  *HealthChecker
	archive Archive
	metrics MetricsSource
	sockets map[*Client]struct{}
	mu      sync.Mutex
}

var (
	ErrSignature          = errors.New("invalid webhook signature")
	ErrMissingSignature   = errors.New("missing webhook signature")
	ErrSecretNotSet       = errors.New("webhook secret not configured")
	ErrInvalidBody        = errors.New("request body must be a JSON object")
	ErrUnknownEventStatus = errors.New("unknown event status")
	ErrNoArchive          = errors.New("job archive not configured")
	ErrInvalidLimit       = errors.New("limit must be a positive integer")
)

// NewServer creates a new HTTP API server. The health checker may be nil,
// in which case only the engine itself is reported
func NewServer(
	eng *engine.Engine, cfg *config.Config, health *HealthChecker,
) *Server {
	if cfg.GitHubWebhookSecret == "" {
		slog.Warn("GITHUB_WEBHOOK_SECRET is not set, " +
			"GitHub webhooks will not be verified")
	}
	return &Server{
		engine:  eng,
		config:  cfg,
		health:  health,
		sockets: map[*Client]struct{}{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods", "GET, POST, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization, X-Hub-Signature-256, X-GitHub-Event",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)
	router.GET("/engine", s.handleEngine)
	if s.metrics != nil {
		router.GET("/metrics", s.handleMetrics)
	}

	wf := router.Group("/workflows")
	{
		wf.GET("", s.listJobs)
		wf.GET("/definitions", s.listDefinitions)
		wf.GET("/archive", s.listArchived)
		wf.GET("/events", s.handleWebSocket)
		wf.POST("/trigger/:name", s.triggerWorkflow)
		wf.GET("/:jobID/status", s.getJobStatus)
	}

	hooks := router.Group("/webhooks")
	{
		hooks.POST("/github", s.handleGitHub)
		hooks.POST("/n8n/:workflowID", s.handleN8n)
	}

	return router
}

func (s *Server) handleEngine(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[c] = struct{}{}
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}

// statusFor maps engine errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case engine.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrJobTerminal):
		return http.StatusConflict
	case errors.Is(err, archive.ErrNotArchived),
		errors.Is(err, archive.ErrNoIndex), errors.Is(err, ErrNoArchive):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrValidation), errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrEngineStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
