package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"

	app "github.com/teano-uTTu-9788/AiCan"
	"github.com/teano-uTTu-9788/AiCan/internal/actions"
	"github.com/teano-uTTu-9788/AiCan/internal/archive"
	"github.com/teano-uTTu-9788/AiCan/internal/client"
	"github.com/teano-uTTu-9788/AiCan/internal/config"
	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/internal/notify"
	"github.com/teano-uTTu-9788/AiCan/internal/server"
	"github.com/teano-uTTu-9788/AiCan/internal/telemetry"
	"github.com/teano-uTTu-9788/AiCan/internal/workflows"
	"github.com/teano-uTTu-9788/AiCan/pkg/log"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

type tu struct {
	cfg        *config.Config
	services   actions.Services
	archives   *archive.Stores
	metrics    *telemetry.Metrics
	engine     *engine.Engine
	health     *server.HealthChecker
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var (
	ErrOpenArchive      = errors.New("failed to open job archive")
	ErrRegisterActions  = errors.New("failed to register actions")
	ErrLoadWorkflows    = errors.New("failed to load workflows")
	ErrInvalidWorkflows = errors.New("failed to register workflows")
)

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &tu{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *tu) run() error {
	if err := s.initializeArchive(); err != nil {
		return err
	}

	if err := s.initializeEngine(); err != nil {
		_ = s.archives.Close()
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *tu) setupLogging() {
	level := log.ParseLevel(s.cfg.LogLevel)
	logger := log.NewWithLevel(app.Name, s.cfg.Environment, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Tu Orchestrator starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("environment", s.cfg.Environment),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort),
		slog.String("workflows_file", s.cfg.WorkflowsFile),
		slog.Bool("vercel", s.cfg.VercelToken != ""),
		slog.Bool("n8n", s.cfg.N8nBaseURL != ""),
		slog.Bool("notion", s.cfg.NotionToken != ""),
		slog.Bool("slack", s.cfg.SlackWebhookURL != ""),
		slog.Bool("metrics", s.cfg.MetricsEnabled),
		slog.String("archive_redis_addr", s.cfg.Archive.RedisAddr),
		slog.String("archive_bucket_url", s.cfg.Archive.BucketURL))
}

func (s *tu) initializeArchive() error {
	stores, err := archive.Open(context.Background(), s.cfg.Archive)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}
	s.archives = stores
	return nil
}

func (s *tu) initializeEngine() error {
	h := client.NewHTTPClient(
		s.cfg.HTTPClientTimeout, app.Name+"/"+app.Version,
	)
	s.services = actions.Services{
		Vercel: client.NewVercel(h, client.VercelConfig{
			BaseURL: s.cfg.VercelAPIURL,
			Token:   s.cfg.VercelToken,
			TeamID:  s.cfg.VercelTeamID,
			Project: s.cfg.VercelProject,
		}),
		N8n: client.NewN8n(h, s.cfg.N8nBaseURL, s.cfg.N8nAPIKey),
		Notion: client.NewNotion(h,
			s.cfg.NotionAPIURL, s.cfg.NotionToken, s.cfg.NotionDatabaseID,
		),
		Slack: client.NewSlack(h, s.cfg.SlackWebhookURL),
	}

	registry := engine.NewActionRegistry()
	err := actions.Register(registry, s.services, actions.Config{
		PollInterval: s.cfg.DeployPollInterval,
		MaxWait:      s.cfg.DeployMaxWait,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRegisterActions, err)
	}

	sinks := append([]engine.Notifier{
		notify.NewSlack(s.services.Slack),
		notify.NewNotion(s.services.Notion),
	}, s.archives.Notifiers()...)

	deps := engine.Dependencies{
		Actions:  registry,
		Notifier: notify.NewMulti(sinks...),
	}
	if s.cfg.MetricsEnabled {
		s.metrics = telemetry.New(app.Name, app.Version)
		otel.SetMeterProvider(s.metrics.Provider())
		deps.Meter = s.metrics.Provider()
	}
	s.engine = engine.New(s.cfg, deps)

	wfs, err := workflows.Load(s.cfg.WorkflowsFile)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadWorkflows, err)
	}
	if err := workflows.Register(s.engine, wfs); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkflows, err)
	}
	return nil
}

func (s *tu) startServer() {
	s.health = server.NewHealthChecker(map[string]server.Service{
		"vercel": s.services.Vercel,
		"n8n":    s.services.N8n,
		"notion": s.services.Notion,
		"slack":  s.services.Slack,
	}, s.cfg.HealthCheckInterval)
	s.health.Start()

	s.apiServer = server.NewServer(s.engine, s.cfg, s.health)
	s.apiServer.SetArchive(s.archives)
	if s.metrics != nil {
		s.apiServer.SetMetrics(s.metrics)
	}
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *tu) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()
	s.health.Stop()

	if err := s.engine.Stop(); err != nil {
		slog.Error("Engine shutdown failed", log.Error(err))
	}

	if err := s.archives.Close(); err != nil {
		slog.Error("Archive close failed", log.Error(err))
	}

	if s.metrics != nil {
		if err := s.metrics.Shutdown(ctx); err != nil {
			slog.Error("Metrics shutdown failed", log.Error(err))
		}
	}

	slog.Info("Server exited")
}
