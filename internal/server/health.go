package server

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	aican "github.com/teano-uTTu-9788/AiCan"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
	"github.com/teano-uTTu-9788/AiCan/pkg/log"
)

type (
	// Service is an external dependency whose reachability is reported
	Service interface {
		Configured() bool
		Ping(ctx context.Context) error
	}

	// HealthChecker periodically pings the integrated services and caches
	// the outcome for the health endpoint
	HealthChecker struct {
		services map[string]Service
		results  map[string]bool
		ctx      context.Context
		cancel   context.CancelFunc
		interval time.Duration
		wg       sync.WaitGroup
		mu       sync.RWMutex
	}
)

const healthCheckTimeout = 3 * time.Second

// NewHealthChecker creates a health checker over the named services
func NewHealthChecker(
	services map[string]Service, interval time.Duration,
) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())
	return &HealthChecker{
		services: services,
		results:  map[string]bool{},
		ctx:      ctx,
		cancel:   cancel,
		interval: interval,
	}
}

// Start begins checking in the background
func (h *HealthChecker) Start() {
	h.wg.Go(h.healthCheckLoop)
}

// Stop ends the background loop and waits for it to exit
func (h *HealthChecker) Stop() {
	h.cancel()
	h.wg.Wait()
}

// Check pings every service once, concurrently, and records the results
func (h *HealthChecker) Check(ctx context.Context) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	res := make(map[string]bool, len(h.services))

	live := make(map[string]Service, len(h.services))
	for name, svc := range h.services {
		if svc.Configured() {
			live[name] = svc
		} else {
			res[name] = false
		}
	}

	for name, svc := range live {
		wg.Go(func() {
			ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()
			err := svc.Ping(ctx)
			if err != nil {
				slog.Warn("Service health check failed",
					slog.String("service", name),
					log.Error(err))
			}
			mu.Lock()
			res[name] = err == nil
			mu.Unlock()
		})
	}
	wg.Wait()

	h.mu.Lock()
	h.results = res
	h.mu.Unlock()
}

// Services returns the latest result for every service
func (h *HealthChecker) Services() map[string]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return maps.Clone(h.results)
}

// Healthy reports whether every configured service answered its last ping
func (h *HealthChecker) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for name, svc := range h.services {
		if svc.Configured() && !h.results[name] {
			return false
		}
	}
	return true
}

func (h *HealthChecker) healthCheckLoop() {
	slog.Info("Health checker started",
		slog.Duration("interval", h.interval))
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Check(h.ctx)

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.Check(h.ctx)
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	res := api.HealthResponse{
		Service:  aican.Name,
		Version:  aican.Version,
		Status:   api.HealthHealthy,
		Services: map[string]bool{},
	}
	if s.health != nil {
		res.Services = s.health.Services()
		if !s.health.Healthy() {
			res.Status = api.HealthDegraded
		}
	}
	c.JSON(http.StatusOK, res)
}
