package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teano-uTTu-9788/AiCan/internal/client"
	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

func (a *actions) deployTo(env string) engine.ActionFunc {
	return func(ctx context.Context, args api.Args) (api.Args, error) {
		repo := args.GetString(KeyRepository, "")
		if repo == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, KeyRepository)
		}
		ref := args.GetString(KeyCommit, "")
		if ref == "" {
			ref = args.GetString(KeyBranch, "")
		}
		if ref == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, KeyBranch)
		}

		dep, err := a.svc.Vercel.CreateDeployment(ctx, client.DeploymentRequest{
			Repository: repo,
			Ref:        ref,
			Target:     env,
		})
		if err != nil {
			return nil, err
		}

		slog.Info("Deployment created",
			slog.String("deployment_id", dep.ID),
			slog.String("environment", env))
		return api.Args{
			KeyEnvironment:     env,
			KeyDeploymentID:    dep.ID,
			KeyDeploymentURL:   dep.URL,
			KeyDeploymentState: dep.State,
			KeyDeploymentReady: dep.State == client.StateReady,
		}, nil
	}
}

// validateDeployment polls the deployment at a fixed interval until it is
// ready, fails, or the maximum wait elapses
func (a *actions) validateDeployment(
	ctx context.Context, args api.Args,
) (api.Args, error) {
	id := args.GetString(KeyDeploymentID, "")
	if id == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, KeyDeploymentID)
	}

	deadline := time.Now().Add(a.cfg.MaxWait)
	for {
		dep, err := a.svc.Vercel.GetDeployment(ctx, id)
		if err != nil {
			return nil, err
		}

		switch dep.State {
		case client.StateReady:
			res := api.Args{
				KeyDeploymentState: dep.State,
				KeyDeploymentReady: true,
			}
			if dep.URL != "" {
				res[KeyDeploymentURL] = dep.URL
			}
			return res, nil
		case client.StateError, client.StateCanceled:
			return nil, fmt.Errorf("%w: %s is %s",
				ErrDeploymentFailed, id, dep.State)
		}

		if time.Now().Add(a.cfg.PollInterval).After(deadline) {
			return nil, fmt.Errorf("%w: %s still %s after %s",
				ErrDeploymentTimeout, id, dep.State, a.cfg.MaxWait)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.cfg.PollInterval):
		}
	}
}

func (a *actions) monitorDeployment(
	ctx context.Context, args api.Args,
) (api.Args, error) {
	id := args.GetString(KeyDeploymentID, "")
	if id == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, KeyDeploymentID)
	}
	dep, err := a.svc.Vercel.GetDeployment(ctx, id)
	if err != nil {
		return nil, err
	}
	healthy := dep.State == client.StateReady
	if !healthy {
		slog.Warn("Deployment unhealthy",
			slog.String("deployment_id", id),
			slog.String("state", dep.State))
	}
	return api.Args{
		KeyDeploymentState:   dep.State,
		KeyMonitoringHealthy: healthy,
	}, nil
}
