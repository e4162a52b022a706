package actions

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
	"github.com/teano-uTTu-9788/AiCan/pkg/log"
)

// Error categories assigned by analyze_error
const (
	CategoryTimeout = "timeout"
	CategoryNetwork = "network"
	CategoryClient  = "client"
	CategoryTest    = "test"
	CategoryBuild   = "build"
	CategoryUnknown = "unknown"
)

var categories = []struct {
	name      string
	markers   []string
	retryable bool
}{
	{CategoryTimeout, []string{"timeout", "deadline exceeded"}, true},
	{CategoryNetwork, []string{
		"connection refused", "connection reset", "no such host",
		"unavailable", "HTTP 502", "HTTP 503", "HTTP 504", "HTTP 500",
	}, true},
	{CategoryClient, []string{
		"HTTP 400", "HTTP 401", "HTTP 403", "HTTP 404", "not configured",
	}, false},
	{CategoryTest, []string{"test"}, false},
	{CategoryBuild, []string{"build", "compile"}, false},
}

func (a *actions) analyzeError(
	_ context.Context, args api.Args,
) (api.Args, error) {
	msg := args.GetString(KeyError, "")
	category, retryable := classify(msg)
	return api.Args{
		KeyErrorCategory:  category,
		KeyRetryable:      retryable,
		KeyShouldEscalate: !retryable,
	}, nil
}

func classify(msg string) (string, bool) {
	lower := strings.ToLower(msg)
	for _, c := range categories {
		for _, m := range c.markers {
			if strings.Contains(lower, strings.ToLower(m)) {
				return c.name, c.retryable
			}
		}
	}
	return CategoryUnknown, false
}

// retryFailedStep invokes the action named by failed_action once more. A
// failed retry is reported in the result rather than as an error, so the
// workflow can decide to escalate
func (a *actions) retryFailedStep(
	ctx context.Context, args api.Args,
) (api.Args, error) {
	name := api.ActionName(args.GetString(KeyFailedAction, ""))
	if name == "" || name == api.ActionRetryFailedStep {
		return api.Args{KeyRetryAttempted: false}, nil
	}

	res, err := a.registry.Invoke(ctx, name, args)
	if err != nil {
		slog.Warn("Retry failed",
			log.Action(name),
			log.Error(err))
		return api.Args{
			KeyRetryAttempted: true,
			KeyRetrySucceeded: false,
			KeyRetryError:     err.Error(),
		}, nil
	}

	return res.Merge(api.Args{
		KeyRetryAttempted: true,
		KeyRetrySucceeded: true,
	}), nil
}
