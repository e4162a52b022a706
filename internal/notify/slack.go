package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/teano-uTTu-9788/AiCan/internal/client"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// Slack posts a one-line summary of every finished job
type Slack struct {
	client *client.Slack
}

// NewSlack creates a Slack sink
func NewSlack(c *client.Slack) *Slack {
	return &Slack{client: c}
}

// Notify posts terminal events and ignores the rest
func (s *Slack) Notify(ctx context.Context, ev *api.JobEvent) error {
	if !ev.IsTerminal() || !s.client.Configured() {
		return nil
	}
	return s.client.Post(ctx, slackText(ev))
}

func slackText(ev *api.JobEvent) string {
	d := time.Duration(ev.Duration) * time.Millisecond
	if ev.Type == api.EventWorkflowError {
		return fmt.Sprintf(":x: Workflow `%s` failed (job %s): %s",
			ev.WorkflowID, ev.JobID, ev.Error)
	}
	return fmt.Sprintf(":white_check_mark: Workflow `%s` completed (job %s) in %s",
		ev.WorkflowID, ev.JobID, d.Round(time.Millisecond))
}
