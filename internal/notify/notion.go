package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/teano-uTTu-9788/AiCan/internal/client"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// Notion logs every finished job as a page in a Notion database
type Notion struct {
	client *client.Notion
}

// Context keys copied onto the page when present
var notionContextFields = map[string]api.Name{
	"Repository":  "repository",
	"Branch":      "branch",
	"Commit":      "commit",
	"Environment": "environment",
	"Deployment":  "deployment_url",
}

// NewNotion creates a Notion sink
func NewNotion(c *client.Notion) *Notion {
	return &Notion{client: c}
}

// Notify records terminal events and ignores the rest
func (n *Notion) Notify(ctx context.Context, ev *api.JobEvent) error {
	if !ev.IsTerminal() || !n.client.Configured() {
		return nil
	}
	title := fmt.Sprintf("%s %s", ev.WorkflowID, ev.Status)
	_, err := n.client.CreatePage(ctx, title, notionFields(ev))
	return err
}

func notionFields(ev *api.JobEvent) map[string]string {
	res := map[string]string{
		"Job ID":      string(ev.JobID),
		"Status":      string(ev.Status),
		"Duration ms": strconv.FormatInt(ev.Duration, 10),
	}
	if ev.Error != "" {
		res["Error"] = ev.Error
	}
	if ev.Job == nil {
		return res
	}
	for prop, key := range notionContextFields {
		if v := ev.Job.Context.GetString(key, ""); v != "" {
			res[prop] = v
		}
	}
	return res
}
