package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

func (a *actions) sendNotification(
	ctx context.Context, args api.Args,
) (api.Args, error) {
	if !a.svc.Slack.Configured() {
		slog.Debug("Slack not configured, notification skipped")
		return api.Args{KeyNotificationSent: false}, nil
	}
	if err := a.svc.Slack.Post(ctx, summarize(args)); err != nil {
		return nil, err
	}
	return api.Args{KeyNotificationSent: true}, nil
}

func (a *actions) escalateToHuman(
	ctx context.Context, args api.Args,
) (api.Args, error) {
	if !a.svc.Slack.Configured() && !a.svc.Notion.Configured() {
		return nil, ErrNoEscalationChannel
	}

	res := api.Args{KeyEscalated: true}
	var errs []error
	if a.svc.Notion.Configured() {
		id, err := a.svc.Notion.CreatePage(ctx,
			"Escalation: "+describeFailure(args), escalationFields(args))
		if err != nil {
			errs = append(errs, err)
		} else {
			res[KeyEscalationPageID] = id
		}
	}
	if a.svc.Slack.Configured() {
		msg := ":rotating_light: Human attention needed\n" + summarize(args)
		if err := a.svc.Slack.Post(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return res, nil
}

func summarize(args api.Args) string {
	var sb strings.Builder
	if msg := args.GetString(KeyMessage, ""); msg != "" {
		sb.WriteString(msg)
		sb.WriteString("\n")
	}
	repo := args.GetString(KeyRepository, "")
	branch := args.GetString(KeyBranch, "")
	if repo != "" || branch != "" {
		fmt.Fprintf(&sb, "Repository: %s@%s\n", repo, branch)
	}
	if env := args.GetString(KeyEnvironment, ""); env != "" {
		fmt.Fprintf(&sb, "Environment: %s\n", env)
	}
	if url := args.GetString(KeyDeploymentURL, ""); url != "" {
		fmt.Fprintf(&sb, "Deployment: %s (%s)\n",
			url, args.GetString(KeyDeploymentState, "unknown"))
	}
	if errMsg := args.GetString(KeyError, ""); errMsg != "" {
		fmt.Fprintf(&sb, "Error: %s\n", errMsg)
	}
	if sb.Len() == 0 {
		return "Workflow update"
	}
	return strings.TrimRight(sb.String(), "\n")
}

func describeFailure(args api.Args) string {
	if action := args.GetString(KeyFailedAction, ""); action != "" {
		return action
	}
	if repo := args.GetString(KeyRepository, ""); repo != "" {
		return repo
	}
	return "workflow failure"
}

func escalationFields(args api.Args) map[string]string {
	res := map[string]string{}
	add := func(prop string, key api.Name) {
		if v := args.GetString(key, ""); v != "" {
			res[prop] = v
		}
	}
	add("Repository", KeyRepository)
	add("Branch", KeyBranch)
	add("Error", KeyError)
	add("Category", KeyErrorCategory)
	add("Retry Error", KeyRetryError)
	return res
}
