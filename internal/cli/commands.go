package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

var (
	ErrInvalidAssignment = errors.New("expected key=value")
	ErrInvalidContext    = errors.New("context must be a JSON object")
	ErrDegraded          = errors.New("orchestrator is degraded")
	ErrInvalidLimit      = errors.New("limit must not be negative")
)

func (c *cli) triggerCommand() *cobra.Command {
	var sets []string
	var raw string

	cmd := &cobra.Command{
		Use:   "trigger <workflow>",
		Short: "Start a workflow",
		Long: "Start a workflow. Context values given with --set are decoded " +
			"as JSON when possible and sent as strings otherwise",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initial, err := buildContext(raw, sets)
			if err != nil {
				return err
			}
			res, err := c.client.Trigger(cmd.Context(), args[0], initial)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil,
		"context entry as key=value (repeatable)")
	cmd.Flags().StringVar(&raw, "json", "",
		"initial context as a JSON object")
	return cmd
}

func (c *cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's status, context and step history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := c.client.Job(cmd.Context(), api.JobID(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd, job)
		},
	}
}

func (c *cli) jobsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.client.Jobs(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func (c *cli) archivedCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "archived",
		Short: "List archived jobs, most recently finished first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
			}
			res, err := c.client.Archived(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0,
		"maximum number of jobs (0 uses the server default)")
	return cmd
}

func (c *cli) workflowsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List registered workflow definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.client.Workflows(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func (c *cli) healthCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show service health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if strict && res.Status != api.HealthHealthy {
				return fmt.Errorf("%w: %s", ErrDegraded, res.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false,
		"exit with an error unless every service is healthy")
	return cmd
}

func buildContext(raw string, sets []string) (api.Args, error) {
	res := api.Args{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &res); err != nil || res == nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidContext, raw)
		}
	}
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAssignment, s)
		}
		res[api.Name(k)] = parseValue(v)
	}
	return res, nil
}

func parseValue(v string) any {
	if gjson.Valid(v) {
		return gjson.Parse(v).Value()
	}
	return v
}
