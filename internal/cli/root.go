// Package cli implements tuctl, the command line client for a running
// orchestrator
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	app "github.com/teano-uTTu-9788/AiCan"
	"github.com/teano-uTTu-9788/AiCan/internal/client"
)

// Configuration keys, settable by flag, TUCTL_* environment variable, or
// the config file
const (
	KeyServer  = "server"
	KeyTimeout = "timeout"
	KeyConfig  = "config"
)

const (
	DefaultServer  = "http://localhost:8080"
	DefaultTimeout = 30 * time.Second

	envPrefix  = "TUCTL"
	configName = ".tuctl"
)

var (
	ErrServerRequired = errors.New("server address required")
	ErrInvalidTimeout = errors.New("timeout must be positive")
	ErrReadConfig     = errors.New("failed to read config file")
)

type cli struct {
	v      *viper.Viper
	client *client.Orchestrator
}

// NewRootCommand builds the tuctl command tree
func NewRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "tuctl",
		Short:         "Control a running " + app.Name,
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.configure(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String(KeyServer, DefaultServer, "orchestrator base URL")
	flags.Duration(KeyTimeout, DefaultTimeout, "request timeout")
	flags.String(KeyConfig, "", "config file (default $HOME/.tuctl.yaml)")

	root.AddCommand(
		c.triggerCommand(),
		c.statusCommand(),
		c.jobsCommand(),
		c.archivedCommand(),
		c.workflowsCommand(),
		c.healthCommand(),
	)
	return root
}

func (c *cli) configure(cmd *cobra.Command) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if err := c.readConfig(); err != nil {
		return err
	}

	server := strings.TrimSpace(c.v.GetString(KeyServer))
	if server == "" {
		return ErrServerRequired
	}
	timeout := c.v.GetDuration(KeyTimeout)
	if timeout <= 0 {
		return fmt.Errorf("%w, got %s", ErrInvalidTimeout, timeout)
	}

	h := client.NewHTTPClient(timeout, "tuctl/"+app.Version)
	c.client = client.NewOrchestrator(h, server)
	return nil
}

func (c *cli) readConfig() error {
	if file := c.v.GetString(KeyConfig); file != "" {
		c.v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		c.v.SetConfigName(configName)
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath(home)
		c.v.AddConfigPath(filepath.Join(home, ".config"))
	}

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrReadConfig, err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
