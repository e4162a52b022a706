package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type (
	// Config holds configuration settings for the orchestrator
	Config struct {
		// API Server
		APIHost     string
		APIPort     int
		LogLevel    string
		Environment string

		// Workflows
		WorkflowsFile string

		// GitHub
		GitHubWebhookSecret string

		// Vercel
		VercelToken   string
		VercelTeamID  string
		VercelProject string
		VercelAPIURL  string

		// n8n
		N8nBaseURL string
		N8nAPIKey  string

		// Notion
		NotionToken      string
		NotionDatabaseID string
		NotionAPIURL     string

		// Slack
		SlackWebhookURL string

		// Archiving
		Archive ArchiveConfig

		// Deployment validation
		DeployMaxWait      time.Duration
		DeployPollInterval time.Duration

		// Metrics
		MetricsEnabled bool

		// Engine
		HTTPClientTimeout   time.Duration
		HealthCheckInterval time.Duration
		ShutdownTimeout     time.Duration
	}

	// ArchiveConfig locates the stores that terminal jobs are copied to.
	// Either store is disabled when its address is empty
	ArchiveConfig struct {
		RedisAddr     string
		RedisPassword string
		RedisPrefix   string
		BucketURL     string
		BucketPrefix  string
		RedisDB       int
	}
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535
	MaxRedisDB     = 15

	DefaultShutdownTimeout     = 10 * time.Second
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultHTTPClientTimeout   = 30 * time.Second
	DefaultDeployMaxWait       = 10 * time.Minute
	DefaultDeployPollInterval  = 10 * time.Second

	DefaultVercelAPIURL = "https://api.vercel.com"
	DefaultNotionAPIURL = "https://api.notion.com"
	DefaultRedisPrefix  = "tu"
	DefaultBucketPrefix = "jobs"
)

var (
	ErrInvalidAPIPort         = errors.New("invalid API port")
	ErrInvalidShutdownTimeout = errors.New(
		"shutdown timeout must be positive",
	)
	ErrInvalidHealthInterval = errors.New(
		"health check interval must be positive",
	)
	ErrInvalidClientTimeout = errors.New(
		"HTTP client timeout must be positive",
	)
	ErrInvalidDeployPoll = errors.New(
		"deploy poll interval must be positive",
	)
	ErrDeployWaitTooSmall = errors.New(
		"deploy max wait must be >= deploy poll interval",
	)
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidBool     = errors.New("invalid boolean")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// server, the SaaS clients, and deployment validation
func NewDefaultConfig() *Config {
	return &Config{
		APIPort:      DefaultAPIPort,
		APIHost:      DefaultAPIHost,
		LogLevel:     "info",
		Environment:  EnvDevelopment,
		VercelAPIURL: DefaultVercelAPIURL,
		NotionAPIURL: DefaultNotionAPIURL,
		Archive: ArchiveConfig{
			RedisPrefix:  DefaultRedisPrefix,
			BucketPrefix: DefaultBucketPrefix,
		},
		MetricsEnabled:      true,
		DeployMaxWait:       DefaultDeployMaxWait,
		DeployPollInterval:  DefaultDeployPollInterval,
		HTTPClientTimeout:   DefaultHTTPClientTimeout,
		HealthCheckInterval: DefaultHealthCheckInterval,
		ShutdownTimeout:     DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	loadEnvString("API_HOST", &c.APIHost)
	loadEnvString("LOG_LEVEL", &c.LogLevel)
	loadEnvString("ENVIRONMENT", &c.Environment)
	loadEnvString("WORKFLOWS_FILE", &c.WorkflowsFile)
	loadEnvString("GITHUB_WEBHOOK_SECRET", &c.GitHubWebhookSecret)
	loadEnvString("VERCEL_TOKEN", &c.VercelToken)
	loadEnvString("VERCEL_TEAM_ID", &c.VercelTeamID)
	loadEnvString("VERCEL_PROJECT", &c.VercelProject)
	loadEnvString("VERCEL_API_URL", &c.VercelAPIURL)
	loadEnvString("N8N_BASE_URL", &c.N8nBaseURL)
	loadEnvString("N8N_API_KEY", &c.N8nAPIKey)
	loadEnvString("NOTION_TOKEN", &c.NotionToken)
	loadEnvString("NOTION_DATABASE_ID", &c.NotionDatabaseID)
	loadEnvString("NOTION_API_URL", &c.NotionAPIURL)
	loadEnvString("SLACK_WEBHOOK_URL", &c.SlackWebhookURL)
	LoadArchiveConfigFromEnv(&c.Archive, "ARCHIVE")

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvBool("METRICS_ENABLED", &c.MetricsEnabled); err != nil {
		return err
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.ShutdownTimeout, "SHUTDOWN_TIMEOUT"},
		{&c.HealthCheckInterval, "HEALTH_CHECK_INTERVAL"},
		{&c.HTTPClientTimeout, "HTTP_CLIENT_TIMEOUT"},
		{&c.DeployMaxWait, "DEPLOY_MAX_WAIT"},
		{&c.DeployPollInterval, "DEPLOY_POLL_INTERVAL"},
	}
	for _, d := range durations {
		if err := loadEnvDuration(d.key, d.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if c.HealthCheckInterval <= 0 {
		return ErrInvalidHealthInterval
	}

	if c.HTTPClientTimeout <= 0 {
		return ErrInvalidClientTimeout
	}

	if c.DeployPollInterval <= 0 {
		return ErrInvalidDeployPoll
	}

	if c.DeployMaxWait < c.DeployPollInterval {
		return ErrDeployWaitTooSmall
	}

	return nil
}

// IsProduction reports whether the service runs in the production
// environment
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// LoadArchiveConfigFromEnv loads archive store configuration from
// environment variables with the given prefix (e.g., "ARCHIVE")
func LoadArchiveConfigFromEnv(a *ArchiveConfig, prefix string) {
	loadEnvString(prefix+"_REDIS_ADDR", &a.RedisAddr)
	loadEnvString(prefix+"_REDIS_PASSWORD", &a.RedisPassword)
	loadEnvString(prefix+"_REDIS_PREFIX", &a.RedisPrefix)
	loadEnvString(prefix+"_BUCKET_URL", &a.BucketURL)
	loadEnvString(prefix+"_PREFIX", &a.BucketPrefix)
	if dbStr := os.Getenv(prefix + "_REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err == nil && db >= 0 && db <= MaxRedisDB {
			a.RedisDB = db
		}
	}
}

func loadEnvString(key string, dst *string) {
	if s := os.Getenv(key); s != "" {
		*dst = s
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

func loadEnvBool(key string, dst *bool) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalidBool, key, s)
	}
	*dst = v
	return nil
}

// loadEnvDuration accepts either a Go duration string ("90s", "5m") or a
// bare integer number of seconds
func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs <= 0 {
			return fmt.Errorf("%w: %s=%q", ErrInvalidDuration, key, s)
		}
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fmt.Errorf("%w: %s=%q", ErrInvalidDuration, key, s)
	}
	*dst = d
	return nil
}
