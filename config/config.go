package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/imranansari/apigee-deploy-wf/secrets"
)

// Deployment runner modes
const (
	ModeSimulate = "simulate"
	ModeAPI      = "api"
	ModeTemporal = "temporal"
)

// Config holds all configuration for the application
type Config struct {
	// Temporal Configuration
	Temporal TemporalConfig `envPrefix:"TEMPORAL_"`

	// GitHub Configuration
	GitHub GitHubConfig `envPrefix:"GITHUB_"`

	// Deployment backend Configuration
	Deploy DeployConfig `envPrefix:"DEPLOY_"`

	// HTTP server Configuration
	Server ServerConfig `envPrefix:"SERVER_"`

	// Application Configuration
	App AppConfig `envPrefix:"APP_"`

	// Secrets (loaded from files)
	Secrets SecretsConfig
}

type TemporalConfig struct {
	HostPort      string        `env:"HOST" envDefault:"localhost:7233"`
	Namespace     string        `env:"NAMESPACE" envDefault:"default"`
	TaskQueue     string        `env:"TASK_QUEUE" envDefault:"apigee-deployment"`
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"500ms"`
	WorkerOptions WorkerOptions `envPrefix:"WORKER_"`
}

type WorkerOptions struct {
	MaxConcurrentActivityExecutionSize     int  `env:"MAX_CONCURRENT_ACTIVITY" envDefault:"20"`
	MaxConcurrentWorkflowTaskExecutionSize int  `env:"MAX_CONCURRENT_WORKFLOW" envDefault:"10"`
	EnableLoggingInReplay                  bool `env:"ENABLE_LOGGING_REPLAY" envDefault:"false"`
}

type GitHubConfig struct {
	// REST API root; override for GitHub Enterprise (https://host/api/v3/)
	APIURL string `env:"API_URL" envDefault:"https://api.github.com/"`

	// Optional GitHub App used by the worker to record GitHub Deployments.
	// Leave GITHUB_APP_ID unset to disable.
	AppID          int64  `env:"APP_ID"`
	PrivateKeyFile string `env:"PRIVATE_KEY_FILE" envDefault:"github-app.private-key.pem"`
}

type DeployConfig struct {
	APIBaseURL     string        `env:"API_BASE_URL" envDefault:"http://localhost:5000/api"`
	Mode           string        `env:"MODE" envDefault:"simulate"`
	StepDelay      time.Duration `env:"STEP_DELAY" envDefault:"1500ms"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

type ServerConfig struct {
	Addr           string        `env:"ADDR" envDefault:":8080"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
}

type AppConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// Feature flag for the GitHub capability of the deployment form
	GitHubIntegration bool `env:"GITHUB_INTEGRATION" envDefault:"true"`
}

type SecretsConfig struct {
	GitHubPrivateKey []byte
}

// GitHubAppEnabled reports whether GitHub App credentials are configured
func (c *Config) GitHubAppEnabled() bool {
	return c.GitHub.AppID != 0 && len(c.Secrets.GitHubPrivateKey) > 0
}

// Load loads configuration from environment variables and files
func Load() (*Config, error) {
	// Load .env file if exists (for local development)
	_ = godotenv.Load()

	return load(env.Options{})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := loadSecrets(cfg, lookup(opts, "SECRETS_PATH", ".private")); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadSecrets loads the GitHub App private key when an App ID is configured
func loadSecrets(cfg *Config, secretsPath string) error {
	if cfg.GitHub.AppID == 0 {
		return nil
	}

	keyPath := cfg.GitHub.PrivateKeyFile
	if !filepath.IsAbs(keyPath) {
		keyPath = filepath.Join(secretsPath, keyPath)
	}

	privateKey, err := secrets.LoadRSAPrivateKey(keyPath)
	if err != nil {
		return fmt.Errorf("failed to load GitHub App private key: %w", err)
	}
	cfg.Secrets.GitHubPrivateKey = privateKey

	return nil
}

// lookup reads a plain variable from the parse environment, falling back to the process environment
func lookup(opts env.Options, key, defaultValue string) string {
	if opts.Environment != nil {
		if value := opts.Environment[key]; value != "" {
			return value
		}
		return defaultValue
	}
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func validateConfig(cfg *Config) error {
	switch cfg.Deploy.Mode {
	case ModeSimulate, ModeAPI, ModeTemporal:
	default:
		return fmt.Errorf("unknown deploy mode %q", cfg.Deploy.Mode)
	}
	if _, err := url.ParseRequestURI(cfg.Deploy.APIBaseURL); err != nil {
		return fmt.Errorf("deploy API base URL is invalid: %w", err)
	}
	if _, err := url.ParseRequestURI(cfg.GitHub.APIURL); err != nil {
		return fmt.Errorf("GitHub API URL is invalid: %w", err)
	}
	if cfg.Deploy.StepDelay < 0 {
		return fmt.Errorf("deploy step delay must not be negative")
	}
	return nil
}
