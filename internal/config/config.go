// Package config loads solver configuration from YAML and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration.
type Config struct {
	Provider  ProviderConfig  `mapstructure:"provider"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Submit    SubmitConfig    `mapstructure:"submit"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Download  DownloadConfig  `mapstructure:"download"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ProviderConfig selects the model backend.
type ProviderConfig struct {
	Type      string `mapstructure:"type"` // anthropic, openai, openrouter
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// AgentConfig holds the loop budgets.
type AgentConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	RetryLimit    int           `mapstructure:"retry_limit"`
	TimeLimit     time.Duration `mapstructure:"time_limit"`
	Pause         time.Duration `mapstructure:"pause"`
}

// SubmitConfig configures the answer submission client.
type SubmitConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// BrowserConfig configures headless page rendering.
type BrowserConfig struct {
	Headless  bool          `mapstructure:"headless"`
	Bin       string        `mapstructure:"bin"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
	MaxRunes  int           `mapstructure:"max_runes"`
}

// SandboxConfig controls code execution.
type SandboxConfig struct {
	Workspace      string        `mapstructure:"workspace"`
	PythonCommand  string        `mapstructure:"python_command"`
	InstallCommand string        `mapstructure:"install_command"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxOutput      int           `mapstructure:"max_output"`
}

// DownloadConfig bounds file downloads.
type DownloadConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// TelemetryConfig controls JSONL event emission.
type TelemetryConfig struct {
	ObserveJSON  bool   `mapstructure:"observe_json"`
	ArtifactsDir string `mapstructure:"artifacts_dir"`
}

// Load reads configuration from path or, when empty, from solver.yaml in the
// working directory or ./configs. A missing default file is not an error.
// Environment variables override file values (prefix: SOLVER_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("solver")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = apiKeyFromEnv(v, cfg.Provider.Type)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// apiKeyFromEnv falls back to the provider's conventional variable.
func apiKeyFromEnv(v *viper.Viper, providerType string) string {
	var name string
	switch strings.ToLower(providerType) {
	case "anthropic":
		name = "ANTHROPIC_API_KEY"
	case "openrouter":
		name = "OPENROUTER_API_KEY"
	case "openai":
		name = "OPENAI_API_KEY"
	default:
		return ""
	}
	_ = v.BindEnv("provider_fallback_key", name)
	return v.GetString("provider_fallback_key")
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.type", "anthropic")
	v.SetDefault("provider.model", "claude-3-7-sonnet-latest")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.max_tokens", 4096)

	v.SetDefault("agent.max_iterations", 20)
	v.SetDefault("agent.retry_limit", 2)
	v.SetDefault("agent.time_limit", 180*time.Second)
	v.SetDefault("agent.pause", 5*time.Second)

	v.SetDefault("submit.timeout", 20*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.timeout", 30*time.Second)
	v.SetDefault("browser.cache_size", 32)
	v.SetDefault("browser.max_runes", 40_000)

	v.SetDefault("sandbox.workspace", "workspace")
	v.SetDefault("sandbox.python_command", "uv run python")
	v.SetDefault("sandbox.install_command", "uv add")
	v.SetDefault("sandbox.timeout", 60*time.Second)
	v.SetDefault("sandbox.max_output", 12_000)

	v.SetDefault("download.timeout", 60*time.Second)
	v.SetDefault("download.max_bytes", int64(50<<20))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("telemetry.observe_json", false)
	v.SetDefault("telemetry.artifacts_dir", ".agent")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Provider.Type)) {
	case "anthropic", "openai", "openrouter":
	default:
		return fmt.Errorf("provider.type must be one of anthropic, openai, openrouter (got %q)", c.Provider.Type)
	}
	if strings.TrimSpace(c.Provider.Model) == "" {
		return errors.New("provider.model must be set")
	}
	if c.Provider.MaxTokens <= 0 {
		return errors.New("provider.max_tokens must be > 0")
	}

	if c.Agent.MaxIterations <= 0 {
		return errors.New("agent.max_iterations must be > 0")
	}
	if c.Agent.RetryLimit < 0 {
		return errors.New("agent.retry_limit must be >= 0")
	}
	if c.Agent.TimeLimit <= 0 {
		return errors.New("agent.time_limit must be > 0")
	}
	if c.Agent.Pause < 0 {
		return errors.New("agent.pause must be >= 0")
	}

	if c.Submit.Timeout <= 0 {
		return errors.New("submit.timeout must be > 0")
	}
	if c.Browser.Timeout <= 0 {
		return errors.New("browser.timeout must be > 0")
	}
	if c.Browser.CacheSize < 0 {
		return errors.New("browser.cache_size must be >= 0")
	}

	if strings.TrimSpace(c.Sandbox.PythonCommand) == "" {
		return errors.New("sandbox.python_command must be set")
	}
	if strings.TrimSpace(c.Sandbox.InstallCommand) == "" {
		return errors.New("sandbox.install_command must be set")
	}
	if c.Sandbox.Timeout <= 0 {
		return errors.New("sandbox.timeout must be > 0")
	}

	if c.Download.Timeout <= 0 {
		return errors.New("download.timeout must be > 0")
	}
	if c.Download.MaxBytes <= 0 {
		return errors.New("download.max_bytes must be > 0")
	}
	return nil
}
