package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the root configuration for the MessageBird WhatsApp driver.
type Config struct {
	General     GeneralConfig     `json:"general"`
	MessageBird MessageBirdConfig `json:"messagebird"`
	Webhook     WebhookConfig     `json:"webhook"`
	Responder   ResponderConfig   `json:"responder"`
	Journal     JournalConfig     `json:"journal"`
	Metrics     MetricsConfig     `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file,omitempty"`
}

// MessageBirdConfig holds provider credentials and transport tuning.
// Secrets can be supplied from the environment instead of the config file.
type MessageBirdConfig struct {
	AccessKey         string `json:"access_key" env:"MESSAGEBIRD_ACCESS_KEY"`
	SigningKey        string `json:"signing_key" env:"MESSAGEBIRD_SIGNING_KEY"`
	SandboxEnabled    bool   `json:"is_sandbox_enabled" env:"MESSAGEBIRD_WHATSAPP_SANDBOX"`
	BusinessNumber    string `json:"business_number" env:"MESSAGEBIRD_BUSINESS_NUMBER"`
	FallbackChannelID string `json:"fallback_channel_id,omitempty" env:"MESSAGEBIRD_CHANNEL_ID"`
	Timeout           int    `json:"timeout,omitempty"`            // seconds, default 15
	ConnectionTimeout int    `json:"connection_timeout,omitempty"` // seconds, default 10
}

type WebhookConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Path string `json:"path"`
}

type ResponderConfig struct {
	RulesDir string `json:"rules_dir,omitempty"`
	Echo     bool   `json:"echo"`
}

type JournalConfig struct {
	Enabled       bool   `json:"enabled"`
	DBPath        string `json:"db_path"`
	RetentionDays int    `json:"retention_days"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.birdbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".birdbot"
	}
	return filepath.Join(home, ".birdbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	// Environment takes precedence for credentials and channel binding.
	if err := env.Parse(&cfg.MessageBird); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	cfg.General.LogFile = expandPath(cfg.General.LogFile)
	cfg.Journal.DBPath = expandPath(cfg.Journal.DBPath)
	cfg.Responder.RulesDir = expandPath(cfg.Responder.RulesDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.log_level must be one of: debug, info, warn, error")
	}

	if cfg.Webhook.Port < 0 || cfg.Webhook.Port > 65535 {
		errs = append(errs, "webhook.port must be between 0 and 65535")
	}
	if cfg.Webhook.Path != "" && !strings.HasPrefix(cfg.Webhook.Path, "/") {
		errs = append(errs, "webhook.path must start with /")
	}

	if cfg.MessageBird.Timeout < 0 {
		errs = append(errs, "messagebird.timeout must be >= 0")
	}
	if cfg.MessageBird.ConnectionTimeout < 0 {
		errs = append(errs, "messagebird.connection_timeout must be >= 0")
	}

	if cfg.Journal.Enabled && cfg.Journal.RetentionDays < 1 {
		errs = append(errs, "journal.retention_days must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Sanitize returns a copy with credentials masked, for display.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	if out.MessageBird.AccessKey != "" {
		out.MessageBird.AccessKey = mask(out.MessageBird.AccessKey)
	}
	if out.MessageBird.SigningKey != "" {
		out.MessageBird.SigningKey = mask(out.MessageBird.SigningKey)
	}
	return &out
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
