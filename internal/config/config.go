package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultExclusionFile   = "excluded_emails.txt"
	DefaultMaxPerRecipient = 2
	DefaultMaxPerRun       = 200
	DefaultSendDelay       = 2.0
	DefaultLogLevel        = "info"
	DefaultLogFile         = "logs/resender.log"
	DefaultCredentialsFile = "credentials/credentials.json"
	DefaultTokenFile       = "credentials/token.json"
)

// EnvFile is the dotenv file read by Load. A missing file is ignored.
var EnvFile = ".env"

// Config holds the run settings.
type Config struct {
	DryRun               bool   `yaml:"dry_run"`
	Interactive          bool   `yaml:"interactive"`
	ExclusionFile        string `yaml:"exclusion_file"`
	AutoExcludeAfterSend bool   `yaml:"auto_exclude_after_send"`

	// MaxPerRecipient is the prior sent count at which a recipient is
	// skipped. Zero disables the check.
	MaxPerRecipient int `yaml:"max_emails_per_recipient"`

	// MaxPerRun caps the candidates searched and processed in one run.
	MaxPerRun int `yaml:"max_emails_per_run"`

	// SendDelay is the pause between sends, in seconds.
	SendDelay float64 `yaml:"send_delay"`

	// Mode is immediate, drafts or scheduled.
	Mode string `yaml:"mode"`

	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`

	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`

	// JobKeywords overrides the classifier keywords when non-empty.
	JobKeywords []string `yaml:"job_keywords"`

	// ResendPrefix and ResendMessage override the composer defaults when set.
	ResendPrefix  string `yaml:"resend_prefix"`
	ResendMessage string `yaml:"resend_message"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DryRun:               false,
		Interactive:          true,
		ExclusionFile:        DefaultExclusionFile,
		AutoExcludeAfterSend: true,
		MaxPerRecipient:      DefaultMaxPerRecipient,
		MaxPerRun:            DefaultMaxPerRun,
		SendDelay:            DefaultSendDelay,
		Mode:                 "immediate",
		LogLevel:             DefaultLogLevel,
		LogFile:              DefaultLogFile,
		LogFormat:            "text",
		CredentialsFile:      DefaultCredentialsFile,
		TokenFile:            DefaultTokenFile,
	}
}

// Load builds the configuration from defaults, the dotenv file and the
// environment.
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile layers, in order: defaults, the YAML file at path (skipped
// when path is empty), the dotenv file and environment variables.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", EnvFile, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DryRun = getEnvBoolOrDefault("DRY_RUN", c.DryRun)
	c.Interactive = getEnvBoolOrDefault("INTERACTIVE_MODE", c.Interactive)
	c.ExclusionFile = getEnvOrDefault("EXCLUSION_FILE", c.ExclusionFile)
	c.AutoExcludeAfterSend = getEnvBoolOrDefault("AUTO_EXCLUDE_AFTER_SEND", c.AutoExcludeAfterSend)
	c.MaxPerRecipient = getEnvIntOrDefault("MAX_EMAILS_PER_RECIPIENT", c.MaxPerRecipient)
	c.MaxPerRun = getEnvIntOrDefault("MAX_EMAILS_PER_RUN", c.MaxPerRun)
	c.SendDelay = getEnvFloatOrDefault("SEND_DELAY", c.SendDelay)
	c.Mode = getEnvOrDefault("RESEND_MODE", c.Mode)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnvOrDefault("LOG_FILE", c.LogFile)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
	c.CredentialsFile = getEnvOrDefault("CREDENTIALS_FILE", c.CredentialsFile)
	c.TokenFile = getEnvOrDefault("TOKEN_FILE", c.TokenFile)
	c.ResendPrefix = getEnvOrDefault("RESEND_PREFIX", c.ResendPrefix)
	c.ResendMessage = getEnvOrDefault("RESEND_MESSAGE", c.ResendMessage)

	if v := os.Getenv("JOB_KEYWORDS"); v != "" {
		c.JobKeywords = SplitList(v)
	}
}

// Validate checks the configuration for values the run cannot use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ExclusionFile) == "" {
		return fmt.Errorf("exclusion file path must not be empty")
	}
	if c.MaxPerRecipient < 0 {
		return fmt.Errorf("max emails per recipient must not be negative, got %d", c.MaxPerRecipient)
	}
	if c.MaxPerRun < 0 {
		return fmt.Errorf("max emails per run must not be negative, got %d", c.MaxPerRun)
	}
	if c.SendDelay < 0 {
		return fmt.Errorf("send delay must not be negative, got %g", c.SendDelay)
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("credentials file path must not be empty")
	}
	if c.TokenFile == "" {
		return fmt.Errorf("token file path must not be empty")
	}
	return nil
}

// SendDelayDuration returns SendDelay as a time.Duration.
func (c *Config) SendDelayDuration() time.Duration {
	return time.Duration(c.SendDelay * float64(time.Second))
}

// SplitList splits a comma separated list, trimming entries and dropping
// empty ones.
func SplitList(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}
