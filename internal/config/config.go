// Package config provides configuration loading and validation for ngmigrate.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Standard config file location.
const defaultConfigPath = "~/.config/ngmigrate/config.json"

// Environment variables that override file values.
const (
	EnvAPIURL      = "NGMIGRATE_API_URL"
	EnvLogLevel    = "NGMIGRATE_LOG_LEVEL"
	EnvJournalPath = "NGMIGRATE_JOURNAL_PATH"
)

// Config holds all ngmigrate configuration settings.
type Config struct {
	APIBaseURL         string         `json:"api_base_url"`
	Timeouts           TimeoutConfig  `json:"timeouts"`
	FileCacheSize      int            `json:"file_cache_size"`
	SuggestConcurrency int            `json:"suggest_concurrency"`
	Warnings           WarningsConfig `json:"warnings"`
	JournalPath        string         `json:"journal_path"` // Empty disables the replay journal
	LogLevel           string         `json:"log_level"`
	DefaultVariant     string         `json:"default_variant"`

	// expandedPaths tracks whether ExpandPaths has been called.
	expandedPaths bool
}

// TimeoutConfig holds per call-class request budgets.
type TimeoutConfig struct {
	Fast               Duration `json:"fast"`
	AI                 Duration `json:"ai"`
	FrameworkMigration Duration `json:"framework_migration"`
}

// WarningsConfig holds the optional line-range filter sent with warning scans.
// Zero values mean "no bound".
type WarningsConfig struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Duration is a time.Duration that reads and writes as a Go duration string ("45s").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
// Both duration strings and plain integers (seconds) are accepted.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: "http://localhost:4000/api",
		Timeouts: TimeoutConfig{
			Fast:               Duration(15 * time.Second),
			AI:                 Duration(45 * time.Second),
			FrameworkMigration: Duration(60 * time.Second),
		},
		FileCacheSize:      128,
		SuggestConcurrency: 4,
		JournalPath:        "~/.local/share/ngmigrate/journal.db",
		LogLevel:           "info",
		DefaultVariant:     "fix",
	}
}

// Load reads the .env file from the working directory (if any), then config
// from the standard location (~/.config/ngmigrate/config.json), falling back
// to defaults if the file doesn't exist.
func Load() (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	configPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}
	return LoadFromPath(configPath)
}

// LoadFromPath reads config from a specific path.
// If the file doesn't exist, returns default config with environment overrides.
// If the file exists but is invalid, returns an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		var fileCfg fileConfig
		if err := json.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		mergeConfig(cfg, &fileCfg)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.ExpandPaths(); err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// fileConfig is used for parsing JSON with pointer fields to detect what was set.
type fileConfig struct {
	APIBaseURL         *string             `json:"api_base_url"`
	Timeouts           *fileTimeoutConfig  `json:"timeouts"`
	FileCacheSize      *int                `json:"file_cache_size"`
	SuggestConcurrency *int                `json:"suggest_concurrency"`
	Warnings           *fileWarningsConfig `json:"warnings"`
	JournalPath        *string             `json:"journal_path"`
	LogLevel           *string             `json:"log_level"`
	DefaultVariant     *string             `json:"default_variant"`
}

type fileTimeoutConfig struct {
	Fast               *Duration `json:"fast"`
	AI                 *Duration `json:"ai"`
	FrameworkMigration *Duration `json:"framework_migration"`
}

type fileWarningsConfig struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

// mergeConfig merges file config values into the default config.
// Only non-nil values from the file config are applied.
func mergeConfig(cfg *Config, fileCfg *fileConfig) {
	if fileCfg.APIBaseURL != nil {
		cfg.APIBaseURL = *fileCfg.APIBaseURL
	}
	if fileCfg.FileCacheSize != nil {
		cfg.FileCacheSize = *fileCfg.FileCacheSize
	}
	if fileCfg.SuggestConcurrency != nil {
		cfg.SuggestConcurrency = *fileCfg.SuggestConcurrency
	}
	if fileCfg.JournalPath != nil {
		cfg.JournalPath = *fileCfg.JournalPath
	}
	if fileCfg.LogLevel != nil {
		cfg.LogLevel = *fileCfg.LogLevel
	}
	if fileCfg.DefaultVariant != nil {
		cfg.DefaultVariant = *fileCfg.DefaultVariant
	}

	if fileCfg.Timeouts != nil {
		if fileCfg.Timeouts.Fast != nil {
			cfg.Timeouts.Fast = *fileCfg.Timeouts.Fast
		}
		if fileCfg.Timeouts.AI != nil {
			cfg.Timeouts.AI = *fileCfg.Timeouts.AI
		}
		if fileCfg.Timeouts.FrameworkMigration != nil {
			cfg.Timeouts.FrameworkMigration = *fileCfg.Timeouts.FrameworkMigration
		}
	}

	if fileCfg.Warnings != nil {
		if fileCfg.Warnings.From != nil {
			cfg.Warnings.From = *fileCfg.Warnings.From
		}
		if fileCfg.Warnings.To != nil {
			cfg.Warnings.To = *fileCfg.Warnings.To
		}
	}
}

// applyEnv overrides config values from the process environment.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvJournalPath); ok {
		// An explicitly empty value disables the journal.
		cfg.JournalPath = strings.TrimSpace(v)
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	var errs []error

	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("api_base_url must be non-empty"))
	} else if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_base_url must be an absolute URL: %s", c.APIBaseURL))
	}

	if c.Timeouts.Fast <= 0 {
		errs = append(errs, errors.New("timeouts.fast must be > 0"))
	}
	if c.Timeouts.AI <= 0 {
		errs = append(errs, errors.New("timeouts.ai must be > 0"))
	}
	if c.Timeouts.FrameworkMigration <= 0 {
		errs = append(errs, errors.New("timeouts.framework_migration must be > 0"))
	}

	if c.FileCacheSize < 1 {
		errs = append(errs, errors.New("file_cache_size must be >= 1"))
	}
	if c.SuggestConcurrency < 1 {
		errs = append(errs, errors.New("suggest_concurrency must be >= 1"))
	}

	if c.Warnings.From < 0 || c.Warnings.To < 0 {
		errs = append(errs, errors.New("warnings range must not be negative"))
	}
	if c.Warnings.To > 0 && c.Warnings.From > c.Warnings.To {
		errs = append(errs, fmt.Errorf("warnings.from (%d) must be <= warnings.to (%d)", c.Warnings.From, c.Warnings.To))
	}

	switch c.DefaultVariant {
	case "fix", "audit", "framework":
	default:
		errs = append(errs, fmt.Errorf("default_variant must be one of fix, audit, framework: %q", c.DefaultVariant))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ExpandPaths expands ~ to home directory in all path fields.
func (c *Config) ExpandPaths() error {
	if c.expandedPaths {
		return nil
	}

	var err error
	c.JournalPath, err = expandPath(c.JournalPath)
	if err != nil {
		return fmt.Errorf("failed to expand journal_path: %w", err)
	}

	c.expandedPaths = true
	return nil
}

// StateDir returns the directory holding the journal and log file.
func (c *Config) StateDir() string {
	if c.JournalPath != "" {
		return filepath.Dir(c.JournalPath)
	}
	dir, err := expandPath("~/.local/share/ngmigrate")
	if err != nil {
		return os.TempDir()
	}
	return dir
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	return filepath.Clean(path), nil
}
