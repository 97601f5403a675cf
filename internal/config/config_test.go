package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets the override variables for the duration of a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvAPIURL, EnvLogLevel, EnvJournalPath} {
		if v, ok := os.LookupEnv(name); ok {
			_ = os.Unsetenv(name)
			t.Cleanup(func() { _ = os.Setenv(name, v) })
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configPath
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromPath("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("expected default config for missing file, got error: %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:4000/api" {
		t.Errorf("expected default api_base_url, got %s", cfg.APIBaseURL)
	}
	if cfg.Timeouts.FrameworkMigration.Std() != 60*time.Second {
		t.Errorf("expected 60s framework migration budget, got %v", cfg.Timeouts.FrameworkMigration.Std())
	}
	if cfg.Timeouts.AI.Std() <= cfg.Timeouts.Fast.Std() {
		t.Errorf("expected AI budget (%v) to exceed fast budget (%v)", cfg.Timeouts.AI.Std(), cfg.Timeouts.Fast.Std())
	}
	if strings.HasPrefix(cfg.JournalPath, "~") {
		t.Errorf("expected journal path to be expanded, got %s", cfg.JournalPath)
	}
}

func TestLoadFromPath_PartialConfig(t *testing.T) {
	clearEnv(t)

	configPath := writeConfig(t, `{
		"api_base_url": "https://migrate.example.com/api",
		"timeouts": {"ai": "90s"},
		"warnings": {"from": 6, "to": 8}
	}`)

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIBaseURL != "https://migrate.example.com/api" {
		t.Errorf("unexpected api_base_url %s", cfg.APIBaseURL)
	}
	if cfg.Timeouts.AI.Std() != 90*time.Second {
		t.Errorf("expected ai=90s, got %v", cfg.Timeouts.AI.Std())
	}
	// Unset fields keep their defaults.
	if cfg.Timeouts.Fast.Std() != 15*time.Second {
		t.Errorf("expected default fast=15s, got %v", cfg.Timeouts.Fast.Std())
	}
	if cfg.Warnings.From != 6 || cfg.Warnings.To != 8 {
		t.Errorf("unexpected warnings range %+v", cfg.Warnings)
	}
	if cfg.SuggestConcurrency != 4 {
		t.Errorf("expected default suggest_concurrency=4, got %d", cfg.SuggestConcurrency)
	}
}

func TestLoadFromPath_DurationAsSeconds(t *testing.T) {
	clearEnv(t)

	configPath := writeConfig(t, `{"timeouts": {"framework_migration": 120}}`)

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Timeouts.FrameworkMigration.Std() != 2*time.Minute {
		t.Errorf("expected 2m, got %v", cfg.Timeouts.FrameworkMigration.Std())
	}
}

func TestLoadFromPath_InvalidJSON(t *testing.T) {
	clearEnv(t)

	configPath := writeConfig(t, `{"api_base_url": `)

	_, err := LoadFromPath(configPath)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadFromPath_ValidationErrors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"relative url", `{"api_base_url": "/api"}`, "api_base_url must be an absolute URL"},
		{"zero fast timeout", `{"timeouts": {"fast": "0s"}}`, "timeouts.fast"},
		{"bad duration", `{"timeouts": {"ai": "soon"}}`, "invalid duration"},
		{"zero cache", `{"file_cache_size": 0}`, "file_cache_size"},
		{"zero concurrency", `{"suggest_concurrency": 0}`, "suggest_concurrency"},
		{"inverted range", `{"warnings": {"from": 9, "to": 3}}`, "warnings.from"},
		{"unknown variant", `{"default_variant": "rewrite"}`, "default_variant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromPath(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `{"api_base_url": "https://file.example.com/api"}`)

	t.Setenv(EnvAPIURL, "http://127.0.0.1:9999/api")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvJournalPath, "")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIBaseURL != "http://127.0.0.1:9999/api" {
		t.Errorf("expected env url to win, got %s", cfg.APIBaseURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.JournalPath != "" {
		t.Errorf("expected empty journal path to disable the journal, got %s", cfg.JournalPath)
	}
}

func TestStateDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JournalPath = filepath.Join("/var", "lib", "ngmigrate", "journal.db")
	if got := cfg.StateDir(); got != filepath.Join("/var", "lib", "ngmigrate") {
		t.Errorf("unexpected state dir %s", got)
	}

	cfg.JournalPath = ""
	if got := cfg.StateDir(); got == "" {
		t.Error("expected a fallback state dir")
	}
}

func TestDuration_RoundTrip(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	data, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `"1.5s"` {
		t.Errorf("unexpected encoding %s", data)
	}
}
