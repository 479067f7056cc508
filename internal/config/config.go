// Package config handles configuration loading, validation, and management for promptassist.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Environment overrides.
const (
	EnvAPIKey   = "PROMPTASSIST_API_KEY"
	EnvBaseURL  = "PROMPTASSIST_BASE_URL"
	EnvLogLevel = "PROMPTASSIST_LOG_LEVEL"
	EnvDataDir  = "PROMPTASSIST_DATA_DIR"
)

// Config holds the complete application configuration.
type Config struct {
	// Version is the configuration schema version for migrations.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Augment configures the augmentation backend.
	Augment AugmentConfig `toml:"augment" json:"augment" yaml:"augment"`

	// Trigger configures command recognition.
	Trigger TriggerConfig `toml:"trigger" json:"trigger" yaml:"trigger"`

	// Focus configures foreground window monitoring.
	Focus FocusConfig `toml:"focus" json:"focus" yaml:"focus"`

	// Clipboard configures paste delivery.
	Clipboard ClipboardConfig `toml:"clipboard" json:"clipboard" yaml:"clipboard"`

	// Typing configures synthesized keystrokes.
	Typing TypingConfig `toml:"typing" json:"typing" yaml:"typing"`

	// Storage configures snippet and history files.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// AugmentConfig holds backend connection settings.
type AugmentConfig struct {
	// BaseURL is the augmentation service root, e.g. "http://localhost:8000".
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`

	// APIKey is sent as X-API-KEY. Prefer the PROMPTASSIST_API_KEY variable.
	APIKey string `toml:"api_key" json:"api_key" yaml:"api_key"`

	// TimeoutSec bounds each request attempt.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`

	// MaxAttempts is the total number of attempts per query. 1 disables retry.
	MaxAttempts int `toml:"max_attempts" json:"max_attempts" yaml:"max_attempts"`

	// RetryDelayMs is the pause between attempts.
	RetryDelayMs int `toml:"retry_delay_ms" json:"retry_delay_ms" yaml:"retry_delay_ms"`
}

// TriggerConfig holds command recognition settings.
type TriggerConfig struct {
	// SnippetMatch is "exact" (whole buffer) or "trailing" (last word).
	SnippetMatch string `toml:"snippet_match" json:"snippet_match" yaml:"snippet_match"`
}

// FocusConfig holds foreground window monitoring settings.
type FocusConfig struct {
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`

	// ExcludedApps are executable names whose focus does not clear the buffer.
	ExcludedApps []string `toml:"excluded_apps" json:"excluded_apps" yaml:"excluded_apps"`
}

// ClipboardConfig holds paste delivery settings.
type ClipboardConfig struct {
	// SettleMs is how long to wait after the paste keystroke before
	// restoring the clipboard. 0 disables the wait.
	SettleMs int `toml:"settle_ms" json:"settle_ms" yaml:"settle_ms"`

	// ClearAfterPaste empties the clipboard after a paste when there was
	// nothing to restore.
	ClearAfterPaste bool `toml:"clear_after_paste" json:"clear_after_paste" yaml:"clear_after_paste"`
}

// TypingConfig holds synthesized keystroke settings.
type TypingConfig struct {
	// KeysPerSecond paces typed and erased characters. 0 is unpaced.
	KeysPerSecond float64 `toml:"keys_per_second" json:"keys_per_second" yaml:"keys_per_second"`

	// Placeholder is typed while a request is in flight.
	Placeholder string `toml:"placeholder" json:"placeholder" yaml:"placeholder"`

	// FailureFormat renders a failure; it must contain one %s.
	FailureFormat string `toml:"failure_format" json:"failure_format" yaml:"failure_format"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	SnippetsPath      string `toml:"snippets_path" json:"snippets_path" yaml:"snippets_path"`
	HistoryPath       string `toml:"history_path" json:"history_path" yaml:"history_path"`
	HistoryMaxEntries int    `toml:"history_max_entries" json:"history_max_entries" yaml:"history_max_entries"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultExcludedApps are terminals where "::" is ordinary input.
func DefaultExcludedApps() []string {
	return []string{"powershell.exe", "cmd.exe", "putty.exe", "WindowsTerminal.exe"}
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := AppDir()

	return &Config{
		Version: Version,
		Augment: AugmentConfig{
			TimeoutSec:   30,
			MaxAttempts:  1,
			RetryDelayMs: 500,
		},
		Trigger: TriggerConfig{
			SnippetMatch: "exact",
		},
		Focus: FocusConfig{
			PollIntervalMs: 500,
			ExcludedApps:   DefaultExcludedApps(),
		},
		Clipboard: ClipboardConfig{
			SettleMs:        150,
			ClearAfterPaste: false,
		},
		Typing: TypingConfig{
			KeysPerSecond: 250,
			Placeholder:   "Generating Prompt...",
			FailureFormat: "[Prompt Failed: %s]",
		},
		Storage: StorageConfig{
			SnippetsPath:      filepath.Join(dir, "snippets.json"),
			HistoryPath:       filepath.Join(dir, "history.db"),
			HistoryMaxEntries: 100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "promptassist.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	if envDir := os.Getenv(EnvDataDir); envDir != "" {
		return filepath.Join(envDir, "config.toml")
	}
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// AppDir returns the directory holding snippets and history.
// PROMPTASSIST_DATA_DIR overrides the platform location.
func AppDir() string {
	if envDir := os.Getenv(EnvDataDir); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Validate checks the configuration for errors. Warnings (such as a
// missing API key) are included in the returned ValidationErrors but do
// not make HasErrors true.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Storage.SnippetsPath),
		filepath.Dir(c.Storage.HistoryPath),
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies PROMPTASSIST_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Augment.APIKey = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.Augment.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Focus.ExcludedApps = append([]string{}, c.Focus.ExcludedApps...)
	return &clone
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	clone := c.Clone()
	if clone.Augment.APIKey != "" {
		clone.Augment.APIKey = "[REDACTED]"
	}
	return clone
}

// Timeout is the per-attempt request timeout.
func (a AugmentConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

// RetryDelay is the pause between attempts.
func (a AugmentConfig) RetryDelay() time.Duration {
	return time.Duration(a.RetryDelayMs) * time.Millisecond
}

// PollInterval is the foreground poll period.
func (f FocusConfig) PollInterval() time.Duration {
	return time.Duration(f.PollIntervalMs) * time.Millisecond
}

// Settle is the post-paste wait.
func (c ClipboardConfig) Settle() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
}
