package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MigrationResult contains the result of a configuration migration.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Backup      string
	Changes     []string
	Warnings    []string
}

// MigrateConfig migrates a configuration from an older version to the current version.
// It creates a backup of configPath before migrating.
func MigrateConfig(cfg *Config, configPath string) (*MigrationResult, error) {
	if cfg.Version >= Version {
		return nil, nil
	}

	result := &MigrationResult{
		FromVersion: cfg.Version,
		ToVersion:   Version,
	}

	if configPath != "" {
		backup, err := backupConfig(configPath)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not create backup: %v", err))
		} else {
			result.Backup = backup
		}
	}

	for cfg.Version < Version {
		changes, err := applyMigration(cfg)
		if err != nil {
			return result, fmt.Errorf("migration from v%d to v%d failed: %w", cfg.Version, cfg.Version+1, err)
		}
		result.Changes = append(result.Changes, changes...)
	}

	return result, nil
}

func applyMigration(cfg *Config) ([]string, error) {
	var changes []string
	switch cfg.Version {
	case 0:
		changes = migrateV0ToV1(cfg)
	default:
		return nil, fmt.Errorf("unknown version %d", cfg.Version)
	}
	cfg.Version++
	return changes, nil
}

// migrateV0ToV1 fills fields an unversioned file may have zeroed.
func migrateV0ToV1(cfg *Config) []string {
	var changes []string
	def := DefaultConfig()

	if cfg.Trigger.SnippetMatch == "" {
		cfg.Trigger.SnippetMatch = def.Trigger.SnippetMatch
		changes = append(changes, "set default trigger.snippet_match")
	}
	if cfg.Typing.Placeholder == "" {
		cfg.Typing.Placeholder = def.Typing.Placeholder
		changes = append(changes, "set default typing.placeholder")
	}
	if cfg.Typing.FailureFormat == "" {
		cfg.Typing.FailureFormat = def.Typing.FailureFormat
		changes = append(changes, "set default typing.failure_format")
	}
	if cfg.Storage.HistoryMaxEntries == 0 {
		cfg.Storage.HistoryMaxEntries = def.Storage.HistoryMaxEntries
		changes = append(changes, "set default storage.history_max_entries")
	}
	return changes
}

func backupConfig(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s.bak.%s", configPath, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backup, data, 0600); err != nil {
		return "", err
	}
	return backup, nil
}

// LegacyFileName is the settings file written by earlier PromptAssist releases.
const LegacyFileName = "settings.json"

// legacySettings mirrors the old flat settings.json.
type legacySettings struct {
	Theme                 string   `json:"theme"`
	ClearClipboardOnPaste *bool    `json:"clear_clipboard_on_paste"`
	BlacklistedApps       []string `json:"blacklisted_apps"`
}

// ImportLegacySettings folds an old settings.json into cfg. It reports
// which fields were taken over. A missing file is not an error.
func ImportLegacySettings(cfg *Config, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read legacy settings: %w", err)
	}

	var legacy legacySettings
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("parse legacy settings: %w", err)
	}

	var changes []string
	if legacy.BlacklistedApps != nil {
		cfg.Focus.ExcludedApps = append([]string{}, legacy.BlacklistedApps...)
		changes = append(changes, "focus.excluded_apps from blacklisted_apps")
	}
	if legacy.ClearClipboardOnPaste != nil {
		cfg.Clipboard.ClearAfterPaste = *legacy.ClearClipboardOnPaste
		changes = append(changes, "clipboard.clear_after_paste from clear_clipboard_on_paste")
	}
	// theme belonged to the management window and has no counterpart.
	return changes, nil
}

// SaveConfig writes cfg to path in the format implied by its extension
// (TOML when unknown).
func SaveConfig(cfg *Config, path string) error {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = encodeToTOML(cfg)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	// The file may hold the API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func encodeToTOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# PromptAssist configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
