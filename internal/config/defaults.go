package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName    = "PromptAssist"
	appNameLow = "promptassist"
)

// PlatformDataDir returns the platform-specific data directory.
//
//   - macOS:   ~/Library/Application Support/PromptAssist/
//   - Linux:   $XDG_DATA_HOME/promptassist/ or ~/.local/share/promptassist/
//   - Windows: %APPDATA%\PromptAssist\
//
// Falls back to ~/.promptassist if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDataDir()
	case "linux":
		return xdgDir("XDG_DATA_HOME", ".local", "share")
	case "windows":
		return windowsDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformConfigDir returns the platform-specific configuration directory.
// Only Linux separates configuration from data.
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDataDir()
	case "linux":
		return xdgDir("XDG_CONFIG_HOME", ".config")
	case "windows":
		return windowsDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformLogDir returns the platform-specific log directory.
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Logs", appName)
	case "linux":
		return filepath.Join(xdgDir("XDG_STATE_HOME", ".local", "state"), "logs")
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName, "logs")
		}
		return filepath.Join(windowsDataDir(), "logs")
	default:
		return filepath.Join(fallbackDataDir(), "logs")
	}
}

func macOSDataDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, "Library", "Application Support", appName)
}

// xdgDir resolves an XDG base directory variable, falling back to a path
// under the home directory.
func xdgDir(env string, fallback ...string) string {
	if v := os.Getenv(env); v != "" {
		return filepath.Join(v, appNameLow)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(append(append([]string{home}, fallback...), appNameLow)...)
}

func windowsDataDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "AppData", "Roaming", appName)
}

func fallbackDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+appNameLow)
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches the current directory and then the config
// directory for config.<ext>. It returns "" when none exists.
func FindConfigFile() string {
	searchDirs := []string{".", filepath.Dir(ConfigPath())}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
