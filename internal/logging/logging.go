// Package logging builds the expander's slog logger.
//
// Records go to the console, a rotating file, or both, as text or JSON.
// Two attribute filters run on every record: values under secret-looking
// keys (api_key, token, ...) are replaced with [REDACTED], and values under
// content keys (query, result, text, ...) are cut to a short preview so
// typed text and clipboard contents never reach the log in full.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"
)

// Level is a slog level.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the handler.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// DefaultContentLimit is the preview length, in runes, of content attributes.
const DefaultContentLimit = 32

// Config configures New.
type Config struct {
	Level  Level
	Format Format

	// Output is "stdout", "stderr", "file" or "both" (stderr and file).
	Output   string
	FilePath string

	// Rotation, see FileRotator. MaxSize is in megabytes, MaxAge in days.
	MaxSize    int64
	MaxAge     int
	MaxBackups int
	Compress   bool

	// Component is attached to every record.
	Component string

	// ContentLimit caps content attributes; 0 means DefaultContentLimit and
	// a negative value disables the cap.
	ContentLimit int

	// Writer replaces the console stream when set. Tests use it.
	Writer io.Writer
}

// DefaultConfig logs info and above as text to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     "stderr",
		MaxSize:    10,
		MaxAge:     14,
		MaxBackups: 3,
		Compress:   true,
		Component:  "promptassist",
	}
}

// Logger is a slog.Logger plus the file it may own.
type Logger struct {
	*slog.Logger
	rotator *FileRotator
}

// New builds a Logger. A nil cfg means DefaultConfig.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	w, rotator, err := openOutput(cfg)
	if err != nil {
		return nil, fmt.Errorf("setup writers: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		ReplaceAttr: replaceAttr(cfg.ContentLimit),
	}
	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	if cfg.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}

	return &Logger{Logger: slog.New(handler), rotator: rotator}, nil
}

func openOutput(cfg *Config) (io.Writer, *FileRotator, error) {
	console := cfg.Writer
	output := strings.ToLower(cfg.Output)
	if console == nil {
		console = os.Stderr
		if output == "stdout" {
			console = os.Stdout
		}
	}

	switch output {
	case "file", "both":
		rotator, err := NewFileRotator(cfg)
		if err != nil {
			return nil, nil, err
		}
		if output == "both" {
			return io.MultiWriter(console, rotator), rotator, nil
		}
		return rotator, rotator, nil
	default:
		return console, nil, nil
	}
}

func replaceAttr(limit int) func([]string, slog.Attr) slog.Attr {
	if limit == 0 {
		limit = DefaultContentLimit
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		switch {
		case shouldRedact(a.Key):
			a.Value = slog.StringValue("[REDACTED]")
		case limit > 0 && isContent(a.Key) && a.Value.Kind() == slog.KindString:
			a.Value = slog.StringValue(truncate(a.Value.String(), limit))
		}
		return a
	}
}

var secretKeys = []string{
	"password", "secret", "token", "credential", "auth",
	"cookie", "api_key", "apikey", "x-api-key", "bearer",
}

// shouldRedact reports whether key names a secret.
func shouldRedact(key string) bool {
	k := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

var contentKeys = map[string]bool{
	"query": true, "result": true, "text": true,
	"snippet": true, "clipboard": true, "buffer": true,
}

// isContent reports whether key carries user text.
func isContent(key string) bool {
	return contentKeys[strings.ToLower(key)]
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + fmt.Sprintf("...(%d chars)", len(runes))
}

// SetDefault installs l as the process-wide slog default.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

// WithComponent returns a child logger tagged with name.
func (l *Logger) WithComponent(name string) *slog.Logger {
	return l.Logger.With(slog.String("component", name))
}

// Sync flushes the log file, if any.
func (l *Logger) Sync() error {
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Sync()
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}

// ParseLevel parses debug, info, warn (or warning) and error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// LevelString is the inverse of ParseLevel; unknown levels read as info.
func LevelString(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "info"
}

// ParseFormat parses "text" (or empty) and "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format: %s", s)
}
