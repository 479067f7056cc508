package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for level, want := range map[Level]string{
		LevelDebug: "debug",
		LevelInfo:  "info",
		LevelWarn:  "warn",
		LevelError: "error",
	} {
		if got := LevelString(level); got != want {
			t.Errorf("LevelString(%v) = %q, want %q", level, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("json: %v %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("empty: %v %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("xml should fail")
	}
}

func TestTextOutputWithComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	logger.WithComponent("trigger").Info("buffer cleared", "reason", "focus")

	out := buf.String()
	if !strings.Contains(out, "component=trigger") || !strings.Contains(out, "reason=focus") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", "n", 1)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "hello" || entry["component"] != "promptassist" {
		t.Errorf("entry = %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = LevelWarn
	cfg.Writer = &buf

	logger, _ := New(cfg)
	logger.Info("quiet")
	logger.Warn("loud")

	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf

	logger, _ := New(cfg)
	logger.Info("configured", "api_key", "sk-123", "X-API-KEY", "sk-456", "base_url", "http://localhost")

	out := buf.String()
	if strings.Contains(out, "sk-123") || strings.Contains(out, "sk-456") {
		t.Errorf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "http://localhost") {
		t.Errorf("non-secret redacted: %s", out)
	}
}

func TestContentIsTruncated(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf
	cfg.Format = FormatJSON
	cfg.ContentLimit = 5

	logger, _ := New(cfg)
	logger.Info("delivered", "result", "a long augmented prompt", "query", "short", "app", "a long app name")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["result"] != "a lon...(23 chars)" {
		t.Errorf("result = %v", rec["result"])
	}
	if rec["query"] != "short" {
		t.Errorf("query = %v", rec["query"])
	}
	if rec["app"] != "a long app name" {
		t.Errorf("app = %v", rec["app"])
	}

	buf.Reset()
	cfg.ContentLimit = -1
	logger, _ = New(cfg)
	logger.Info("delivered", "result", "a long augmented prompt")
	if !strings.Contains(buf.String(), "a long augmented prompt") {
		t.Errorf("uncapped output = %s", buf.String())
	}
}

func TestShouldRedact(t *testing.T) {
	tests := map[string]bool{
		"api_key":      true,
		"APIKey":       true,
		"access_token": true,
		"password":     true,
		"query":        false,
		"app":          false,
		"request_id":   false,
	}
	for key, want := range tests {
		if got := shouldRedact(key); got != want {
			t.Errorf("shouldRedact(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "promptassist.log")
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = path

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("to file")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %s", data)
	}
}

func TestFileRotatorRequiresPath(t *testing.T) {
	if _, err := NewFileRotator(&Config{}); err == nil {
		t.Error("expected error without a path")
	}
}

func TestFileRotatorRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		FilePath:   filepath.Join(dir, "test.log"),
		MaxSize:    1,
		MaxBackups: 2,
		Compress:   false,
	}
	r, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("NewFileRotator: %v", err)
	}

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 4; i++ {
		if _, err := r.Write(chunk); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := r.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	// Active file plus at most MaxBackups.
	if len(files) < 2 || len(files) > 3 {
		t.Errorf("files = %v", files)
	}
}

func TestFileRotatorRotatesDaily(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{FilePath: filepath.Join(dir, "test.log"), MaxSize: 100}
	r, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("NewFileRotator: %v", err)
	}

	r.Write([]byte("day one\n"))
	tomorrow := time.Now().Add(24 * time.Hour)
	r.mu.Lock()
	r.now = func() time.Time { return tomorrow }
	r.mu.Unlock()
	r.Write([]byte("day two\n"))
	r.Close()

	files, _ := r.Files()
	if len(files) != 2 {
		t.Fatalf("files = %v", files)
	}
	data, _ := os.ReadFile(cfg.FilePath)
	if string(data) != "day two\n" {
		t.Errorf("active file = %q", data)
	}
}

func TestFileRotatorCompresses(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{FilePath: filepath.Join(dir, "test.log"), MaxSize: 1, Compress: true, MaxBackups: 5}
	r, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("NewFileRotator: %v", err)
	}
	big := bytes.Repeat([]byte("y"), 1024*1024)
	r.Write(big)
	r.Write([]byte("next\n"))
	r.Close()

	gz, _ := filepath.Glob(filepath.Join(dir, "test-*.log.gz"))
	if len(gz) != 1 {
		t.Errorf("compressed backups = %v", gz)
	}
}

func TestCrashHandlerGuard(t *testing.T) {
	dir := t.TempDir()
	h := NewCrashHandler(dir, "1.0.0", nil)

	err := h.Guard("dispatcher", func() error {
		panic("boom")
	})()

	var perr *PanicError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *PanicError", err)
	}
	if perr.Task != "dispatcher" {
		t.Errorf("task = %q", perr.Task)
	}

	reports, err := h.Reports()
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	if reports[0].PanicValue != "boom" || reports[0].Version != "1.0.0" || reports[0].StackTrace == "" {
		t.Errorf("report = %+v", reports[0])
	}
}

func TestCrashHandlerGuardPassesErrors(t *testing.T) {
	h := NewCrashHandler("", "", nil)
	want := errors.New("plain")

	if err := h.Guard("x", func() error { return want })(); err != want {
		t.Errorf("err = %v", err)
	}
	if err := h.Guard("x", func() error { return nil })(); err != nil {
		t.Errorf("err = %v", err)
	}
	if reports, _ := h.Reports(); reports != nil {
		t.Errorf("reports without dir = %v", reports)
	}
}

func TestDefaultCrashDir(t *testing.T) {
	got := DefaultCrashDir(filepath.Join("a", "logs", "promptassist.log"))
	if got != filepath.Join("a", "logs", "crashes") {
		t.Errorf("DefaultCrashDir = %s", got)
	}
}
