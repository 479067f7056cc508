package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"
)

// CrashReport describes a recovered panic.
type CrashReport struct {
	Timestamp    time.Time `json:"timestamp"`
	Version      string    `json:"version,omitempty"`
	GOOS         string    `json:"goos"`
	GOARCH       string    `json:"goarch"`
	NumGoroutine int       `json:"num_goroutine"`
	Task         string    `json:"task"`
	PanicValue   string    `json:"panic_value"`
	StackTrace   string    `json:"stack_trace"`
}

// PanicError is returned by a guarded task that panicked.
type PanicError struct {
	Task  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Task, e.Value)
}

// CrashHandler turns panics in long-running goroutines into errors and
// writes a JSON report for each.
type CrashHandler struct {
	mu      sync.Mutex
	dir     string
	version string
	logger  *slog.Logger
	seq     int
}

// NewCrashHandler writes reports to dir. An empty dir only logs.
func NewCrashHandler(dir, version string, logger *slog.Logger) *CrashHandler {
	if logger == nil {
		logger = slog.Default().With("component", "crash")
	}
	return &CrashHandler{dir: dir, version: version, logger: logger}
}

// DefaultCrashDir returns the crash report directory beside logFile.
func DefaultCrashDir(logFile string) string {
	return filepath.Join(filepath.Dir(logFile), "crashes")
}

// Guard wraps fn so a panic is recorded and returned as a *PanicError.
// The result fits errgroup.Group.Go.
func (h *CrashHandler) Guard(task string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if v := recover(); v != nil {
				h.HandlePanic(task, v)
				err = &PanicError{Task: task, Value: v}
			}
		}()
		return fn()
	}
}

// HandlePanic records a recovered panic value.
func (h *CrashHandler) HandlePanic(task string, value any) {
	report := CrashReport{
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		Task:         task,
		PanicValue:   fmt.Sprintf("%v", value),
		StackTrace:   string(debug.Stack()),
	}

	h.logger.Error("recovered panic", "task", task, "panic", report.PanicValue)

	if h.dir == "" {
		return
	}
	path, err := h.write(report)
	if err != nil {
		h.logger.Error("could not write crash report", "error", err)
		return
	}
	h.logger.Error("crash report written", "path", path)
}

func (h *CrashHandler) write(report CrashReport) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(h.dir, 0750); err != nil {
		return "", fmt.Errorf("create crash directory: %w", err)
	}
	h.seq++
	name := fmt.Sprintf("crash-%s-%d.json", report.Timestamp.Format("20060102-150405"), h.seq)
	path := filepath.Join(h.dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// Reports returns stored crash reports, oldest first.
func (h *CrashHandler) Reports() ([]CrashReport, error) {
	if h.dir == "" {
		return nil, nil
	}
	files, err := filepath.Glob(filepath.Join(h.dir, "crash-*.json"))
	if err != nil {
		return nil, err
	}

	reports := make([]CrashReport, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var report CrashReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Timestamp.Before(reports[j].Timestamp) })
	return reports, nil
}
