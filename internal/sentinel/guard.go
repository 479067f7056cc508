package sentinel

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultPollInterval is how often the foreground window is sampled.
const DefaultPollInterval = 500 * time.Millisecond

// DefaultExcludedApps are terminals whose own line editing makes the buffer
// unreliable; focus moving to them leaves the buffer alone.
var DefaultExcludedApps = []string{
	"powershell.exe",
	"cmd.exe",
	"putty.exe",
	"WindowsTerminal.exe",
}

// Invalidator is cleared when focus moves. trigger.Buffer implements it.
type Invalidator interface {
	Clear()
}

// FocusGuardConfig configures a FocusGuard.
type FocusGuardConfig struct {
	// PollInterval is how often to poll. Zero means DefaultPollInterval.
	PollInterval time.Duration

	// ExcludedApps are executable names (case-insensitive, base name).
	ExcludedApps []string

	Logger *slog.Logger
}

// DefaultFocusGuardConfig returns default configuration.
func DefaultFocusGuardConfig() FocusGuardConfig {
	return FocusGuardConfig{
		PollInterval: DefaultPollInterval,
		ExcludedApps: append([]string(nil), DefaultExcludedApps...),
	}
}

// FocusGuard clears an Invalidator when the foreground window changes.
type FocusGuard struct {
	reader   ForegroundReader
	target   Invalidator
	interval time.Duration
	logger   *slog.Logger

	mu         sync.RWMutex
	exclusions map[string]bool
	last       *WindowInfo
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	clears     int
}

// NewFocusGuard creates a guard polling reader and clearing target.
func NewFocusGuard(reader ForegroundReader, target Invalidator, cfg FocusGuardConfig) *FocusGuard {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "focus_guard")
	}
	g := &FocusGuard{
		reader:   reader,
		target:   target,
		interval: interval,
		logger:   logger,
	}
	g.SetExclusions(cfg.ExcludedApps)
	return g
}

// Start begins polling in a background goroutine.
func (g *FocusGuard) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return ErrAlreadyRunning
	}

	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})
	g.running = true

	go g.pollLoop(ctx, g.done)

	g.logger.Info("focus guard started", "poll_interval", g.interval)
	return nil
}

// Stop stops polling and waits for the loop to exit.
func (g *FocusGuard) Stop() error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = false
	cancel, done := g.cancel, g.done
	g.mu.Unlock()

	cancel()
	<-done
	g.logger.Info("focus guard stopped")
	return nil
}

// Run polls until ctx is cancelled. It is the blocking form of Start.
func (g *FocusGuard) Run(ctx context.Context) error {
	if err := g.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return g.Stop()
}

func (g *FocusGuard) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Poll()
		}
	}
}

// Poll performs one tick: read the foreground window and clear the target
// if focus moved to a non-excluded application. It reports whether the
// target was cleared.
func (g *FocusGuard) Poll() bool {
	info, err := g.reader.Foreground()
	if err != nil {
		g.logger.Debug("foreground read failed", "error", err)
		return false
	}
	if info.Timestamp.IsZero() {
		info.Timestamp = time.Now()
	}

	g.mu.Lock()
	prev := g.last
	g.last = &info
	changed := prev != nil && prev.Handle != info.Handle
	excluded := g.excludedLocked(info.Application)
	if changed && !excluded {
		g.clears++
	}
	g.mu.Unlock()

	if !changed {
		return false
	}
	if excluded {
		g.logger.Debug("focus moved to excluded application, buffer kept", "app", info.Application)
		return false
	}

	g.target.Clear()
	g.logger.Debug("focus changed, buffer cleared", "app", info.Application)
	return true
}

// SetExclusions replaces the exclusion list.
func (g *FocusGuard) SetExclusions(apps []string) {
	m := make(map[string]bool, len(apps))
	for _, app := range apps {
		if key := normalizeApp(app); key != "" {
			m[key] = true
		}
	}
	g.mu.Lock()
	g.exclusions = m
	g.mu.Unlock()
}

// Excluded reports whether app is on the exclusion list.
func (g *FocusGuard) Excluded(app string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.excludedLocked(app)
}

func (g *FocusGuard) excludedLocked(app string) bool {
	key := normalizeApp(app)
	return key != "" && g.exclusions[key]
}

// Current returns the last observed foreground window, or nil before the
// first successful poll.
func (g *FocusGuard) Current() *WindowInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.last == nil {
		return nil
	}
	info := *g.last
	return &info
}

// Clears returns how many times the guard has cleared the target.
func (g *FocusGuard) Clears() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.clears
}

// normalizeApp lowercases the base name of an executable path. Both
// separators are handled so Windows paths normalize on any OS.
func normalizeApp(app string) string {
	app = strings.TrimSpace(app)
	if i := strings.LastIndexAny(app, `\/`); i >= 0 {
		app = app[i+1:]
	}
	return strings.ToLower(app)
}
