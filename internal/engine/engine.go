// Package engine wires the keyboard hook, trigger buffer, focus guard and
// request coordinator into one running expander.
//
// The hook callback only classifies the event and enqueues the resulting
// action; it never blocks. A single dispatcher goroutine owns keystroke
// synthesis and the clipboard: it handles queued actions and completed
// augmentation calls in arrival order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"promptassist/internal/augment"
	"promptassist/internal/clipboard"
	"promptassist/internal/config"
	"promptassist/internal/coordinator"
	"promptassist/internal/keystroke"
	"promptassist/internal/logging"
	"promptassist/internal/metrics"
	"promptassist/internal/sentinel"
	"promptassist/internal/trigger"
)

// QueueSize bounds the action channel between hook and dispatcher.
const QueueSize = 64

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("engine: already running")

// Snippets resolves snippet commands and reloads them from disk.
type Snippets interface {
	trigger.SnippetLookup
	Watch(ctx context.Context) error
}

// History records augmentations and accepts a new size limit on reload.
type History interface {
	coordinator.History
	SetMaxEntries(n int)
}

// Deps are the platform and storage collaborators. Snippets, History,
// Loader, Crash and Metrics may be nil.
type Deps struct {
	Hook      keystroke.Hook
	Synth     keystroke.Synthesizer
	Clipboard clipboard.Accessor
	Focus     sentinel.ForegroundReader
	Client    coordinator.Augmenter
	Notify    coordinator.Notifier

	Snippets Snippets
	History  History
	Loader   *config.Loader
	Crash    *logging.CrashHandler
	Metrics  *metrics.Pipeline
	Logger   *slog.Logger
}

// Stats are counters for diagnostics.
type Stats struct {
	KeyEvents   uint64
	Dropped     uint64
	Snippets    uint64
	Rejected    int
	FocusClears int
}

// Engine is a configured expander ready to Run.
type Engine struct {
	deps   Deps
	logger *slog.Logger

	buffer *trigger.Buffer
	synth  keystroke.Synthesizer
	paste  *clipboard.Guard
	focus  *sentinel.FocusGuard
	coord  *coordinator.Coordinator
	crash  *logging.CrashHandler
	stats  *metrics.Pipeline

	actions chan trigger.Action

	mu      sync.Mutex
	running bool
}

// New builds an engine from cfg.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil config")
	}
	if deps.Hook == nil || deps.Synth == nil || deps.Clipboard == nil ||
		deps.Focus == nil || deps.Client == nil || deps.Notify == nil {
		return nil, errors.New("engine: missing dependency")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	crash := deps.Crash
	if crash == nil {
		crash = logging.NewCrashHandler("", "", logger.With("component", "crash"))
	}

	stats := deps.Metrics
	if stats == nil {
		stats = metrics.NewPipeline(nil)
	}

	e := &Engine{
		deps:    deps,
		logger:  logger.With("component", "engine"),
		crash:   crash,
		stats:   stats,
		actions: make(chan trigger.Action, QueueSize),
	}

	var lookup trigger.SnippetLookup
	if deps.Snippets != nil {
		lookup = deps.Snippets
	}
	e.buffer = trigger.New(lookup, trigger.WithMatchMode(trigger.MatchMode(cfg.Trigger.SnippetMatch)))

	e.synth = keystroke.NewPaced(deps.Synth, cfg.Typing.KeysPerSecond)

	// A configured settle of 0 means no wait, which the guard spells as negative.
	settle := cfg.Clipboard.Settle()
	if settle == 0 {
		settle = -1
	}
	e.paste = clipboard.NewGuard(deps.Clipboard, e.synth, clipboard.Options{
		Settle:          settle,
		ClearAfterPaste: cfg.Clipboard.ClearAfterPaste,
		Logger:          logger.With("component", "clipboard"),
	})

	e.focus = sentinel.NewFocusGuard(deps.Focus, e.buffer, sentinel.FocusGuardConfig{
		PollInterval: cfg.Focus.PollInterval(),
		ExcludedApps: cfg.Focus.ExcludedApps,
		Logger:       logger.With("component", "focus_guard"),
	})

	var history coordinator.History
	if deps.History != nil {
		history = deps.History
	}
	e.coord = coordinator.New(coordinator.Deps{
		Client:  deps.Client,
		Synth:   e.synth,
		Paster:  e.paste,
		Notify:  deps.Notify,
		History: history,
		Buffer:  e.buffer,
	}, coordinator.Options{
		Placeholder:   cfg.Typing.Placeholder,
		FailureFormat: cfg.Typing.FailureFormat,
		Retry:         RetryPolicy(cfg.Augment),
		Logger:        logger.With("component", "coordinator"),
	})

	return e, nil
}

// RetryPolicy converts the configured attempt count and delay.
func RetryPolicy(a config.AugmentConfig) augment.RetryPolicy {
	return augment.RetryPolicy{MaxAttempts: a.MaxAttempts, Delay: a.RetryDelay()}
}

// Run blocks until ctx is cancelled or a component fails. Panics in any
// component are recorded by the crash handler and end the run.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	if ok, reason := e.deps.Hook.Available(); !ok {
		return fmt.Errorf("%w: %s", keystroke.ErrNotAvailable, reason)
	}
	if ok, reason := e.deps.Focus.Available(); !ok {
		e.logger.Warn("foreground detection unavailable, focus changes will not clear the buffer", "reason", reason)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(e.crash.Guard("dispatcher", func() error { return e.dispatch(ctx) }))
	g.Go(e.crash.Guard("hook", func() error { return e.runHook(ctx) }))
	g.Go(e.crash.Guard("focus_guard", func() error { return e.focus.Run(ctx) }))
	if e.deps.Snippets != nil {
		g.Go(e.crash.Guard("snippet_watcher", func() error { return e.deps.Snippets.Watch(ctx) }))
	}
	if e.deps.Loader != nil {
		g.Go(e.crash.Guard("config_watcher", func() error { return e.watchConfig(ctx) }))
	}

	e.logger.Info("engine started", "queue", QueueSize)
	err := g.Wait()
	e.coord.Wait()
	e.logger.Info("engine stopped", "dropped", e.stats.Dropped.Value())
	return err
}

func (e *Engine) runHook(ctx context.Context) error {
	if err := e.deps.Hook.Start(ctx, e.onKey); err != nil {
		return fmt.Errorf("start keyboard hook: %w", err)
	}
	<-ctx.Done()
	return e.deps.Hook.Stop()
}

// onKey runs on the hook's callback thread.
func (e *Engine) onKey(ev keystroke.Event) {
	e.stats.KeyEvents.Inc()
	action := e.buffer.Process(ev)
	switch action.Kind {
	case trigger.NoAction:
		return
	case trigger.SnippetTrigger:
		e.stats.SnippetTriggers.Inc()
	case trigger.AugmentationTrigger:
		e.stats.PromptTriggers.Inc()
	}
	e.enqueue(action)
}

func (e *Engine) enqueue(a trigger.Action) bool {
	select {
	case e.actions <- a:
		return true
	default:
		e.stats.Dropped.Inc()
		e.logger.Warn("action queue full, trigger dropped", "kind", a.Kind, "dropped", e.stats.Dropped.Value())
		return false
	}
}

func (e *Engine) dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case a := <-e.actions:
			e.handle(ctx, a)
		case out := <-e.coord.Results():
			e.stats.ObserveAugmentation(out.Elapsed, out.Err)
			e.coord.Deliver(ctx, out)
		}
	}
}

func (e *Engine) handle(ctx context.Context, a trigger.Action) {
	switch a.Kind {
	case trigger.SnippetTrigger:
		e.expand(ctx, a)
	case trigger.AugmentationTrigger:
		accepted, err := e.coord.Submit(ctx, a)
		if err != nil {
			e.logger.Error("submit augmentation", "error", err)
			return
		}
		if !accepted {
			e.stats.Rejected.Inc()
		}
	}
}

// expand replaces a typed snippet command with its text.
func (e *Engine) expand(ctx context.Context, a trigger.Action) {
	defer e.buffer.Clear()

	if e.deps.Snippets == nil {
		return
	}
	text, ok := e.deps.Snippets.Lookup(a.Command)
	if !ok {
		e.logger.Warn("snippet removed before delivery", "command", a.Command)
		return
	}
	if err := e.synth.Backspace(ctx, a.Erase()); err != nil {
		e.logger.Warn("erase snippet command failed", "command", a.Command, "error", err)
		return
	}
	if err := e.paste.Paste(ctx, text); err != nil {
		e.logger.Error("paste snippet failed", "command", a.Command, "error", err)
		return
	}
	e.stats.SnippetsExpanded.Inc()
	e.logger.Debug("snippet expanded", "command", a.Command)
}

func (e *Engine) watchConfig(ctx context.Context) error {
	loader := e.deps.Loader
	loader.OnChange(e.Apply)
	if err := loader.Watch(); err != nil {
		e.logger.Warn("config hot reload disabled", "error", err)
		<-ctx.Done()
		return nil
	}
	defer loader.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-loader.Errors():
			e.logger.Warn("config watcher", "error", err)
		}
	}
}

// Apply pushes the settings that can change at runtime into the running
// components. Augment, typing and clipboard settings apply on next start.
func (e *Engine) Apply(cfg *config.Config) {
	e.focus.SetExclusions(cfg.Focus.ExcludedApps)
	e.buffer.SetMatchMode(trigger.MatchMode(cfg.Trigger.SnippetMatch))
	if e.deps.History != nil {
		e.deps.History.SetMaxEntries(cfg.Storage.HistoryMaxEntries)
	}
	e.logger.Info("runtime settings applied",
		"excluded_apps", len(cfg.Focus.ExcludedApps),
		"snippet_match", cfg.Trigger.SnippetMatch)
}

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *metrics.Pipeline {
	return e.stats
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		KeyEvents:   e.stats.KeyEvents.Value(),
		Dropped:     e.stats.Dropped.Value(),
		Snippets:    e.stats.SnippetsExpanded.Value(),
		Rejected:    e.coord.Rejected(),
		FocusClears: e.focus.Clears(),
	}
}
