// Package coordinator runs at most one augmentation request at a time and
// turns its outcome into on-screen feedback.
//
// Lifecycle of a request:
//
//	Idle -> InFlight      Submit: erase the trigger, type the placeholder,
//	                      start the network call in its own goroutine
//	InFlight -> Delivering Deliver: erase the placeholder, paste the result
//	                      or type the failure message
//	Delivering -> Idle    always, with the trigger buffer cleared
//
// A trigger that arrives while a request is outstanding is rejected with
// audible feedback only. Submit and Deliver must be called from a single
// goroutine (the engine's dispatcher) so synthesized input never interleaves.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"promptassist/internal/augment"
	"promptassist/internal/keystroke"
	"promptassist/internal/store"
	"promptassist/internal/trigger"
)

// State is the request lifecycle state.
type State int32

const (
	Idle State = iota
	InFlight
	Delivering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InFlight:
		return "in_flight"
	case Delivering:
		return "delivering"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Defaults for Options.
const (
	DefaultPlaceholder   = "Generating Prompt..."
	DefaultFailureFormat = "[Prompt Failed: %s]"
)

// ErrNotAugmentation is returned by Submit for actions of another kind.
var ErrNotAugmentation = errors.New("coordinator: action is not an augmentation trigger")

// Augmenter performs the network call.
type Augmenter interface {
	Call(ctx context.Context, query string, policy augment.RetryPolicy) (string, error)
}

// Paster delivers text into the focused field.
type Paster interface {
	Paste(ctx context.Context, text string) error
}

// Notifier gives audible feedback.
type Notifier interface {
	Success()
	Rejected()
}

// History records successful augmentations.
type History interface {
	Record(ctx context.Context, query, result string, at time.Time) (store.Entry, error)
}

// Invalidator discards pending trigger input.
type Invalidator interface {
	Clear()
}

// Deps are the collaborators a Coordinator drives. History may be nil.
type Deps struct {
	Client  Augmenter
	Synth   keystroke.Synthesizer
	Paster  Paster
	Notify  Notifier
	History History
	Buffer  Invalidator
}

// Options tunes the feedback text and retry behavior.
type Options struct {
	Placeholder   string
	FailureFormat string
	Retry         augment.RetryPolicy
	Logger        *slog.Logger

	// Now stamps history entries. Defaults to time.Now.
	Now func() time.Time
}

// Outcome is the completion of one network call.
type Outcome struct {
	Query   string
	Result  string
	Err     error
	Elapsed time.Duration
}

// Coordinator owns the in-flight flag.
type Coordinator struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	state   atomic.Int32
	results chan Outcome
	wg      sync.WaitGroup

	mu       sync.Mutex
	rejected int
}

// New creates an idle Coordinator.
func New(deps Deps, opts Options) *Coordinator {
	if opts.Placeholder == "" {
		opts.Placeholder = DefaultPlaceholder
	}
	if opts.FailureFormat == "" {
		opts.FailureFormat = DefaultFailureFormat
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "coordinator")
	}
	return &Coordinator{
		deps:   deps,
		opts:   opts,
		logger: logger,
		// One slot is enough: only one call is ever outstanding.
		results: make(chan Outcome, 1),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Results delivers completed calls. The consumer passes each Outcome to
// Deliver.
func (c *Coordinator) Results() <-chan Outcome {
	return c.results
}

// Rejected returns how many triggers were refused while busy.
func (c *Coordinator) Rejected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejected
}

// Submit starts a request for an augmentation trigger. It reports false
// when a request is already outstanding; the trigger text then stays on
// screen. ctx bounds the network call.
func (c *Coordinator) Submit(ctx context.Context, a trigger.Action) (bool, error) {
	if a.Kind != trigger.AugmentationTrigger {
		return false, ErrNotAugmentation
	}
	if !c.state.CompareAndSwap(int32(Idle), int32(InFlight)) {
		c.mu.Lock()
		c.rejected++
		c.mu.Unlock()
		c.logger.Info("augmentation rejected, request in flight", "state", c.State())
		c.deps.Notify.Rejected()
		return false, nil
	}

	started := false
	defer func() {
		if !started {
			c.release()
		}
	}()

	if err := c.deps.Synth.Backspace(ctx, a.Erase()); err != nil {
		c.logger.Warn("erase trigger failed", "error", err)
	}
	if err := c.deps.Synth.Type(ctx, c.opts.Placeholder); err != nil {
		c.logger.Warn("type placeholder failed", "error", err)
	}

	c.logger.Debug("augmentation started", "query_len", utf8.RuneCountInString(a.Query))
	c.wg.Add(1)
	started = true
	go c.call(ctx, a.Query)
	return true, nil
}

func (c *Coordinator) call(ctx context.Context, query string) {
	defer c.wg.Done()
	begin := time.Now()
	out := Outcome{Query: query}
	defer func() {
		if v := recover(); v != nil {
			out.Result = ""
			out.Err = fmt.Errorf("coordinator: augmentation call panicked: %v", v)
		}
		out.Elapsed = time.Since(begin)
		c.results <- out
	}()
	out.Result, out.Err = c.deps.Client.Call(ctx, query, c.opts.Retry)
}

// Deliver replaces the placeholder with the outcome and returns to Idle.
// The flag is released and the buffer cleared on every path, panics
// included.
func (c *Coordinator) Deliver(ctx context.Context, out Outcome) {
	c.state.Store(int32(Delivering))
	defer c.release()

	if err := c.deps.Synth.Backspace(ctx, utf8.RuneCountInString(c.opts.Placeholder)); err != nil {
		c.logger.Warn("erase placeholder failed", "error", err)
	}

	if out.Err != nil {
		c.logger.Warn("augmentation failed",
			"kind", augment.KindOf(out.Err),
			"error", out.Err,
			"elapsed", out.Elapsed)
		c.fail(ctx, augment.UserMessage(out.Err))
		return
	}

	if err := c.deps.Paster.Paste(ctx, out.Result); err != nil {
		c.logger.Error("paste result failed", "error", err)
		c.fail(ctx, "Paste failed")
		return
	}

	if c.deps.History != nil {
		if _, err := c.deps.History.Record(ctx, out.Query, out.Result, c.opts.Now()); err != nil {
			c.logger.Warn("record history failed", "error", err)
		}
	}
	c.logger.Info("augmentation delivered",
		"result_len", utf8.RuneCountInString(out.Result),
		"elapsed", out.Elapsed)
	c.deps.Notify.Success()
}

func (c *Coordinator) fail(ctx context.Context, reason string) {
	msg := fmt.Sprintf(c.opts.FailureFormat, reason)
	if err := c.deps.Synth.Type(ctx, msg); err != nil {
		c.logger.Warn("type failure message failed", "error", err)
	}
}

func (c *Coordinator) release() {
	c.deps.Buffer.Clear()
	c.state.Store(int32(Idle))
}

// Wait blocks until no network call goroutine is running.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
