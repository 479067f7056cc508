// Package keystroke connects PromptAssist to the operating system's keyboard.
//
// It has two halves:
//   - Hook delivers live key transitions from a system-wide low-level hook.
//   - Synthesizer types text, backspaces and the paste chord into the
//     currently focused input target.
//
// Events are not stored here. The hook hands each transition to a Handler
// synchronously on the OS callback thread, so handlers must return quickly.
//
// Platform support:
//   - Windows: WH_KEYBOARD_LL hook and SendInput
//   - Linux: /dev/input evdev reader (input group or root) and xdotool
package keystroke

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Direction distinguishes key presses from releases.
type Direction int

const (
	// KeyDown is a press (or an auto-repeat of a held key).
	KeyDown Direction = iota
	// KeyUp is a release.
	KeyUp
)

// Event is one physical key transition annotated with a logical key name.
//
// Name uses the conventional lower-case names ("space", "backspace", "ctrl",
// "left ctrl", "shift", "f5", ...) for non-printing keys and the produced
// character itself ("a", "A", "(", "é") for printing keys.
type Event struct {
	Name      string
	Direction Direction
	Timestamp time.Time
}

// Down reports whether the event is a key press.
func (e Event) Down() bool {
	return e.Direction == KeyDown
}

// Handler receives events on the hook's callback thread.
type Handler func(Event)

// Hook delivers keyboard events from a system-wide hook.
type Hook interface {
	// Start installs the hook and begins delivering events to h.
	Start(ctx context.Context, h Handler) error

	// Stop removes the hook. Stop on a stopped hook is a no-op.
	Stop() error

	// Available returns true if the hook can be installed on this
	// platform with current permissions.
	Available() (bool, string)
}

// New creates a Hook for the current platform.
func New() Hook {
	return newPlatformHook()
}

var (
	// ErrNotAvailable is returned when no keyboard hook exists for this platform.
	ErrNotAvailable = errors.New("keystroke: keyboard hook not available on this platform")

	// ErrPermissionDenied is returned when permissions are insufficient.
	ErrPermissionDenied = errors.New("keystroke: insufficient permissions for keyboard hook")

	// ErrAlreadyRunning is returned when Start is called while already running.
	ErrAlreadyRunning = errors.New("keystroke: hook already running")
)

// baseHook provides common functionality for platform implementations.
type baseHook struct {
	mu      sync.RWMutex
	handler Handler
	running bool
}

// setHandler stores the handler and marks the hook running.
func (b *baseHook) setHandler(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
	b.running = true
}

// clear drops the handler and marks the hook stopped.
func (b *baseHook) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = nil
	b.running = false
}

// IsRunning returns the running state.
func (b *baseHook) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// dispatch forwards ev to the installed handler, if any.
func (b *baseHook) dispatch(ev Event) {
	b.mu.RLock()
	h := b.handler
	b.mu.RUnlock()
	if h != nil {
		h(ev)
	}
}

// SimulatedHook is a hook for testing that doesn't touch the real keyboard.
type SimulatedHook struct {
	baseHook
}

// NewSimulated creates a hook for testing.
func NewSimulated() *SimulatedHook {
	return &SimulatedHook{}
}

// Start begins delivering simulated events to h.
func (s *SimulatedHook) Start(ctx context.Context, h Handler) error {
	if s.IsRunning() {
		return ErrAlreadyRunning
	}
	s.setHandler(h)
	return nil
}

// Stop stops delivery.
func (s *SimulatedHook) Stop() error {
	s.clear()
	return nil
}

// Available returns true (simulated is always available).
func (s *SimulatedHook) Available() (bool, string) {
	return true, "simulated hook (for testing)"
}

// Press delivers a key-down followed by a key-up for name.
func (s *SimulatedHook) Press(name string) {
	now := time.Now()
	s.dispatch(Event{Name: name, Direction: KeyDown, Timestamp: now})
	s.dispatch(Event{Name: name, Direction: KeyUp, Timestamp: now})
}

// Send delivers a single event.
func (s *SimulatedHook) Send(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.dispatch(ev)
}

// Type presses each character of text, mapping ' ' to "space".
func (s *SimulatedHook) Type(text string) {
	for _, r := range text {
		if r == ' ' {
			s.Press(KeySpace)
			continue
		}
		s.Press(string(r))
	}
}

// Chord presses ctrl, presses and releases key, then releases ctrl.
func (s *SimulatedHook) Chord(key string) {
	s.Send(Event{Name: KeyCtrl, Direction: KeyDown})
	s.Press(key)
	s.Send(Event{Name: KeyCtrl, Direction: KeyUp})
}
