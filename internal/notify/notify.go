// Package notify gives audible or visual feedback for augmentation outcomes.
//
// Each platform has a preferred mechanism (MessageBeep on Windows, desktop
// notifications over D-Bus on Linux). When it is missing or fails, the
// terminal bell is written instead.
package notify

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Event is the outcome being signalled.
type Event int

const (
	// EventSuccess follows a delivered augmentation result.
	EventSuccess Event = iota
	// EventRejected follows a trigger refused because a request is in flight.
	EventRejected
)

func (e Event) String() string {
	switch e {
	case EventSuccess:
		return "success"
	case EventRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Backend delivers one event through a platform mechanism.
type Backend interface {
	Alert(ev Event) error
}

// ErrUnavailable is returned by backends that cannot run here.
var ErrUnavailable = errors.New("notify: no notification mechanism on this platform")

// Bell is the fallback sequence.
const Bell = "\a"

// Notifier signals outcomes, falling back to the bell.
type Notifier struct {
	mu      sync.Mutex
	backend Backend
	bell    io.Writer
	logger  *slog.Logger
}

// New creates a Notifier with the platform backend.
func New(logger *slog.Logger) *Notifier {
	return NewWithBackend(newPlatformBackend(), os.Stdout, logger)
}

// NewWithBackend creates a Notifier using b and writing the fallback bell
// to bell. A nil backend always rings the bell.
func NewWithBackend(b Backend, bell io.Writer, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default().With("component", "notify")
	}
	if bell == nil {
		bell = io.Discard
	}
	return &Notifier{backend: b, bell: bell, logger: logger}
}

// Success signals a delivered result.
func (n *Notifier) Success() {
	n.notify(EventSuccess)
}

// Rejected signals a refused trigger.
func (n *Notifier) Rejected() {
	n.notify(EventRejected)
}

func (n *Notifier) notify(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.backend != nil {
		err := n.backend.Alert(ev)
		if err == nil {
			n.logger.Debug("played notification", "event", ev)
			return
		}
		n.logger.Warn("notification failed, falling back to bell", "event", ev, "error", err)
	}
	if _, err := io.WriteString(n.bell, Bell); err != nil {
		n.logger.Warn("bell failed", "error", err)
	}
}

// Recorder is a Backend for tests that records events.
type Recorder struct {
	mu     sync.Mutex
	events []Event

	// Err, when set, is returned by Alert.
	Err error
}

// Alert records ev.
func (r *Recorder) Alert(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

// Events returns the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
