// Package sentinel watches the foreground window.
//
// A FocusGuard polls the OS for the foreground window and invalidates the
// trigger buffer whenever focus moves to a different window, unless the new
// window belongs to an excluded application. Reading the foreground window
// can fail transiently (permission denied, process exited); such a tick is
// skipped.
//
// Platform implementations of ForegroundReader are in reader_windows.go,
// reader_linux.go and reader_other.go.
package sentinel

import (
	"errors"
	"fmt"
	"time"
)

// WindowInfo describes the foreground window at one poll tick.
type WindowInfo struct {
	// Handle identifies the window (HWND on Windows, X11 window id on Linux).
	Handle uint64

	// Application is the base name of the owning executable.
	Application string

	// Title is the window title, if available.
	Title string

	// PID is the process ID of the owning application.
	PID int

	// Timestamp is when this focus info was captured.
	Timestamp time.Time
}

func (w WindowInfo) String() string {
	return fmt.Sprintf("%s (pid %d, window %#x)", w.Application, w.PID, w.Handle)
}

// ForegroundReader reads the current foreground window.
type ForegroundReader interface {
	// Foreground returns the foreground window. Handle zero means no
	// window has focus.
	Foreground() (WindowInfo, error)

	// Available returns whether the foreground window can be read on this
	// platform. The string describes the mechanism or the problem.
	Available() (bool, string)
}

// NewForegroundReader creates a reader for the current platform.
func NewForegroundReader() ForegroundReader {
	return newPlatformReader()
}

var (
	// ErrNotAvailable is returned when foreground detection is unsupported.
	ErrNotAvailable = errors.New("sentinel: not available on this platform")

	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("sentinel: already running")

	// ErrNoForeground is returned when no window has focus.
	ErrNoForeground = errors.New("sentinel: no foreground window")
)
