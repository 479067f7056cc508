package sentinel

import (
	"sync"
	"time"
)

// SimulatedReader is a ForegroundReader for testing. Each Foreground call
// returns the window most recently passed to Focus, or the configured error.
type SimulatedReader struct {
	mu    sync.Mutex
	info  WindowInfo
	err   error
	reads int
}

// NewSimulatedReader creates a reader with no foreground window.
func NewSimulatedReader() *SimulatedReader {
	return &SimulatedReader{err: ErrNoForeground}
}

// Focus makes the given window the foreground window.
func (s *SimulatedReader) Focus(handle uint64, app string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = WindowInfo{Handle: handle, Application: app, Timestamp: time.Now()}
	s.err = nil
}

// Fail makes subsequent reads return err.
func (s *SimulatedReader) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Foreground returns the simulated foreground window.
func (s *SimulatedReader) Foreground() (WindowInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return WindowInfo{}, s.err
	}
	return s.info, nil
}

// Available returns true.
func (s *SimulatedReader) Available() (bool, string) {
	return true, "simulated foreground reader (for testing)"
}

// Reads returns how many times Foreground was called.
func (s *SimulatedReader) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
