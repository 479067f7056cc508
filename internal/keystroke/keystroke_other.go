//go:build !linux && !windows

package keystroke

import (
	"context"
)

// StubHook is used on unsupported platforms.
type StubHook struct {
	baseHook
}

func newPlatformHook() Hook {
	return &StubHook{}
}

// Available returns false on unsupported platforms.
func (s *StubHook) Available() (bool, string) {
	return false, "keyboard hook not implemented for this platform"
}

// Start returns an error on unsupported platforms.
func (s *StubHook) Start(ctx context.Context, h Handler) error {
	return ErrNotAvailable
}

// Stop is a no-op on unsupported platforms.
func (s *StubHook) Stop() error {
	return nil
}
