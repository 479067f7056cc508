//go:build windows

package notify

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var (
	user32          = windows.NewLazySystemDLL("user32.dll")
	procMessageBeep = user32.NewProc("MessageBeep")
)

const (
	mbIconHand     = 0x10
	mbIconAsterisk = 0x40
)

// beepBackend plays the SystemAsterisk / SystemHand sounds.
type beepBackend struct{}

func newPlatformBackend() Backend {
	return beepBackend{}
}

func (beepBackend) Alert(ev Event) error {
	kind := uintptr(mbIconAsterisk)
	if ev == EventRejected {
		kind = mbIconHand
	}
	if ret, _, err := procMessageBeep.Call(kind); ret == 0 {
		return fmt.Errorf("notify: MessageBeep: %w", err)
	}
	return nil
}
