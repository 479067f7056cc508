//go:build windows

package sentinel

import (
	"fmt"
	"path/filepath"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
)

// windowsReader reads the foreground window with the Win32 API.
type windowsReader struct{}

func newPlatformReader() ForegroundReader {
	return windowsReader{}
}

// Available always succeeds; the Win32 calls need no privilege.
func (windowsReader) Available() (bool, string) {
	return true, "Windows foreground window via Win32 API"
}

// Foreground returns the foreground window and its executable name.
func (windowsReader) Foreground() (WindowInfo, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return WindowInfo{}, ErrNoForeground
	}

	info := WindowInfo{
		Handle:    uint64(hwnd),
		Title:     windowText(hwnd),
		Timestamp: time.Now(),
	}

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return WindowInfo{}, fmt.Errorf("sentinel: GetWindowThreadProcessId: %w", err)
	}
	info.PID = int(pid)

	name, err := processName(pid)
	if err != nil {
		return WindowInfo{}, err
	}
	info.Application = name

	return info, nil
}

// windowText retrieves the text of a window.
func windowText(hwnd windows.HWND) string {
	length, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), length+1)
	return windows.UTF16ToString(buf)
}

// processName retrieves the executable base name for a process.
func processName(pid uint32) (string, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", fmt.Errorf("sentinel: OpenProcess %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", fmt.Errorf("sentinel: QueryFullProcessImageName %d: %w", pid, err)
	}
	return filepath.Base(windows.UTF16ToString(buf[:size])), nil
}
