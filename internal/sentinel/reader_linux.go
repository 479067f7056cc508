//go:build linux

package sentinel

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// linuxReader reads the X11 active window with xdotool, falling back to
// xprop. Wayland compositors do not expose the active window to clients.
type linuxReader struct {
	displayType string // "x11", "wayland", or "unknown"
}

func newPlatformReader() ForegroundReader {
	return &linuxReader{displayType: detectDisplay()}
}

// detectDisplay determines the display server type.
func detectDisplay() string {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		// XWayland still answers X11 queries for X clients.
		if os.Getenv("DISPLAY") != "" {
			return "x11"
		}
		return "wayland"
	}
	if os.Getenv("DISPLAY") != "" {
		return "x11"
	}
	return "unknown"
}

// Available checks if focus detection is available.
func (r *linuxReader) Available() (bool, string) {
	switch r.displayType {
	case "x11":
		if _, err := exec.LookPath("xdotool"); err == nil {
			return true, "X11 focus detection available (xdotool)"
		}
		if _, err := exec.LookPath("xprop"); err == nil {
			return true, "X11 focus detection available (xprop)"
		}
		return false, "X11 detected but xdotool/xprop not found. Install: sudo apt install xdotool"
	case "wayland":
		return false, "Wayland detected. The active window is not visible to clients."
	default:
		return false, "Unknown display server. Focus detection requires X11."
	}
}

// Foreground returns the active window.
func (r *linuxReader) Foreground() (WindowInfo, error) {
	if r.displayType != "x11" {
		return WindowInfo{}, ErrNotAvailable
	}
	if info, err := foregroundXdotool(); err == nil {
		return info, nil
	}
	return foregroundXprop()
}

func foregroundXdotool() (WindowInfo, error) {
	out, err := exec.Command("xdotool", "getactivewindow").Output()
	if err != nil {
		return WindowInfo{}, err
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return WindowInfo{}, fmt.Errorf("sentinel: parse window id: %w", err)
	}
	if id == 0 {
		return WindowInfo{}, ErrNoForeground
	}

	info := WindowInfo{Handle: id, Timestamp: time.Now()}
	windowID := strconv.FormatUint(id, 10)

	if out, err := exec.Command("xdotool", "getwindowname", windowID).Output(); err == nil {
		info.Title = strings.TrimSpace(string(out))
	}
	if out, err := exec.Command("xdotool", "getwindowpid", windowID).Output(); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(out))); err == nil {
			info.PID = pid
			enrichFromProc(&info)
		}
	}
	return info, nil
}

func foregroundXprop() (WindowInfo, error) {
	out, err := exec.Command("xprop", "-root", "_NET_ACTIVE_WINDOW").Output()
	if err != nil {
		return WindowInfo{}, err
	}
	id, err := parseActiveWindow(string(out))
	if err != nil {
		return WindowInfo{}, err
	}

	info := WindowInfo{Handle: id, Timestamp: time.Now()}
	props, err := exec.Command("xprop", "-id", strconv.FormatUint(id, 10), "WM_NAME", "WM_CLASS", "_NET_WM_PID").Output()
	if err == nil {
		parseWindowProps(string(props), &info)
	}
	enrichFromProc(&info)
	return info, nil
}

// parseActiveWindow parses "_NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007".
func parseActiveWindow(out string) (uint64, error) {
	parts := strings.Fields(out)
	if len(parts) < 5 {
		return 0, errors.New("sentinel: failed to parse xprop output")
	}
	raw := strings.TrimSuffix(parts[len(parts)-1], ",")
	id, err := strconv.ParseUint(strings.TrimPrefix(raw, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("sentinel: parse window id %q: %w", raw, err)
	}
	if id == 0 {
		return 0, ErrNoForeground
	}
	return id, nil
}

// parseWindowProps fills title, class and pid from xprop -id output.
func parseWindowProps(out string, info *WindowInfo) {
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "WM_NAME"):
			if idx := strings.Index(line, "= \""); idx != -1 {
				if end := strings.LastIndex(line, "\""); end > idx+3 {
					info.Title = line[idx+3 : end]
				}
			}
		case strings.HasPrefix(line, "WM_CLASS"):
			// WM_CLASS(STRING) = "instance", "class"
			if idx := strings.Index(line, ", \""); idx != -1 {
				if end := strings.LastIndex(line, "\""); end > idx+3 {
					info.Application = line[idx+3 : end]
				}
			}
		case strings.HasPrefix(line, "_NET_WM_PID"):
			if idx := strings.Index(line, "= "); idx != -1 {
				if pid, err := strconv.Atoi(strings.TrimSpace(line[idx+2:])); err == nil {
					info.PID = pid
				}
			}
		}
	}
}

// enrichFromProc replaces the application with the executable name from
// /proc, which is what exclusion lists name.
func enrichFromProc(info *WindowInfo) {
	if info.PID <= 0 {
		return
	}
	if target, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", info.PID)); err == nil {
		info.Application = filepath.Base(target)
		return
	}
	if data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", info.PID)); err == nil {
		if comm := strings.TrimSpace(string(data)); comm != "" {
			info.Application = comm
		}
	}
}
