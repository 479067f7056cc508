//go:build linux

package keystroke

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// LinuxHook reads key events from /dev/input keyboards.
//
// evdev reports physical keys only, so characters are produced with a US
// layout and the tracked shift state. Events injected through XTEST (xdotool)
// never reach evdev and are therefore not seen here.
type LinuxHook struct {
	baseHook
	cancel context.CancelFunc
	wg     sync.WaitGroup

	fileMu sync.Mutex
	files  []*os.File

	stateMu sync.Mutex
	shift   int
	caps    bool
}

func newPlatformHook() Hook {
	return &LinuxHook{}
}

// Available checks if we can read input devices.
func (l *LinuxHook) Available() (bool, string) {
	devices, err := findKeyboardDevices()
	if err != nil {
		return false, fmt.Sprintf("cannot find keyboard devices: %v", err)
	}
	if len(devices) == 0 {
		return false, "no keyboard devices found"
	}

	for _, dev := range devices {
		f, err := os.OpenFile(dev, os.O_RDONLY, 0)
		if err == nil {
			f.Close()
			return true, fmt.Sprintf("found keyboard device: %s", dev)
		}
	}

	return false, "cannot read keyboard devices (need to be in 'input' group or run as root)"
}

// findKeyboardDevices finds /dev/input devices that are keyboards.
func findKeyboardDevices() ([]string, error) {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseInputDevices(f), nil
}

// parseInputDevices extracts event handlers of devices with an EV_KEY bitmap
// wide enough to be a keyboard.
func parseInputDevices(r io.Reader) []string {
	var devices []string
	seen := make(map[string]bool)
	add := func(dev string) {
		if !seen[dev] {
			seen[dev] = true
			devices = append(devices, dev)
		}
	}

	scanner := bufio.NewScanner(r)
	var handler string
	keyboard := false
	flush := func() {
		if keyboard && handler != "" {
			add(handler)
		}
		handler = ""
		keyboard = false
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "H: Handlers="):
			fields := strings.Fields(strings.TrimPrefix(line, "H: Handlers="))
			hasKbd := false
			for _, part := range fields {
				if part == "kbd" {
					hasKbd = true
				}
				if strings.HasPrefix(part, "event") {
					handler = "/dev/input/" + part
				}
			}
			if !hasKbd {
				handler = ""
			}
		case strings.HasPrefix(line, "B: KEY="):
			// Mice and power buttons report a short bitmap.
			if len(strings.Fields(strings.TrimPrefix(line, "B: KEY="))) >= 4 {
				keyboard = true
			}
		case line == "":
			flush()
		}
	}
	flush()

	if matches, _ := filepath.Glob("/dev/input/by-id/*-event-kbd"); len(matches) > 0 {
		for _, m := range matches {
			if target, err := filepath.EvalSymlinks(m); err == nil {
				add(target)
			}
		}
	}

	return devices
}

// Start opens every readable keyboard and begins delivering events to h.
func (l *LinuxHook) Start(ctx context.Context, h Handler) error {
	if l.IsRunning() {
		return ErrAlreadyRunning
	}

	devices, err := findKeyboardDevices()
	if err != nil || len(devices) == 0 {
		return ErrNotAvailable
	}

	var files []*os.File
	var openErr error
	for _, dev := range devices {
		f, err := os.OpenFile(dev, os.O_RDONLY, 0)
		if err != nil {
			openErr = err
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		if errors.Is(openErr, os.ErrPermission) {
			return ErrPermissionDenied
		}
		return ErrNotAvailable
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.fileMu.Lock()
	l.files = files
	l.fileMu.Unlock()
	l.setHandler(h)

	for _, f := range files {
		l.wg.Add(1)
		go l.readLoop(f)
	}

	go func() {
		<-ctx.Done()
		l.closeFiles()
	}()

	return nil
}

const (
	evKey       = 1
	valueUp     = 0
	valueDown   = 1
	valueRepeat = 2
)

// eventSize matches struct input_event: a timeval followed by type, code
// and value.
var eventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

func (l *LinuxHook) readLoop(f *os.File) {
	defer l.wg.Done()

	r := bufio.NewReaderSize(f, eventSize*64)
	buf := make([]byte, eventSize)
	for {
		// Closing the file unblocks the read.
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}

		off := eventSize - 8
		typ := binary.LittleEndian.Uint16(buf[off : off+2])
		code := binary.LittleEndian.Uint16(buf[off+2 : off+4])
		value := int32(binary.LittleEndian.Uint32(buf[off+4 : off+8]))
		if typ != evKey {
			continue
		}

		var dir Direction
		switch value {
		case valueDown, valueRepeat:
			dir = KeyDown
		case valueUp:
			dir = KeyUp
		default:
			continue
		}

		name := l.translate(code, dir, value == valueDown)
		l.dispatch(Event{Name: name, Direction: dir, Timestamp: time.Now()})
	}
}

// translate tracks shift and caps lock and returns the logical key name.
func (l *LinuxHook) translate(code uint16, dir Direction, press bool) string {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	switch code {
	case codeLeftShift, codeRightShift:
		if dir == KeyDown && press {
			l.shift++
		} else if dir == KeyUp && l.shift > 0 {
			l.shift--
		}
	case codeCapsLock:
		if press {
			l.caps = !l.caps
		}
	}

	if name, ok := evdevNamed[code]; ok {
		return name
	}
	k, ok := evdevChars[code]
	if !ok {
		return KeyUnknown
	}
	upper := l.shift > 0
	if k.letter && l.caps {
		upper = !upper
	}
	if upper {
		return string(k.shifted)
	}
	return string(k.plain)
}

func (l *LinuxHook) closeFiles() {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()
	for _, f := range l.files {
		f.Close()
	}
	l.files = nil
}

// Stop closes the devices and waits for the readers to exit.
func (l *LinuxHook) Stop() error {
	if !l.IsRunning() {
		return nil
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.closeFiles()
	l.wg.Wait()
	l.clear()
	return nil
}

var _ Hook = (*LinuxHook)(nil)
