//go:build windows

package keystroke

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ============================================================================
// Windows low-level keyboard hook
// ============================================================================
//
// WH_KEYBOARD_LL callbacks run on the thread that installed the hook, and
// only while that thread pumps messages. The hook therefore owns a locked OS
// thread running GetMessageW until Stop posts WM_QUIT to it.
//
// Windows removes a hook whose callback exceeds LowLevelHooksTimeout, so the
// callback translates the key and hands it to the Handler without blocking.
//
// Events with LLKHF_INJECTED set come from SendInput (including our own
// Synthesizer) and are skipped.

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procGetKeyState         = user32.NewProc("GetKeyState")
	procGetAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
	procToUnicodeEx         = user32.NewProc("ToUnicodeEx")
	procGetKeyboardLayout   = user32.NewProc("GetKeyboardLayout")
	procGetModuleHandleW    = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL  = 13
	hcAction      = 0
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmQuit        = 0x0012
	llkhfInjected = 0x10
)

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type winMsg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	PtX     int32
	PtY     int32
}

var namedKeys = map[uint32]string{
	0x08: KeyBackspace,
	0x09: KeyTab,
	0x0D: KeyEnter,
	0x1B: KeyEscape,
	0x20: KeySpace,
	0x2E: KeyDelete,
	0x11: KeyCtrl,
	0xA2: KeyLeftCtrl,
	0xA3: KeyRightCtrl,
	0x10: KeyShift,
	0xA0: "left shift",
	0xA1: "right shift",
	0x12: KeyAlt,
	0xA4: "left alt",
	0xA5: "right alt",
	0x5B: "left windows",
	0x5C: "right windows",
	0x14: "caps lock",
	0x21: "page up",
	0x22: "page down",
	0x23: "end",
	0x24: "home",
	0x25: "left",
	0x26: "up",
	0x27: "right",
	0x28: "down",
	0x2D: "insert",
}

// WindowsHook implements Hook with SetWindowsHookEx(WH_KEYBOARD_LL).
type WindowsHook struct {
	baseHook
	threadID uint32
	hook     uintptr
	done     chan struct{}
}

// There is one process-wide callback; it forwards to the active hook.
var (
	activeMu     sync.RWMutex
	activeHook   *WindowsHook
	callbackOnce sync.Once
	callbackPtr  uintptr
)

func newPlatformHook() Hook {
	return &WindowsHook{}
}

// Available returns true; low-level hooks need no special privilege.
func (w *WindowsHook) Available() (bool, string) {
	return true, "Windows low-level keyboard hook (WH_KEYBOARD_LL)"
}

// Start installs the hook on a dedicated OS thread.
func (w *WindowsHook) Start(ctx context.Context, h Handler) error {
	if w.IsRunning() {
		return ErrAlreadyRunning
	}

	callbackOnce.Do(func() {
		callbackPtr = windows.NewCallback(lowLevelKeyboardProc)
	})

	activeMu.Lock()
	if activeHook != nil {
		activeMu.Unlock()
		return ErrAlreadyRunning
	}
	activeHook = w
	activeMu.Unlock()

	w.setHandler(h)
	w.done = make(chan struct{})
	ready := make(chan error, 1)

	go w.messageLoop(ready)

	if err := <-ready; err != nil {
		w.release()
		return err
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = w.Stop()
		case <-w.done:
		}
	}()

	return nil
}

// messageLoop installs the hook and pumps messages until WM_QUIT.
func (w *WindowsHook) messageLoop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	w.threadID = windows.GetCurrentThreadId()

	module, _, _ := procGetModuleHandleW.Call(0)
	hook, _, err := procSetWindowsHookExW.Call(whKeyboardLL, callbackPtr, module, 0)
	if hook == 0 {
		ready <- fmt.Errorf("keystroke: SetWindowsHookEx: %w", err)
		return
	}
	w.hook = hook
	ready <- nil

	var m winMsg
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		// 0 is WM_QUIT, -1 is an error; both end the loop.
		if ret == 0 || int32(ret) == -1 {
			break
		}
	}

	procUnhookWindowsHookEx.Call(w.hook)
	w.hook = 0
}

// Stop removes the hook and waits for the message loop to exit.
func (w *WindowsHook) Stop() error {
	if !w.IsRunning() {
		return nil
	}
	procPostThreadMessageW.Call(uintptr(w.threadID), wmQuit, 0, 0)
	<-w.done
	w.release()
	return nil
}

func (w *WindowsHook) release() {
	w.clear()
	activeMu.Lock()
	if activeHook == w {
		activeHook = nil
	}
	activeMu.Unlock()
}

// lowLevelKeyboardProc is the WH_KEYBOARD_LL callback.
func lowLevelKeyboardProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == hcAction {
		kb := (*kbdllHookStruct)(unsafe.Pointer(lParam))
		if kb.Flags&llkhfInjected == 0 {
			activeMu.RLock()
			w := activeHook
			activeMu.RUnlock()
			if w != nil {
				w.handle(wParam, kb)
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func (w *WindowsHook) handle(wParam uintptr, kb *kbdllHookStruct) {
	var dir Direction
	switch wParam {
	case wmKeyDown, wmSysKeyDown:
		dir = KeyDown
	case wmKeyUp, wmSysKeyUp:
		dir = KeyUp
	default:
		return
	}

	name := KeyUnknown
	if dir == KeyUp {
		// Only named keys matter on release.
		if n, ok := namedKeys[kb.VkCode]; ok {
			name = n
		}
	} else {
		name = keyName(kb.VkCode, kb.ScanCode)
	}

	w.dispatch(Event{Name: name, Direction: dir, Timestamp: time.Now()})
}

// keyName maps a virtual key to its logical name, translating printing keys
// through the foreground thread's keyboard layout.
func keyName(vk, scan uint32) string {
	if n, ok := namedKeys[vk]; ok {
		return n
	}
	if vk >= 0x70 && vk <= 0x87 {
		return fmt.Sprintf("f%d", vk-0x6F)
	}

	// The hook thread's own queue never sees key messages, so Shift is
	// read from the asynchronous (physical) state. GetAsyncKeyState's low
	// bit means "pressed since last call", so the Caps Lock toggle still
	// comes from GetKeyState.
	state := layoutState(asyncKeyState(vkShift), keyState(vkCapital))

	var tid uint32
	if fg := windows.GetForegroundWindow(); fg != 0 {
		tid, _ = windows.GetWindowThreadProcessId(fg, nil)
	}
	layout, _, _ := procGetKeyboardLayout.Call(uintptr(tid))

	var buf [4]uint16
	// Flag 0x4 leaves the kernel keyboard state (dead keys) untouched.
	n, _, _ := procToUnicodeEx.Call(
		uintptr(vk),
		uintptr(scan),
		uintptr(unsafe.Pointer(&state[0])),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0x4,
		layout,
	)
	if count := int32(n); count > 0 {
		return string(utf16.Decode(buf[:count]))
	}
	return KeyUnknown
}

func asyncKeyState(vk int) uint16 {
	ret, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return uint16(ret)
}

func keyState(vk int) uint16 {
	ret, _, _ := procGetKeyState.Call(uintptr(vk))
	return uint16(ret)
}

var _ Hook = (*WindowsHook)(nil)
