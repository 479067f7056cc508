//go:build windows

package keystroke

import (
	"context"
	"fmt"
	"unicode/utf16"
	"unsafe"
)

var procSendInput = user32.NewProc("SendInput")

const (
	inputKeyboard    = 1
	keyeventfKeyUp   = 0x0002
	keyeventfUnicode = 0x0004
	vkBack           = 0x08
	vkControl        = 0x11
	vkV              = 0x56
)

type keybdInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

// input mirrors INPUT; the padding covers the larger MOUSEINPUT member.
type input struct {
	inputType uint32
	ki        keybdInput
	padding   uint64
}

// windowsSynthesizer injects keys with SendInput. Injected events carry
// LLKHF_INJECTED and are ignored by WindowsHook.
type windowsSynthesizer struct{}

func newPlatformSynthesizer() Synthesizer {
	return windowsSynthesizer{}
}

func vkEvent(vk uint16, up bool) input {
	in := input{inputType: inputKeyboard}
	in.ki.wVk = vk
	if up {
		in.ki.dwFlags = keyeventfKeyUp
	}
	return in
}

func unicodeEvent(unit uint16, up bool) input {
	in := input{inputType: inputKeyboard}
	in.ki.wScan = unit
	in.ki.dwFlags = keyeventfUnicode
	if up {
		in.ki.dwFlags |= keyeventfKeyUp
	}
	return in
}

func sendInputs(inputs []input) error {
	if len(inputs) == 0 {
		return nil
	}
	n, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(n) != len(inputs) {
		return fmt.Errorf("keystroke: SendInput inserted %d of %d events: %w", n, len(inputs), err)
	}
	return nil
}

func (windowsSynthesizer) Backspace(ctx context.Context, n int) error {
	inputs := make([]input, 0, n*2)
	for i := 0; i < n; i++ {
		inputs = append(inputs, vkEvent(vkBack, false), vkEvent(vkBack, true))
	}
	return sendInputs(inputs)
}

func (windowsSynthesizer) Type(ctx context.Context, text string) error {
	units := utf16.Encode([]rune(text))
	inputs := make([]input, 0, len(units)*2)
	for _, u := range units {
		inputs = append(inputs, unicodeEvent(u, false), unicodeEvent(u, true))
	}
	return sendInputs(inputs)
}

func (windowsSynthesizer) Paste(ctx context.Context) error {
	return sendInputs([]input{
		vkEvent(vkControl, false),
		vkEvent(vkV, false),
		vkEvent(vkV, true),
		vkEvent(vkControl, true),
	})
}
