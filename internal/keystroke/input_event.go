package keystroke

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Logical key names shared by every platform hook.
const (
	KeySpace     = "space"
	KeyBackspace = "backspace"
	KeyEnter     = "enter"
	KeyTab       = "tab"
	KeyEscape    = "esc"
	KeyDelete    = "delete"
	KeyCtrl      = "ctrl"
	KeyLeftCtrl  = "left ctrl"
	KeyRightCtrl = "right ctrl"
	KeyShift     = "shift"
	KeyAlt       = "alt"
	KeyWindows   = "windows"
	KeyUnknown   = "unknown"
)

// InputType categorizes a logical key name.
type InputType int

const (
	InputTypeUnknown   InputType = iota
	InputTypeCharacter           // produces a single printable character
	InputTypeSpace
	InputTypeBackspace
	InputTypeControl // ctrl on either side
	InputTypeModifier
	InputTypeOther // navigation, function keys, enter, ...
)

var controlNames = map[string]bool{
	KeyCtrl:      true,
	KeyLeftCtrl:  true,
	KeyRightCtrl: true,
	"control":    true,
	"left_ctrl":  true,
	"right_ctrl": true,
}

var modifierNames = map[string]bool{
	KeyShift:        true,
	"left shift":    true,
	"right shift":   true,
	KeyAlt:          true,
	"left alt":      true,
	"right alt":     true,
	"alt gr":        true,
	KeyWindows:      true,
	"left windows":  true,
	"right windows": true,
	"caps lock":     true,
}

// Classify returns the InputType of a logical key name.
func Classify(name string) InputType {
	switch {
	case name == KeySpace:
		return InputTypeSpace
	case name == KeyBackspace:
		return InputTypeBackspace
	case controlNames[strings.ToLower(name)]:
		return InputTypeControl
	case modifierNames[strings.ToLower(name)]:
		return InputTypeModifier
	}
	if _, ok := PrintableRune(name); ok {
		return InputTypeCharacter
	}
	if name == "" {
		return InputTypeUnknown
	}
	return InputTypeOther
}

// IsControl reports whether name is either control key.
func IsControl(name string) bool {
	return controlNames[strings.ToLower(name)]
}

// PrintableRune returns the character a key name produces, if it is a
// single printable character.
func PrintableRune(name string) (rune, bool) {
	if utf8.RuneCountInString(name) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsControl(r) || !unicode.IsPrint(r) {
		return 0, false
	}
	return r, true
}
