package keystroke

// Linux evdev key codes (linux/input-event-codes.h) mapped to logical names
// using a US layout. Kept free of build tags so the mapping is testable
// everywhere.

const (
	codeLeftShift  = 42
	codeRightShift = 54
	codeCapsLock   = 58
)

type evdevChar struct {
	plain   rune
	shifted rune
	letter  bool
}

var evdevNamed = map[uint16]string{
	1:   KeyEscape,
	14:  KeyBackspace,
	15:  KeyTab,
	28:  KeyEnter,
	29:  KeyLeftCtrl,
	42:  "left shift",
	54:  "right shift",
	56:  "left alt",
	57:  KeySpace,
	58:  "caps lock",
	59:  "f1",
	60:  "f2",
	61:  "f3",
	62:  "f4",
	63:  "f5",
	64:  "f6",
	65:  "f7",
	66:  "f8",
	67:  "f9",
	68:  "f10",
	87:  "f11",
	88:  "f12",
	96:  KeyEnter,
	97:  KeyRightCtrl,
	100: "right alt",
	102: "home",
	103: "up",
	104: "page up",
	105: "left",
	106: "right",
	107: "end",
	108: "down",
	109: "page down",
	110: "insert",
	111: KeyDelete,
	125: "left windows",
	126: "right windows",
}

var evdevChars = buildEvdevChars()

func buildEvdevChars() map[uint16]evdevChar {
	m := make(map[uint16]evdevChar)
	row := func(start uint16, plain, shifted string, letter bool) {
		p, s := []rune(plain), []rune(shifted)
		for i := range p {
			m[start+uint16(i)] = evdevChar{plain: p[i], shifted: s[i], letter: letter}
		}
	}
	row(2, "1234567890-=", "!@#$%^&*()_+", false)
	row(16, "qwertyuiop", "QWERTYUIOP", true)
	row(26, "[]", "{}", false)
	row(30, "asdfghjkl", "ASDFGHJKL", true)
	row(39, ";'`", ":\"~", false)
	m[43] = evdevChar{plain: '\\', shifted: '|'}
	row(44, "zxcvbnm", "ZXCVBNM", true)
	row(51, ",./", "<>?", false)
	return m
}
