package keystroke

// Virtual-key codes used to build a keyboard layout state.
const (
	vkShift   = 0x10
	vkCapital = 0x14
)

// layoutState builds the 256-byte key state ToUnicodeEx translates with,
// from a Shift reading (high bit set while held) and a Caps Lock reading
// (low bit set while toggled on). Control is left out so ctrl+letter still
// yields the letter.
func layoutState(shift, capital uint16) [256]byte {
	var state [256]byte
	if shift&0x8000 != 0 {
		state[vkShift] = 0x80
	}
	if capital&0x0001 != 0 {
		state[vkCapital] = 0x01
	}
	return state
}
