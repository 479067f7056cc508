//go:build !linux && !windows

package keystroke

func newPlatformSynthesizer() Synthesizer {
	return unavailableSynthesizer{}
}
