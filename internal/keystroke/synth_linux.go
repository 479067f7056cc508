//go:build linux

package keystroke

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// xdotoolSynthesizer injects keys through the X11 XTEST extension.
type xdotoolSynthesizer struct{}

func newPlatformSynthesizer() Synthesizer {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return unavailableSynthesizer{}
	}
	return xdotoolSynthesizer{}
}

func runXdotool(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "xdotool", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("keystroke: xdotool %s: %w (%s)", args[0], err, out)
	}
	return nil
}

func (xdotoolSynthesizer) Backspace(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	return runXdotool(ctx, "key", "--clearmodifiers", "--repeat", strconv.Itoa(n), "BackSpace")
}

func (xdotoolSynthesizer) Type(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return runXdotool(ctx, "type", "--clearmodifiers", "--", text)
}

func (xdotoolSynthesizer) Paste(ctx context.Context) error {
	return runXdotool(ctx, "key", "--clearmodifiers", "ctrl+v")
}
