package keystroke

import "context"

// unavailableSynthesizer fails every call with ErrSynthesisUnavailable.
type unavailableSynthesizer struct{}

func (unavailableSynthesizer) Backspace(context.Context, int) error { return ErrSynthesisUnavailable }
func (unavailableSynthesizer) Type(context.Context, string) error   { return ErrSynthesisUnavailable }
func (unavailableSynthesizer) Paste(context.Context) error          { return ErrSynthesisUnavailable }
