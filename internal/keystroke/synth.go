package keystroke

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Synthesizer injects keystrokes into the focused input target.
type Synthesizer interface {
	// Backspace sends n backspace presses.
	Backspace(ctx context.Context, n int) error

	// Type types text character by character.
	Type(ctx context.Context, text string) error

	// Paste sends the platform paste chord (ctrl+v).
	Paste(ctx context.Context) error
}

// NewSynthesizer creates a Synthesizer for the current platform.
func NewSynthesizer() Synthesizer {
	return newPlatformSynthesizer()
}

// ErrSynthesisUnavailable is returned when keystrokes cannot be injected.
var ErrSynthesisUnavailable = errors.New("keystroke: keystroke synthesis not available on this platform")

// Paced wraps a Synthesizer so individual keystrokes are rate limited.
// Some targets drop characters that arrive faster than they can process.
type Paced struct {
	inner   Synthesizer
	limiter *rate.Limiter
}

// NewPaced paces inner to keysPerSecond. A non-positive rate disables pacing.
func NewPaced(inner Synthesizer, keysPerSecond float64) *Paced {
	limit := rate.Inf
	if keysPerSecond > 0 {
		limit = rate.Limit(keysPerSecond)
	}
	return &Paced{inner: inner, limiter: rate.NewLimiter(limit, 1)}
}

// Backspace sends n paced backspaces.
func (p *Paced) Backspace(ctx context.Context, n int) error {
	if p.limiter.Limit() == rate.Inf {
		return p.inner.Backspace(ctx, n)
	}
	for i := 0; i < n; i++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := p.inner.Backspace(ctx, 1); err != nil {
			return err
		}
	}
	return nil
}

// Type types text one character at a time. Line breaks become spaces so a
// multi-line result cannot submit a single-line field.
func (p *Paced) Type(ctx context.Context, text string) error {
	text = SingleLine(text)
	if p.limiter.Limit() == rate.Inf {
		return p.inner.Type(ctx, text)
	}
	for _, r := range text {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := p.inner.Type(ctx, string(r)); err != nil {
			return err
		}
	}
	return nil
}

// Paste forwards the paste chord unpaced.
func (p *Paced) Paste(ctx context.Context) error {
	return p.inner.Paste(ctx)
}

// SingleLine replaces CRLF, CR and LF with single spaces.
func SingleLine(text string) string {
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(text)
}

// OpKind identifies a recorded synthesizer call.
type OpKind int

const (
	OpBackspace OpKind = iota
	OpType
	OpPaste
)

// Op is one recorded synthesizer call.
type Op struct {
	Kind OpKind
	N    int
	Text string
}

// Recorder is a Synthesizer for tests. It records every call and keeps a
// model of the focused field's text.
type Recorder struct {
	mu     sync.Mutex
	ops    []Op
	screen []rune

	// PasteSource supplies the text a paste inserts, usually the test
	// clipboard. A nil PasteSource pastes nothing.
	PasteSource func() (string, error)

	// PasteErr, when set, is returned by Paste without modifying the screen.
	PasteErr error
}

// NewRecorder creates a Recorder with an empty screen.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Backspace records the call and removes up to n characters.
func (r *Recorder) Backspace(ctx context.Context, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Kind: OpBackspace, N: n})
	if n > len(r.screen) {
		n = len(r.screen)
	}
	r.screen = r.screen[:len(r.screen)-n]
	return nil
}

// Type records the call and appends text.
func (r *Recorder) Type(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Kind: OpType, Text: text})
	r.screen = append(r.screen, []rune(text)...)
	return nil
}

// Paste records the call and appends PasteSource's text.
func (r *Recorder) Paste(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Kind: OpPaste})
	if r.PasteErr != nil {
		return r.PasteErr
	}
	if r.PasteSource == nil {
		return nil
	}
	text, err := r.PasteSource()
	if err != nil {
		return err
	}
	r.screen = append(r.screen, []rune(text)...)
	return nil
}

// Seed sets the screen as if the user had typed text.
func (r *Recorder) Seed(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screen = []rune(text)
}

// Screen returns the modeled field content.
func (r *Recorder) Screen() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.screen)
}

// Ops returns a copy of the recorded calls.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Reset clears recorded calls and the screen.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
	r.screen = nil
}

var (
	_ Synthesizer = (*Paced)(nil)
	_ Synthesizer = (*Recorder)(nil)
)
