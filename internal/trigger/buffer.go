// Package trigger classifies live keystrokes into literal input, snippet
// commands and augmentation requests.
//
// A Buffer mirrors the characters the user has typed into the focused field
// since the last reset. It is pure logic: processing never performs I/O, and
// every event maps to exactly one Action. All methods are safe for concurrent
// use; the hook callback and the focus poller share one Buffer.
package trigger

import (
	"strings"
	"sync"
	"time"

	"promptassist/internal/keystroke"
)

// Grammar markers.
const (
	// CommandPrefix starts every snippet command.
	CommandPrefix = "::"
	// PromptOpen starts an augmentation literal.
	PromptOpen = "::Prompt("
	// PromptClose ends an augmentation literal.
	PromptClose = ")"
)

// Length limits, in characters.
const (
	// MaxLen is the cap for ordinary text.
	MaxLen = 200
	// KeepLen is what survives an ordinary overflow.
	KeepLen = 50
	// MaxLiteralLen is the cap while a ::Prompt( literal is open.
	MaxLiteralLen = 1000
	// KeepLiteralLen is what survives an overflow inside an open literal.
	KeepLiteralLen = 200
)

// MatchMode selects how snippet commands are recognized on space.
type MatchMode string

const (
	// MatchExact requires the whole buffer to equal a command.
	MatchExact MatchMode = "exact"
	// MatchTrailing looks up "::" plus the text after the last "::", so a
	// command typed after other words on the same line still fires.
	MatchTrailing MatchMode = "trailing"
)

// Valid reports whether m is a known mode.
func (m MatchMode) Valid() bool {
	return m == MatchExact || m == MatchTrailing
}

// SnippetLookup resolves a snippet command to its replacement text.
type SnippetLookup interface {
	Lookup(command string) (string, bool)
}

// Buffer is the rolling window of recently typed characters.
type Buffer struct {
	mu           sync.Mutex
	chars        []rune
	modifierHeld bool
	lastInput    time.Time

	// window is non-zero after an overflow: the buffer then keeps only its
	// newest window characters until the next Clear.
	window int

	snippets SnippetLookup
	mode     MatchMode
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithMatchMode sets the snippet match mode. Unknown modes are ignored.
func WithMatchMode(m MatchMode) Option {
	return func(b *Buffer) {
		if m.Valid() {
			b.mode = m
		}
	}
}

// New creates an empty buffer resolving snippets through lookup.
// A nil lookup disables snippet triggers.
func New(lookup SnippetLookup, opts ...Option) *Buffer {
	b := &Buffer{
		snippets: lookup,
		mode:     MatchExact,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// destructive keys combined with ctrl: select-all, copy, paste, cut, undo.
var destructive = map[rune]bool{'a': true, 'c': true, 'v': true, 'x': true, 'z': true}

// Process classifies one key event and updates the buffer.
func (b *Buffer) Process(ev keystroke.Event) Action {
	b.mu.Lock()
	defer b.mu.Unlock()

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if keystroke.IsControl(ev.Name) {
		b.modifierHeld = ev.Down()
		return Action{}
	}
	if !ev.Down() {
		return Action{}
	}

	switch keystroke.Classify(ev.Name) {
	case keystroke.InputTypeBackspace:
		b.lastInput = ts
		if n := len(b.chars); n > 0 {
			b.chars = b.chars[:n-1]
		}
		if len(b.chars) == 0 {
			b.window = 0
		}
		return Action{}

	case keystroke.InputTypeSpace:
		b.lastInput = ts
		return b.onSpace()

	case keystroke.InputTypeCharacter:
		r, _ := keystroke.PrintableRune(ev.Name)
		if b.modifierHeld {
			if destructive[toLower(r)] {
				b.reset()
			}
			return Action{}
		}
		b.lastInput = ts
		b.chars = append(b.chars, r)
		b.enforceCap()
		return Action{}
	}

	return Action{}
}

func (b *Buffer) onSpace() Action {
	text := string(b.chars)

	if act, ok := b.matchSnippet(text); ok {
		b.reset()
		return act
	}

	if strings.HasPrefix(text, PromptOpen) && strings.HasSuffix(text, PromptClose) &&
		len(text) >= len(PromptOpen)+len(PromptClose) {
		query := text[len(PromptOpen) : len(text)-len(PromptClose)]
		if query != "" {
			b.reset()
			return Action{Kind: AugmentationTrigger, Query: query, Rendered: text}
		}
	}

	b.chars = append(b.chars, ' ')
	b.enforceCap()
	return Action{}
}

func (b *Buffer) matchSnippet(text string) (Action, bool) {
	if b.snippets == nil || !strings.Contains(text, CommandPrefix) {
		return Action{}, false
	}

	cmd := text
	if b.mode == MatchTrailing {
		i := strings.LastIndex(text, CommandPrefix)
		cmd = text[i:]
	}
	if len(cmd) <= len(CommandPrefix) || !strings.HasPrefix(cmd, CommandPrefix) {
		return Action{}, false
	}
	if _, ok := b.snippets.Lookup(cmd); !ok {
		return Action{}, false
	}
	return Action{Kind: SnippetTrigger, Command: cmd, Rendered: cmd}, true
}

// enforceCap trims the buffer after an append. The first overflow latches
// a fixed window that holds until the next Clear.
func (b *Buffer) enforceCap() {
	if b.window > 0 {
		b.keepTail(b.window)
		return
	}

	limit, keep := MaxLen, KeepLen
	if b.literalOpen() {
		limit, keep = MaxLiteralLen, KeepLiteralLen
	}
	if len(b.chars) > limit {
		b.keepTail(keep)
		b.window = keep
	}
}

func (b *Buffer) keepTail(n int) {
	if len(b.chars) <= n {
		return
	}
	tail := make([]rune, n, 2*n)
	copy(tail, b.chars[len(b.chars)-n:])
	b.chars = tail
}

// literalOpen reports whether the buffer is inside an augmentation literal:
// after a ::Prompt( marker and before the ")" that balances it. A buffer
// starting with the marker also counts while that ")" is its last character,
// since the completing space may still be coming.
func (b *Buffer) literalOpen() bool {
	text := string(b.chars)
	start := 0
	if !strings.HasPrefix(text, PromptOpen) {
		start = strings.LastIndex(text, PromptOpen)
		if start < 0 {
			return false
		}
	}

	body := text[start+len(PromptOpen):]
	depth := 1
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return start == 0 && i == len(body)-1
			}
		}
	}
	return true
}

func (b *Buffer) reset() {
	b.chars = b.chars[:0]
	b.window = 0
}

// Clear empties the buffer. Clearing an empty buffer is a no-op. The
// modifier state is kept since it tracks the physical key.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

// Snapshot returns the current buffer content.
func (b *Buffer) Snapshot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.chars)
}

// Len returns the number of buffered characters.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chars)
}

// ModifierHeld reports whether a control key is currently down.
func (b *Buffer) ModifierHeld() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modifierHeld
}

// LastInput returns the time of the last buffer-affecting key press.
func (b *Buffer) LastInput() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastInput
}

// SetMatchMode changes the snippet match mode. Unknown modes are ignored.
func (b *Buffer) SetMatchMode(m MatchMode) {
	if !m.Valid() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = m
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
