package clipboard

import (
	"errors"
	"sync"

	atotto "github.com/atotto/clipboard"
)

// Accessor reads and writes the text clipboard.
type Accessor interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// ErrUnsupported is returned when no clipboard utility is available
// (on Linux atotto needs xclip, xsel or wl-clipboard).
var ErrUnsupported = errors.New("clipboard: no clipboard utility available")

// SystemAccessor uses the OS clipboard through atotto/clipboard.
type SystemAccessor struct{}

// NewSystemAccessor returns the OS clipboard accessor.
func NewSystemAccessor() SystemAccessor {
	return SystemAccessor{}
}

// Available reports whether the OS clipboard can be used.
func (SystemAccessor) Available() bool {
	return !atotto.Unsupported
}

// ReadAll returns the clipboard text.
func (SystemAccessor) ReadAll() (string, error) {
	if atotto.Unsupported {
		return "", ErrUnsupported
	}
	return atotto.ReadAll()
}

// WriteAll replaces the clipboard text.
func (SystemAccessor) WriteAll(text string) error {
	if atotto.Unsupported {
		return ErrUnsupported
	}
	return atotto.WriteAll(text)
}

// MemoryAccessor is an in-process clipboard for tests.
type MemoryAccessor struct {
	mu     sync.Mutex
	text   string
	writes []string

	// ReadErr, when set, fails every ReadAll.
	ReadErr error

	// WriteErr, when set, fails WriteAll calls for which FailWrite
	// returns true (all calls if FailWrite is nil).
	WriteErr  error
	FailWrite func(text string) bool
}

// NewMemoryAccessor creates a clipboard holding text.
func NewMemoryAccessor(text string) *MemoryAccessor {
	return &MemoryAccessor{text: text}
}

// ReadAll returns the stored text.
func (m *MemoryAccessor) ReadAll() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	return m.text, nil
}

// WriteAll stores text.
func (m *MemoryAccessor) WriteAll(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil && (m.FailWrite == nil || m.FailWrite(text)) {
		return m.WriteErr
	}
	m.text = text
	m.writes = append(m.writes, text)
	return nil
}

// Text returns the stored text regardless of ReadErr.
func (m *MemoryAccessor) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Writes returns every successful write in order.
func (m *MemoryAccessor) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}

var (
	_ Accessor = SystemAccessor{}
	_ Accessor = (*MemoryAccessor)(nil)
)
