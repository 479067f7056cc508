// Package snippets stores the user's snippet commands and their replacement
// text in a JSON file.
//
// The file is a single object mapping commands ("::name") to text. It is
// validated against an embedded JSON Schema on every load, written
// atomically, and reloaded when edited externally.
package snippets

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Prefix starts every snippet command.
const Prefix = "::"

// FileName is the default snippets file name.
const FileName = "snippets.json"

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "snippets-v1.schema.json"

// Defaults is the content used when no snippets file exists yet.
var Defaults = map[string]string{
	"::emailStarter": "Hello,\nI hope this email finds you well.\nI am writing this email because ",
}

var (
	ErrInvalidCommand = errors.New("snippets: command must start with \"::\" followed by a name without spaces")
	ErrNotFound       = errors.New("snippets: no such command")
)

// Snippet is one command and its replacement.
type Snippet struct {
	Command string `json:"command"`
	Text    string `json:"text"`
}

// Store holds snippets loaded from a JSON file.
type Store struct {
	path   string
	schema *jsonschema.Schema
	logger *slog.Logger

	mu       sync.RWMutex
	snippets map[string]string
	onChange []func()
}

// Open loads the snippets file at path. A missing file yields Defaults;
// the file itself is only created by the first Save.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default().With("component", "snippets")
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, schema: schema, logger: logger}

	m, err := s.read()
	if err != nil {
		return nil, err
	}
	s.snippets = m
	return s, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("snippets: add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("snippets: compile schema: %w", err)
	}
	return schema, nil
}

// read loads and validates the file without touching the store state.
func (s *Store) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("snippets file not found, using defaults", "path", s.path)
		return copyMap(Defaults), nil
	}
	if err != nil {
		return nil, fmt.Errorf("snippets: read %s: %w", s.path, err)
	}
	return s.decode(data)
}

func (s *Store) decode(data []byte) (map[string]string, error) {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("snippets: decode %s: %w", filepath.Base(s.path), err)
	}
	if err := s.schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("snippets: %s does not match schema: %w", filepath.Base(s.path), err)
	}
	m := make(map[string]string)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("snippets: decode %s: %w", filepath.Base(s.path), err)
	}
	return m, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Lookup returns the replacement for command.
func (s *Store) Lookup(command string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.snippets[command]
	return text, ok
}

// All returns every snippet sorted by command.
func (s *Store) All() []Snippet {
	s.mu.RLock()
	out := make([]Snippet, 0, len(s.snippets))
	for cmd, text := range s.snippets {
		out = append(out, Snippet{Command: cmd, Text: text})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// Len reports the number of snippets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snippets)
}

// ValidCommand reports whether command can be typed as a snippet trigger.
func ValidCommand(command string) bool {
	name, ok := strings.CutPrefix(command, Prefix)
	if !ok || name == "" {
		return false
	}
	return strings.IndexFunc(name, unicode.IsSpace) < 0
}

// Save adds or replaces a snippet and persists the file.
func (s *Store) Save(command, text string) error {
	if !ValidCommand(command) {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}

	s.mu.Lock()
	next := copyMap(s.snippets)
	next[command] = text
	if err := s.write(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.snippets = next
	s.mu.Unlock()

	s.logger.Info("saved snippet", "command", command)
	s.notify()
	return nil
}

// Delete removes a snippet and persists the file.
func (s *Store) Delete(command string) error {
	s.mu.Lock()
	if _, ok := s.snippets[command]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, command)
	}
	next := copyMap(s.snippets)
	delete(next, command)
	if err := s.write(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.snippets = next
	s.mu.Unlock()

	s.logger.Info("deleted snippet", "command", command)
	s.notify()
	return nil
}

// write validates m and replaces the file through a temp file and rename.
func (s *Store) write(m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("snippets: encode: %w", err)
	}
	if _, err := s.decode(data); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("snippets: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("snippets: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("snippets: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snippets: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snippets: close: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("snippets: chmod: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("snippets: replace %s: %w", s.path, err)
	}
	return nil
}

// Reload rereads the file. On failure the current snippets are kept.
func (s *Store) Reload() error {
	m, err := s.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snippets = m
	s.mu.Unlock()

	s.logger.Info("reloaded snippets", "count", len(m))
	s.notify()
	return nil
}

// OnChange registers a callback invoked after every successful change.
func (s *Store) OnChange(cb func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, cb)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	cbs := append([]func(){}, s.onChange...)
	s.mu.RUnlock()
	for _, cb := range cbs {
		cb()
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
