package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// reloadDebounce coalesces the burst of events editors emit per save.
const reloadDebounce = 100 * time.Millisecond

// Loader reads the configuration file and, once Watch is called, reloads
// it on change. A reload that fails to parse or validate is rejected and
// the previous configuration stays current.
type Loader struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)

	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
	errs    chan error
}

// NewLoader creates a loader for path; empty means ConfigPath().
func NewLoader(path string, logger *slog.Logger) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	if logger == nil {
		logger = slog.Default().With("component", "config")
	}
	return &Loader{
		path:   path,
		logger: logger,
		errs:   make(chan error, 1),
	}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the file and makes it current. Validation warnings are
// logged; only errors fail the load.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.read()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Config returns the current configuration, nil before Load.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers cb to run after every accepted reload.
func (l *Loader) OnChange(cb func(*Config)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, cb)
	l.mu.Unlock()
}

// Errors delivers watch and reload failures. It holds one error; later
// ones are dropped until it is drained.
func (l *Loader) Errors() <-chan error {
	return l.errs
}

func (l *Loader) read() (*Config, error) {
	cfg, err := decodeFile(l.path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()

	if cfg.Version < Version {
		result, err := MigrateConfig(cfg, l.path)
		if err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		if result != nil {
			l.logger.Info("migrated configuration",
				"from", result.FromVersion, "to", result.ToVersion, "changes", len(result.Changes))
		}
	}

	verr := cfg.Validate()
	if err := Fatal(verr); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	var verrs ValidationErrors
	if errors.As(verr, &verrs) {
		for _, w := range verrs.Warnings() {
			l.logger.Warn("configuration warning", "field", w.Field, "message", w.Message)
		}
	}
	return cfg, nil
}

// Watch starts reloading on changes to the file. The parent directory is
// watched so editors that replace the file by rename are followed.
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		w.Close()
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	l.watcher = w
	l.stop = make(chan struct{})
	l.wg.Add(1)
	go l.watch()
	return nil
}

func (l *Loader) watch() {
	defer l.wg.Done()

	name := filepath.Base(l.path)
	debounce := time.NewTimer(reloadDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-l.stop:
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) == name && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce.Reset(reloadDebounce)
			}
		case <-debounce.C:
			l.reload()
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

func (l *Loader) reload() {
	next, err := l.read()
	if err != nil {
		l.logger.Warn("config reload rejected, keeping previous", "error", err)
		l.report(fmt.Errorf("reload config: %w", err))
		return
	}

	l.mu.Lock()
	prev := l.current
	l.current = next
	cbs := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()

	l.logger.Info("configuration reloaded", "path", l.path)
	if prev != nil {
		if sections := RestartRequired(prev, next); len(sections) > 0 {
			l.logger.Warn("changed settings take effect after restart", "sections", sections)
		}
	}
	for _, cb := range cbs {
		cb(next)
	}
}

func (l *Loader) report(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

// Close stops watching and waits for the watch goroutine.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.stop)
	err := l.watcher.Close()
	l.wg.Wait()
	l.watcher = nil
	return err
}

// RestartRequired names the sections that differ between prev and next
// but are only read at startup. Focus exclusions, the snippet match mode
// and the history cap apply to a running engine and are ignored.
func RestartRequired(prev, next *Config) []string {
	a, b := prev.Clone(), next.Clone()
	a.Focus.ExcludedApps, b.Focus.ExcludedApps = nil, nil
	a.Trigger, b.Trigger = TriggerConfig{}, TriggerConfig{}
	a.Storage.HistoryMaxEntries, b.Storage.HistoryMaxEntries = 0, 0

	var sections []string
	for _, s := range []struct {
		name string
		x, y any
	}{
		{"augment", a.Augment, b.Augment},
		{"focus", a.Focus, b.Focus},
		{"clipboard", a.Clipboard, b.Clipboard},
		{"typing", a.Typing, b.Typing},
		{"storage", a.Storage, b.Storage},
		{"logging", a.Logging, b.Logging},
	} {
		if !reflect.DeepEqual(s.x, s.y) {
			sections = append(sections, s.name)
		}
	}
	return sections
}

type decoder func(data []byte, cfg *Config) error

var decoders = map[string]decoder{
	".toml": func(data []byte, cfg *Config) error {
		_, err := toml.Decode(string(data), cfg)
		return err
	},
	".json": func(data []byte, cfg *Config) error { return json.Unmarshal(data, cfg) },
	".yaml": func(data []byte, cfg *Config) error { return yaml.Unmarshal(data, cfg) },
	".yml":  func(data []byte, cfg *Config) error { return yaml.Unmarshal(data, cfg) },
}

// decodeFile overlays the file at path on DefaultConfig. The format comes
// from the extension; other names are tried as TOML, JSON, then YAML. A
// missing file yields the defaults.
func decodeFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	ext := filepath.Ext(path)
	if dec, ok := decoders[ext]; ok {
		if err := dec(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ext, err)
		}
		return cfg, nil
	}
	for _, ext := range []string{".toml", ".json", ".yaml"} {
		attempt := DefaultConfig()
		if decoders[ext](data, attempt) == nil {
			return attempt, nil
		}
	}
	return nil, errors.New("parse config: unable to parse config file (tried TOML, JSON, YAML)")
}

// Load reads configuration from path (ConfigPath() when empty). A missing
// file yields defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	return NewLoader(path, nil).Load()
}

// LoadOrCreate loads path, first writing a default file if none exists.
// created reports whether the file was written.
func LoadOrCreate(path string) (cfg *Config, created bool, err error) {
	if path == "" {
		path = ConfigPath()
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		cfg = DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		cfg.ApplyEnvOverrides()
		return cfg, true, nil
	}
	cfg, err = Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}
