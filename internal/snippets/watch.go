package snippets

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watch reloads the store whenever the file changes on disk. It blocks
// until ctx is cancelled. Invalid edits are logged and ignored.
func (s *Store) Watch(ctx context.Context) error {
	return s.watch(ctx, nil)
}

// watch closes ready, when non-nil, once the directory watch is in place.
func (s *Store) watch(ctx context.Context, ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("snippets: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic replaces and first creation are seen.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("snippets: watch directory: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	name := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := s.Reload(); err != nil {
					s.logger.Warn("snippets reload failed, keeping previous set", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("snippets watcher error", "error", err)
		}
	}
}
