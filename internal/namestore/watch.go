package namestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ErrNotWatchable is returned by Watch for backends without a backing file.
var ErrNotWatchable = errors.New("name store backend cannot be watched")

// Watch reloads the name whenever another process rewrites the backing file
// and calls fn with each new value. It returns once the watcher is running;
// watching stops when ctx is canceled.
func (s *Store) Watch(ctx context.Context, fn func(name string)) error {
	fb, ok := s.backend.(*FileBackend)
	if !ok || !fb.OnDisk() {
		return ErrNotWatchable
	}

	dir := filepath.Dir(fb.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: Put replaces the file by rename.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(fb.Path())
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if name, changed := s.Reload(); changed {
					slog.Info("Display name changed by another client", "event", "name_reloaded", "version", "1.0", "name", name)
					fn(name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Name store watcher error", "event", "name_watch_failure", "version", "1.0", "error", err)
			}
		}
	}()
	return nil
}
