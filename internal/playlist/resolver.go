// Package playlist answers whether a schedule's playlist reference exists.
// Playlists are owned elsewhere; on disk each one is <dir>/<name>.json.
package playlist

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const ext = ".json"

// DirResolver caches the playlist names found in a directory and refreshes
// the cache when the directory changes.
type DirResolver struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	names map[string]struct{}
}

func NewDirResolver(dir string, logger *slog.Logger) (*DirResolver, error) {
	r := &DirResolver{dir: dir, logger: logger.With("component", "playlist_resolver")}
	if err := r.rescan(); err != nil {
		return nil, err
	}
	return r, nil
}

// Exists reports whether name refers to a playlist file in the directory.
func (r *DirResolver) Exists(_ context.Context, name string) (bool, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return false, nil
	}
	r.mu.RLock()
	_, ok := r.names[name]
	r.mu.RUnlock()
	return ok, nil
}

// Watch refreshes the cache on filesystem events until ctx is cancelled.
func (r *DirResolver) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(r.dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}
	r.logger.Info("watching playlists", "dir", r.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ext || !ev.Has(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			if err := r.rescan(); err != nil {
				r.logger.Warn("rescan playlists", "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("playlist watcher", "error", err)
		}
	}
}

func (r *DirResolver) rescan() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read playlists dir: %w", err)
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		names[strings.TrimSuffix(e.Name(), ext)] = struct{}{}
	}

	r.mu.Lock()
	r.names = names
	r.mu.Unlock()
	return nil
}
