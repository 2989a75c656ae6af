package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/hashstructure"
)

// Watcher hot-reloads configPath on write, following the teacher's
// ConfigWatcher: watch the containing directory (editors replace files
// rather than writing in place) and re-run Load on any Write/Create
// event for the target file.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onReload func(*Config, error)

	mu       sync.Mutex
	cancel   context.CancelFunc
	running  bool
	lastHash uint64
}

// NewWatcher builds a Watcher over configPath. onReload is invoked with
// the freshly loaded Config on success, or a nil Config and the load
// error on failure (the caller decides whether to keep running on the
// previous configuration).
func NewWatcher(configPath string, onReload func(*Config, error)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	return &Watcher{watcher: w, path: configPath, onReload: onReload}, nil
}

// Start begins watching. ctx cancellation stops the watch loop and
// closes the underlying fsnotify watcher.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("config: watcher already running")
	}
	dir := filepath.Dir(w.path)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("config: watch directory %s: %w", dir, err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	go w.loop(runCtx)
	return nil
}

// Stop halts the watch loop and releases the fsnotify handle. Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.cancel()
	_ = w.watcher.Close()
	w.running = false
}

func (w *Watcher) loop(ctx context.Context) {
	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err == nil {
				hash, hashErr := hashstructure.Hash(cfg, nil)
				if hashErr == nil {
					w.mu.Lock()
					unchanged := w.lastHash != 0 && hash == w.lastHash
					w.lastHash = hash
					w.mu.Unlock()
					if unchanged {
						// Editors often emit several Write events per save;
						// skip the callback when the reloaded config is
						// byte-for-byte the same as last time.
						continue
					}
				}
			}
			w.onReload(cfg, err)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
