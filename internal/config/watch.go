package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads Config from disk whenever config.toml changes,
// mirroring the teacher's use of fsnotify to watch .beads/ for external
// edits — here scoped to a single file rather than a directory tree.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	onReload func(Config)
	log     *slog.Logger
}

// NewWatcher starts watching path's parent directory (fsnotify cannot
// watch a single file reliably across editors that replace-on-save) and
// invokes onReload with the newly decoded Config on any write/create
// event for path.
func NewWatcher(path string, log *slog.Logger, onReload func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{watcher: fw, path: path, onReload: onReload, log: log}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config: reload failed", "path", w.path, "error", err)
				continue
			}
			w.onReload(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config: watch error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
