package profile

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the write bursts editors produce when
// saving a file.
const debounceWindow = 250 * time.Millisecond

// Watcher reloads a profile when its file changes on disk.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	log     *slog.Logger
	onLoad  func(*Profile)
}

// NewWatcher watches the profile's directory; watching the file
// itself breaks on editors that replace it by rename. onLoad receives
// each successfully loaded profile.
func NewWatcher(path string, log *slog.Logger, onLoad func(*Profile)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{path: path, watcher: fw, log: log, onLoad: onLoad}, nil
}

// Run blocks until the context is cancelled, reloading on relevant
// filesystem events. Invalid intermediate saves are logged and
// skipped; the last good profile stays active.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(debounceWindow)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("profile watcher error", "error", err)

		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	p, err := Load(w.path)
	if err != nil {
		w.log.Warn("profile reload skipped", "path", w.path, "error", err)
		return
	}
	if p == nil {
		w.log.Warn("profile removed", "path", w.path)
		return
	}
	w.log.Info("profile reloaded", "path", w.path)
	w.onLoad(p)
}
