// Package watcher turns filesystem activity under the source roots into
// debounced sync triggers. Change detection is content-hash based, so the
// watcher does not track individual events; it only needs to know that
// something happened and let the next run work out what.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tliops/kbsync/internal/scan"
)

// Watcher watches source roots recursively and emits one trigger per
// quiet period.
type Watcher struct {
	fsw      *fsnotify.Watcher
	roots    []scan.Root
	debounce time.Duration
	triggers chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a watcher over the given roots.
func New(roots []scan.Root, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		roots:    roots,
		debounce: debounce,
		triggers: make(chan struct{}, 1),
	}
	for _, root := range roots {
		if err := w.watchTree(root.Path); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// watchTree registers the directory and every non-hidden subdirectory.
func (w *Watcher) watchTree(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d == nil {
				// The tree root itself is unreadable.
				return err
			}
			slog.Warn("watch setup error, skipping subtree", "path", p, "error", err)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// Triggers returns the channel that fires after each debounced burst of
// filesystem activity.
func (w *Watcher) Triggers() <-chan struct{} {
	return w.triggers
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	// New directories must be added to the watch set before their
	// contents start producing events.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchTree(event.Name); err != nil {
				slog.Warn("failed to watch new directory",
					"path", event.Name, "error", err)
			}
		}
	}

	if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
		event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		w.schedule()
	}
}

// schedule arms the debounce timer, restarting it on every new event so
// a burst of writes produces exactly one trigger.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.triggers <- struct{}{}:
		default:
			// A trigger is already pending; one run covers both.
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
