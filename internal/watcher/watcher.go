// Package watcher watches configured needs.json files on disk and reports
// debounced created/changed/deleted events, for clients that do not send
// workspace/didChangeWatchedFiles.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"needsls/internal/paths"
	"needsls/internal/registry"
	"needsls/internal/slogutil"
)

// DefaultDelay is the quiet period before a burst of events is reported.
const DefaultDelay = 200 * time.Millisecond

// Handler receives file events.
type Handler interface {
	HandleFileEvent(ev registry.FileEvent) bool
}

// Watcher watches the parent directories of snapshot paths, since editors
// and build tools often replace files instead of writing them in place.
type Watcher struct {
	fs      *fsnotify.Watcher
	handler Handler
	logger  *slog.Logger
	delay   time.Duration

	mu      sync.Mutex
	targets map[string]bool
	dirs    map[string]bool
	bursts  map[string]*burst
	created map[string]bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a watcher. A non-positive delay uses DefaultDelay.
func New(handler Handler, delay time.Duration, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Watcher{
		fs:      fw,
		handler: handler,
		logger:  logger,
		delay:   delay,
		targets: make(map[string]bool),
		dirs:    make(map[string]bool),
		bursts:  make(map[string]*burst),
		created: make(map[string]bool),
	}, nil
}

// SetPaths replaces the set of watched snapshot paths.
func (w *Watcher) SetPaths(snapshots []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range snapshots {
		if p == "" {
			continue
		}
		p = paths.Normalize(p)
		targets[p] = true
		dirs[filepath.Dir(p)] = true
	}

	for dir := range w.dirs {
		if !dirs[dir] {
			if err := w.fs.Remove(dir); err != nil {
				w.logger.Debug("Failed to unwatch directory", "dir", dir, "error", err.Error())
			}
			delete(w.dirs, dir)
		}
	}
	for dir := range dirs {
		if w.dirs[dir] {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			w.logger.Warn("Cannot watch snapshot directory", "dir", dir, "error", err.Error())
			continue
		}
		w.dirs[dir] = true
	}

	for p, b := range w.bursts {
		if !targets[p] {
			b.stop()
			delete(w.bursts, p)
			delete(w.created, p)
		}
	}
	w.targets = targets

	w.logger.Debug("Watching snapshots", "files", len(targets), "dirs", len(w.dirs))
}

// Watched returns the directories currently watched.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.dirs))
	for dir := range w.dirs {
		out = append(out, dir)
	}
	return out
}

// Start begins processing events in the background until ctx is done or
// Close is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	p := paths.Normalize(ev.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.targets[p] {
		return
	}
	if ev.Has(fsnotify.Create) {
		w.created[p] = true
	}

	b, ok := w.bursts[p]
	if !ok {
		b = newBurst(w.delay, func() { w.fire(p) })
		w.bursts[p] = b
	}
	b.touch()
}

// fire reports the net effect of a burst: the file's existence decides
// between deleted and created/changed.
func (w *Watcher) fire(p string) {
	w.mu.Lock()
	if !w.targets[p] {
		w.mu.Unlock()
		return
	}
	created := w.created[p]
	delete(w.created, p)
	w.mu.Unlock()

	change := registry.Changed
	if _, err := os.Stat(p); err != nil {
		change = registry.Deleted
	} else if created {
		change = registry.Created
	}

	w.logger.Debug("Snapshot changed on disk", "path", p, "type", change.String())
	w.handler.HandleFileEvent(registry.FileEvent{Path: p, Type: change})
}

// Close stops the watcher and cancels pending events.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.fs.Close()
	w.wg.Wait()

	w.mu.Lock()
	for _, b := range w.bursts {
		b.stop()
	}
	w.mu.Unlock()
	return err
}
