// Package registry owns the project indices of all configured documentation
// roots and routes documents to the index that covers them.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"needsls/internal/config"
	"needsls/internal/errors"
	"needsls/internal/paths"
	"needsls/internal/project"
	"needsls/internal/slogutil"
)

// FileChange is the kind of a file event, numbered like LSP FileChangeType.
type FileChange int

const (
	Created FileChange = 1
	Changed FileChange = 2
	Deleted FileChange = 3
)

func (c FileChange) String() string {
	switch c {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// FileEvent reports a change to a file on disk.
type FileEvent struct {
	Path string
	Type FileChange
}

// Notifier surfaces problems to the user.
type Notifier interface {
	ShowWarning(msg string)
	ShowError(msg string)
}

// RootStatus summarizes one configured root.
type RootStatus struct {
	SnapshotPath string        `json:"snapshotPath" yaml:"snapshotPath"`
	SrcDir       string        `json:"srcDir" yaml:"srcDir"`
	Default      bool          `json:"default" yaml:"default"`
	Loaded       bool          `json:"loaded" yaml:"loaded"`
	Stats        project.Stats `json:"stats" yaml:"stats"`
	LoadedAt     time.Time     `json:"loadedAt,omitempty" yaml:"loadedAt,omitempty"`
	Error        string        `json:"error,omitempty" yaml:"error,omitempty"`
}

type root struct {
	cfg   config.Root
	index *project.Index
	err   error
}

// Registry maps normalized snapshot paths to their project index.
// Reads take the read lock; a reload builds outside the lock under a
// per-path mutex and swaps the result in under the write lock.
type Registry struct {
	logger   *slog.Logger
	notifier Notifier

	mu         sync.RWMutex
	roots      map[string]*root
	order      []string
	defaultKey string
	multi      bool

	configMu sync.Mutex
	locks    sync.Map // map[string]*sync.Mutex
}

// New creates an empty registry. notifier may be nil.
func New(logger *slog.Logger, notifier Notifier) *Registry {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Registry{
		logger:   logger,
		notifier: notifier,
		roots:    make(map[string]*root),
	}
}

// Configure replaces the set of roots. A root whose configuration is
// unchanged keeps its current index; new or changed roots are built from
// their snapshot and held as empty when that fails.
func (r *Registry) Configure(s *config.Settings) {
	r.configMu.Lock()
	defer r.configMu.Unlock()

	if s == nil {
		s = config.DefaultSettings()
	}

	// Reload writes into the live map, so read from a copy
	r.mu.RLock()
	previous := make(map[string]*root, len(r.roots))
	for k, v := range r.roots {
		previous[k] = v
	}
	r.mu.RUnlock()

	roots := make(map[string]*root)
	var order []string
	var defaultKey string

	for _, rc := range s.Roots() {
		key := paths.Normalize(rc.SnapshotPath)
		if _, dup := roots[key]; dup {
			r.logger.Warn("Snapshot configured twice, keeping the first root", "path", key)
			continue
		}
		rc.SnapshotPath = key
		if rc.SrcDir != "" {
			rc.SrcDir = paths.Normalize(rc.SrcDir)
		}

		if prev, ok := previous[key]; ok && prev.cfg == rc {
			roots[key] = prev
		} else {
			roots[key] = r.build(rc)
		}
		order = append(order, key)
		if rc.Default {
			defaultKey = key
		}
	}

	if len(order) == 0 {
		r.notify(errors.Newf(errors.SnapshotNotConfigured, "no needs.json configured, set %s.needsJson", config.Namespace))
	}

	r.mu.Lock()
	r.roots = roots
	r.order = order
	r.defaultKey = defaultKey
	r.multi = s.MultiRoot()
	r.mu.Unlock()

	r.logger.Info("Registry configured", "roots", len(order), "multiRoot", s.MultiRoot())
}

func (r *Registry) build(rc config.Root) *root {
	lock := r.pathLock(rc.SnapshotPath)
	lock.Lock()
	defer lock.Unlock()

	if rc.SrcDir == "" {
		r.notify(errors.Newf(errors.SrcDirMissing, "no source directory configured for %s", rc.SnapshotPath))
	} else if info, err := os.Stat(rc.SrcDir); err != nil || !info.IsDir() {
		r.notify(errors.Newf(errors.SrcDirMissing, "source directory %s does not exist", rc.SrcDir))
	}

	idx, err := project.Load(rc.SnapshotPath, rc.SrcDir, r.logger)
	if err != nil {
		r.notify(err)
	}
	return &root{cfg: rc, index: idx, err: err}
}

// Reload rebuilds the root backed by snapshotPath. When the rebuild fails
// the last good index stays in place and a warning is shown. It returns
// false when snapshotPath is not a configured snapshot.
func (r *Registry) Reload(snapshotPath string) bool {
	key := paths.Normalize(snapshotPath)

	lock := r.pathLock(key)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	current, ok := r.roots[key]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	idx, err := project.Load(key, current.cfg.SrcDir, r.logger)
	next := &root{cfg: current.cfg, index: idx, err: err}
	if err != nil {
		if current.index != nil {
			next.index = current.index
			r.warn(fmt.Sprintf("Reloading %s failed, keeping the previous index: %v", key, err))
		} else {
			r.notify(err)
		}
	}

	r.mu.Lock()
	// a concurrent Configure may have replaced the root meanwhile
	if r.roots[key] == current {
		r.roots[key] = next
	}
	r.mu.Unlock()

	r.logger.Info("Snapshot reloaded", "path", key, "ok", err == nil)
	return true
}

// HandleFileEvent applies a file event. Created and changed snapshots are
// reloaded; a deleted snapshot only raises a warning and keeps its index.
// Events for paths that are not configured snapshots are ignored.
func (r *Registry) HandleFileEvent(ev FileEvent) bool {
	key := paths.Normalize(ev.Path)
	if !r.Owns(key) {
		return false
	}

	r.logger.Debug("Snapshot file event", "path", key, "type", ev.Type.String())

	switch ev.Type {
	case Created, Changed:
		return r.Reload(key)
	case Deleted:
		r.warn(fmt.Sprintf("%s was deleted, keeping the last loaded needs", key))
		return true
	default:
		r.logger.Warn("Unknown file event type", "path", key, "type", int(ev.Type))
		return false
	}
}

// Owns reports whether path is a configured snapshot path.
func (r *Registry) Owns(path string) bool {
	key := paths.Normalize(path)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roots[key]
	return ok
}

// SnapshotPaths returns the configured snapshot paths, default root first.
func (r *Registry) SnapshotPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve returns the index responsible for the document at docPath, or
// nil. Without multi-root configuration the default root always answers.
// Otherwise the first root covering the document wins, falling back to
// the default root for documents no snapshot knows yet.
func (r *Registry) Resolve(docPath string) *project.Index {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.multi && docPath != "" {
		p := paths.Normalize(docPath)
		for _, key := range r.order {
			if idx := r.roots[key].index; idx != nil && idx.Covers(p) {
				return idx
			}
		}
	}
	return r.defaultIndex()
}

// Index returns the index loaded from snapshotPath, or nil when the path
// is not configured or failed to load.
func (r *Registry) Index(snapshotPath string) *project.Index {
	key := paths.Normalize(snapshotPath)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if root, ok := r.roots[key]; ok {
		return root.index
	}
	return nil
}

// Default returns the default root's index, or nil.
func (r *Registry) Default() *project.Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultIndex()
}

func (r *Registry) defaultIndex() *project.Index {
	if root, ok := r.roots[r.defaultKey]; ok {
		return root.index
	}
	return nil
}

// Roots summarizes all configured roots, default root first.
func (r *Registry) Roots() []RootStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RootStatus, 0, len(r.order))
	for _, key := range r.order {
		root := r.roots[key]
		st := RootStatus{
			SnapshotPath: root.cfg.SnapshotPath,
			SrcDir:       root.cfg.SrcDir,
			Default:      root.cfg.Default,
			Loaded:       root.index != nil,
		}
		if root.index != nil {
			st.Stats = root.index.Stats()
			st.LoadedAt = root.index.LoadedAt()
		}
		if root.err != nil {
			st.Error = root.err.Error()
		}
		out = append(out, st)
	}
	return out
}

func (r *Registry) pathLock(key string) *sync.Mutex {
	lock, _ := r.locks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// notify routes a load problem by severity: info is only logged.
func (r *Registry) notify(err error) {
	if err == nil {
		return
	}
	switch errors.Severity(errors.CodeOf(err)) {
	case errors.LevelInfo:
		r.logger.Info(err.Error())
	case errors.LevelWarning:
		r.warn(err.Error())
	default:
		r.logger.Error(err.Error())
		if r.notifier != nil {
			r.notifier.ShowError(err.Error())
		}
	}
}

func (r *Registry) warn(msg string) {
	r.logger.Warn(msg)
	if r.notifier != nil {
		r.notifier.ShowWarning(msg)
	}
}
