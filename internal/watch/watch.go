// Package watch reloads mods when their manifests change on disk. It is a
// development-mode convenience: a write to any mod.hcl under the mod root
// triggers a debounced reload callback for the owning mod directory.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/loadstone/loadstone/internal/ctxlog"
	"github.com/loadstone/loadstone/internal/fsutil"
	"github.com/loadstone/loadstone/internal/manifest"
)

// defaultDebounce coalesces editor write bursts into one reload.
const defaultDebounce = 250 * time.Millisecond

// ReloadFunc is invoked with the mod directory whose manifest changed.
type ReloadFunc func(ctx context.Context, dir string)

// Watcher observes a mod root for manifest edits.
type Watcher struct {
	root     string
	reload   ReloadFunc
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Watcher over root that calls reload on manifest changes.
func New(root string, reload ReloadFunc) *Watcher {
	return &Watcher{
		root:     root,
		reload:   reload,
		debounce: defaultDebounce,
		pending:  make(map[string]*time.Timer),
	}
}

// Run blocks watching for manifest edits until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return err
	}
	dirs, err := fsutil.FindDirsWithFile(w.root, manifest.ManifestFileName)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			logger.Warn("Cannot watch mod directory.", "dir", dir, "error", err)
		}
	}
	logger.Info("Watching mod root for manifest changes.", "root", w.root, "mods", len(dirs))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error.", "error", err)
		}
	}
}

// handle classifies one fsnotify event and schedules a debounced reload.
func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) {
	logger := ctxlog.FromContext(ctx)

	// A new directory under the root may become a mod; start watching it.
	if ev.Op.Has(fsnotify.Create) && filepath.Dir(ev.Name) == filepath.Clean(w.root) {
		if err := fw.Add(ev.Name); err == nil {
			logger.Debug("Watching new directory under mod root.", "dir", ev.Name)
		}
	}

	if filepath.Base(ev.Name) != manifest.ManifestFileName {
		return
	}
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
		return
	}

	dir := filepath.Dir(ev.Name)
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[dir]; ok {
		timer.Stop()
	}
	w.pending[dir] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, dir)
		w.mu.Unlock()
		logger.Info("Manifest changed, reloading mod.", "dir", dir)
		w.reload(ctx, dir)
	})
}
