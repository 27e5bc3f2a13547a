package loader

import (
	"context"
	"fmt"
	"slices"

	"github.com/loadstone/loadstone/internal/ctxlog"
	"github.com/loadstone/loadstone/internal/events"
	"github.com/loadstone/loadstone/internal/manifest"
)

// UnloadAll transitions every record to Unloaded in reverse load order,
// invoking shutdown hooks and removing owned patches. Shutdown errors are
// logged, never propagated: unload always completes. Calling it with
// nothing loaded is a no-op, and calling it repeatedly is safe.
func (l *Loader) UnloadAll(ctx context.Context) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	l.mu.RLock()
	order := append([]string(nil), l.loadOrder...)
	l.mu.RUnlock()

	for i := len(order) - 1; i >= 0; i-- {
		l.unloadOne(ctx, order[i])
	}

	// Records that never reached Initialized (Failed, Discovered) have no
	// hooks or patches to tear down but still end Unloaded.
	l.mu.RLock()
	var rest []string
	for id, rec := range l.records {
		if rec.State != Unloaded {
			rest = append(rest, id)
		}
	}
	l.mu.RUnlock()
	slices.Sort(rest)
	for _, id := range rest {
		l.mu.RLock()
		rec := l.records[id]
		l.mu.RUnlock()
		l.transition(ctx, rec, Unloaded)
	}
}

// unloadOne tears down a single initialized mod: shutdown hook, patch
// removal, published API retraction, state transition. Callers hold
// lifecycleMu.
func (l *Loader) unloadOne(ctx context.Context, id string) {
	logger := ctxlog.FromContext(ctx).With("mod", id)

	l.mu.Lock()
	rec, ok := l.records[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	handle := rec.Handle
	rec.Handle = nil
	l.loadOrder = slices.DeleteFunc(l.loadOrder, func(s string) bool { return s == id })
	delete(l.apis, id)
	l.mu.Unlock()

	if handle != nil {
		if err := shutdown(ctx, handle); err != nil {
			logger.Error("Shutdown hook failed, continuing unload.", "error", err)
		}
	}
	l.patches.Remove(ctx, id)
	l.transition(ctx, rec, Unloaded)
	logger.Debug("Mod unloaded.")
}

// ReloadMod unloads exactly one mod and reloads it from a fresh parse of
// its original manifest directory, so data edits become visible. Dependents
// that are still loaded are reported stale but not blocked. The returned
// record reflects the reload outcome; the error covers only unknown ids and
// unreadable manifests.
//
// Reload is serialized against LoadAll and UnloadAll by the lifecycle lock.
func (l *Loader) ReloadMod(ctx context.Context, id string) (Record, error) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	logger := ctxlog.FromContext(ctx).With("mod", id)

	l.mu.RLock()
	rec, ok := l.records[id]
	l.mu.RUnlock()
	if !ok {
		return Record{}, &UnknownModError{ModID: id}
	}

	// Dependents keep running against the old initialization side effects
	// until their own reload; that is a diagnostic, not an error.
	for _, dep := range l.staleDependentsLocked(id) {
		logger.Warn("Dependent mod is now stale.", "dependent", dep)
		ev := events.New(events.KindStaleDependent, dep)
		ev.Err = fmt.Errorf("dependency %q was reloaded", id)
		l.sink.Emit(ctx, ev)
	}

	if rec.State == Initialized || rec.State == Loaded {
		l.unloadOne(ctx, id)
	}

	desc, err := manifest.ParseDir(rec.Descriptor.Dir)
	if err != nil {
		l.fail(ctx, rec, err)
		return l.getSnapshot(id), fmt.Errorf("reloading mod %q: %w", id, err)
	}
	desc.DiscoveryIndex = rec.Descriptor.DiscoveryIndex

	byID := make(map[string]*manifest.Descriptor)
	l.mu.RLock()
	for recID, r := range l.records {
		byID[recID] = r.Descriptor
	}
	l.mu.RUnlock()
	byID[id] = desc

	l.loadOne(ctx, desc, byID)
	logger.Info("Mod reloaded.")
	return l.getSnapshot(id), nil
}

// staleDependentsLocked lists initialized mods that hard-depend on id.
func (l *Loader) staleDependentsLocked(id string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var stale []string
	for recID, rec := range l.records {
		if rec.State != Initialized || recID == id {
			continue
		}
		for _, dep := range rec.Descriptor.Dependencies {
			if dep.ID == id {
				stale = append(stale, recID)
				break
			}
		}
	}
	slices.Sort(stale)
	return stale
}

// getSnapshot returns a value copy of one record.
func (l *Loader) getSnapshot(id string) Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if rec, ok := l.records[id]; ok {
		return l.copyRecordLocked(rec)
	}
	return Record{}
}
