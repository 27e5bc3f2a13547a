package app

import (
	"context"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/loadstone/loadstone/internal/ctxlog"
	"github.com/loadstone/loadstone/internal/dag"
	"github.com/loadstone/loadstone/internal/loader"
	"github.com/loadstone/loadstone/internal/manifest"
	"github.com/loadstone/loadstone/internal/metrics"
	"github.com/loadstone/loadstone/internal/overrides"
)

// LoadAll runs the full pipeline: scan the mod root, resolve the load
// order, load and initialize every mod in order, then merge data overrides
// across the loaded set. Resolution errors (cycles, missing dependencies,
// version conflicts) are fatal; load-time failures of individual mods are
// isolated and reflected in the records and metrics instead.
//
// LoadAll is idempotent: re-invoking it while mods are loaded keeps their
// existing records.
func (a *App) LoadAll(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	start := time.Now()

	descriptors, report, err := a.scanner.Scan(ctx, a.config.ModsPath)
	if err != nil {
		return fmt.Errorf("failed to scan mod root: %w", err)
	}

	order, err := dag.ResolveLoadOrder(ctx, descriptors)
	if err != nil {
		return fmt.Errorf("failed to resolve load order: %w", err)
	}
	a.logger.Debug("Load order resolved.", "order", []string(order))

	a.loader.LoadAll(ctx, order, descriptors)
	values := a.mergeOverrides(order)

	stats := a.loader.Stats()
	snap := metrics.Snapshot{
		Discovered: len(descriptors),
		Resolved:   len(order),
		Loaded:     stats.Initialized,
		Failed:     stats.Failed,
		Duration:   time.Since(start),
	}
	a.metrics.Observe(snap)

	a.mu.Lock()
	a.descriptors = descriptors
	a.report = report
	a.order = order
	a.values = values
	a.lastLoad = snap
	a.mu.Unlock()

	a.logger.Info("Load complete.",
		"discovered", snap.Discovered,
		"loaded", snap.Loaded,
		"failed", snap.Failed,
		"duration", snap.Duration,
	)
	return nil
}

// UnloadAll unloads every mod in reverse load order and clears the merged
// values. Safe to call when nothing is loaded, and safe to call repeatedly.
func (a *App) UnloadAll(ctx context.Context) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.loader.UnloadAll(ctx)

	a.mu.Lock()
	a.order = nil
	a.values = overrides.Merge(nil, nil)
	a.mu.Unlock()
	a.logger.Info("All mods unloaded.")
}

// ReloadMod unloads and reloads a single mod from its manifest directory,
// then re-merges overrides across the currently loaded set so data edits
// become visible to readers.
func (a *App) ReloadMod(ctx context.Context, id string) (loader.Record, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	rec, err := a.loader.ReloadMod(ctx, id)
	if err != nil {
		return rec, err
	}
	a.metrics.ObserveReload()

	a.mu.RLock()
	order := a.order
	a.mu.RUnlock()
	values := a.mergeOverrides(order)

	a.mu.Lock()
	a.values = values
	a.mu.Unlock()
	return rec, nil
}

// mergeOverrides folds the contributions of currently initialized mods in
// resolved-order precedence. Failed or unloaded mods contribute nothing.
func (a *App) mergeOverrides(order dag.LoadOrder) *overrides.Values {
	contributions := make(map[string]overrides.Contribution)
	for _, rec := range a.loader.Loaded() {
		d := rec.Descriptor
		if len(d.Overrides) == 0 && len(d.Appends) == 0 {
			continue
		}
		contributions[d.ID] = overrides.Contribution{
			Overrides: d.Overrides,
			Appends:   d.Appends,
		}
	}
	return overrides.Merge(order, contributions)
}

// reloadByDir maps a watched directory back to its mod and reloads it.
func (a *App) reloadByDir(ctx context.Context, dir string) {
	a.mu.RLock()
	id := ""
	for _, d := range a.descriptors {
		if d.Dir == dir {
			id = d.ID
			break
		}
	}
	a.mu.RUnlock()

	if id == "" {
		a.logger.Debug("Changed directory does not match a known mod, ignoring.", "dir", dir)
		return
	}
	if _, err := a.ReloadMod(ctx, id); err != nil {
		a.logger.Error("Automatic reload failed.", "mod", id, "error", err)
	}
}

// LoadOrder returns the resolved load order of the last successful pass.
func (a *App) LoadOrder() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.order...)
}

// LoadedMods returns snapshot records of every currently initialized mod.
func (a *App) LoadedMods() []loader.Record {
	return a.loader.Loaded()
}

// API returns the capability object the given mod published, if any.
func (a *App) API(id string) (any, bool) {
	return a.loader.API(id)
}

// Value returns the merged override value for a data key.
func (a *App) Value(key string) (cty.Value, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.values.Get(key)
}

// ValueKeys returns every merged data key.
func (a *App) ValueKeys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.values.Keys()
}

// Report returns the validation report of the last scan.
func (a *App) Report() *manifest.Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.report
}

// GetLoadMetrics returns the last load pass's counters with live
// loaded/failed counts.
func (a *App) GetLoadMetrics() metrics.Snapshot {
	a.mu.RLock()
	snap := a.lastLoad
	a.mu.RUnlock()

	stats := a.loader.Stats()
	snap.Loaded = stats.Initialized
	snap.Failed = stats.Failed
	return snap
}
