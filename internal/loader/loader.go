package loader

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/loadstone/loadstone/internal/ctxlog"
	"github.com/loadstone/loadstone/internal/events"
	"github.com/loadstone/loadstone/internal/manifest"
	"github.com/loadstone/loadstone/internal/patch"
	"github.com/loadstone/loadstone/internal/registry"
)

// Record is the bookkeeping entry for one mod known to the loader. The
// loader is its only writer; queries hand out value copies.
type Record struct {
	Descriptor *manifest.Descriptor
	// Handle is the mod's live code module, nil for data-only mods.
	Handle registry.CodeModule
	State  State
	// Err is the failure cause when State is Failed.
	Err error
	// LoadedAt is when the record entered Initialized.
	LoadedAt time.Time
	// PatchCount is the number of patches currently owned by this mod.
	PatchCount int
}

// Loader drives the mod runtime lifecycle.
type Loader struct {
	registry *registry.Registry
	patches  *patch.Coordinator
	sink     events.Sink

	// lifecycleMu serializes LoadAll, UnloadAll and ReloadMod so lifecycle
	// transitions touching the same mod never interleave.
	lifecycleMu sync.Mutex

	// mu guards the registries below for concurrent read queries.
	mu      sync.RWMutex
	records map[string]*Record
	// loadOrder lists ids that reached Initialized, in load order.
	loadOrder []string
	apis      map[string]any
}

// New creates a Loader backed by the given code-module registry and patch
// coordinator.
func New(reg *registry.Registry, coord *patch.Coordinator, sink events.Sink) *Loader {
	if sink == nil {
		sink = events.SlogSink{}
	}
	return &Loader{
		registry: reg,
		patches:  coord,
		sink:     sink,
		records:  make(map[string]*Record),
		apis:     make(map[string]any),
	}
}

// LoadAll loads and initializes every mod of the resolved order, in order.
// A failure at any step isolates to that mod: it is recorded Failed, logged,
// and processing continues. Mods whose hard dependencies ended Failed fail
// with a runtime-missing-dependency cause without attempting initialization.
//
// LoadAll is idempotent: ids that are already Loaded or Initialized keep
// their existing records untouched. On cancellation the remaining ids are
// left alone and the partial records are returned; nothing is rolled back.
func (l *Loader) LoadAll(ctx context.Context, order []string, descriptors []*manifest.Descriptor) []Record {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	logger := ctxlog.FromContext(ctx)
	byID := make(map[string]*manifest.Descriptor, len(descriptors))
	for _, d := range descriptors {
		byID[d.ID] = d
	}

	for _, id := range order {
		if ctx.Err() != nil {
			logger.Warn("Load cancelled; returning partial results.", "remaining_from", id)
			break
		}

		desc, ok := byID[id]
		if !ok {
			logger.Error("Load order names a mod with no descriptor, skipping.", "mod", id)
			continue
		}

		l.mu.RLock()
		existing := l.records[id]
		l.mu.RUnlock()
		if existing != nil && (existing.State == Loaded || existing.State == Initialized) {
			logger.Debug("Mod already loaded, keeping existing record.", "mod", id)
			continue
		}

		l.loadOne(ctx, desc, byID)
	}

	return l.snapshotRecords(order)
}

// loadOne runs the Discovered -> Loaded -> Initialized path for a single
// mod. Callers hold lifecycleMu.
func (l *Loader) loadOne(ctx context.Context, desc *manifest.Descriptor, byID map[string]*manifest.Descriptor) *Record {
	logger := ctxlog.FromContext(ctx).With("mod", desc.ID)

	rec := &Record{Descriptor: desc, State: Discovered}
	l.mu.Lock()
	l.records[desc.ID] = rec
	l.mu.Unlock()

	// Hard dependencies were present at resolution time; a Failed one here
	// is a load-time casualty, so the dependent fails too instead of
	// initializing against an absent dependency.
	for _, dep := range desc.Dependencies {
		if dep.Optional {
			continue
		}
		l.mu.RLock()
		depRec := l.records[dep.ID]
		l.mu.RUnlock()
		if depRec == nil || depRec.State != Initialized {
			err := &MissingRuntimeDependencyError{ModID: desc.ID, DependencyID: dep.ID}
			l.fail(ctx, rec, err)
			return rec
		}
	}

	if desc.Module == "" {
		// Data-only mod: no code module to drive, the record is active as
		// soon as its data is registered.
		l.transition(ctx, rec, Loaded)
		l.activate(ctx, rec)
		logger.Debug("Data-only mod loaded.")
		return rec
	}

	factory, ok := l.registry.Lookup(desc.Module)
	if !ok {
		err := &RuntimeLoadError{ModID: desc.ID, Err: fmt.Errorf("code module %q is not registered", desc.Module)}
		l.fail(ctx, rec, err)
		return rec
	}

	handle, err := instantiate(factory)
	if err != nil {
		l.fail(ctx, rec, &RuntimeLoadError{ModID: desc.ID, Err: err})
		return rec
	}
	rec.Handle = handle
	l.transition(ctx, rec, Loaded)

	host := &modHost{loader: l, record: rec, logger: logger}
	if err := initialize(ctx, handle, host); err != nil {
		// Initialization may have applied some patches before failing;
		// roll back this owner's registrations.
		l.patches.Remove(ctx, desc.ID)
		l.mu.Lock()
		delete(l.apis, desc.ID)
		l.mu.Unlock()
		l.fail(ctx, rec, &InitializationError{ModID: desc.ID, Err: err})
		return rec
	}

	l.activate(ctx, rec)
	logger.Info("Mod initialized.", "version", desc.RawVersion)
	return rec
}

// instantiate calls the factory with panic isolation.
func instantiate(factory registry.Factory) (handle registry.CodeModule, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during instantiation: %v", r)
		}
	}()
	return factory(), nil
}

// initialize calls the module's Initialize hook with panic isolation.
func initialize(ctx context.Context, m registry.CodeModule, host registry.Host) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during initialization: %v", r)
		}
	}()
	return m.Initialize(ctx, host)
}

// shutdown calls the module's Shutdown hook with panic isolation.
func shutdown(ctx context.Context, m registry.CodeModule) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during shutdown: %v", r)
		}
	}()
	return m.Shutdown(ctx)
}

// activate moves a record to Initialized and appends it to the load order.
func (l *Loader) activate(ctx context.Context, rec *Record) {
	l.mu.Lock()
	rec.LoadedAt = time.Now()
	if !slices.Contains(l.loadOrder, rec.Descriptor.ID) {
		l.loadOrder = append(l.loadOrder, rec.Descriptor.ID)
	}
	l.mu.Unlock()
	l.transition(ctx, rec, Initialized)
}

// fail records a terminal failure for this attempt and emits diagnostics.
func (l *Loader) fail(ctx context.Context, rec *Record, cause error) {
	ctxlog.FromContext(ctx).Error("Mod failed to load.", "mod", rec.Descriptor.ID, "error", cause)

	l.mu.Lock()
	from := rec.State
	rec.State = Failed
	rec.Err = cause
	rec.Handle = nil
	l.mu.Unlock()

	ev := events.New(events.KindLoadFailure, rec.Descriptor.ID)
	ev.From = from.String()
	ev.To = Failed.String()
	ev.Err = cause
	l.sink.Emit(ctx, ev)
}

// transition moves a record between lifecycle states and emits the event.
func (l *Loader) transition(ctx context.Context, rec *Record, to State) {
	l.mu.Lock()
	from := rec.State
	rec.State = to
	l.mu.Unlock()

	ev := events.New(events.KindStateChange, rec.Descriptor.ID)
	ev.From = from.String()
	ev.To = to.String()
	l.sink.Emit(ctx, ev)
}

// snapshotRecords returns value copies of the records for the given ids,
// preserving order and skipping unknown ids.
func (l *Loader) snapshotRecords(ids []string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := l.records[id]; ok {
			out = append(out, l.copyRecordLocked(rec))
		}
	}
	return out
}

// copyRecordLocked clones a record for handing outside the loader. Callers
// hold at least the read lock.
func (l *Loader) copyRecordLocked(rec *Record) Record {
	cp := *rec
	cp.PatchCount = len(l.patches.RecordsOf(rec.Descriptor.ID))
	return cp
}
