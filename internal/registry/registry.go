// Package registry provides the in-process registry of loadable code
// modules.
//
// A mod's manifest may name a code module; the loader resolves that name
// here and drives the module through its narrow lifecycle interface. The
// registry stores factories, not instances, so every load produces a fresh
// isolated module that can be shut down and rebuilt on reload.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loadstone/loadstone/internal/manifest"
	"github.com/loadstone/loadstone/internal/patch"
)

// Host is the capability surface handed to a code module during
// initialization. It scopes everything the module does to its owning mod.
type Host interface {
	// Descriptor returns the owning mod's parsed manifest.
	Descriptor() *manifest.Descriptor
	// Logger returns a logger pre-tagged with the owning mod's id.
	Logger() *slog.Logger
	// ApplyPatches registers runtime interceptors owned by this mod. They
	// are removed automatically when the mod unloads.
	ApplyPatches(ctx context.Context, patches []patch.Patch) []patch.Record
	// PublishAPI exposes a capability object other mods and the host
	// application can look up by this mod's id.
	PublishAPI(api any)
}

// CodeModule is the lifecycle contract every loadable unit implements.
type CodeModule interface {
	// Initialize is called once, after all hard dependencies have
	// completed their own initialization.
	Initialize(ctx context.Context, host Host) error
	// Shutdown is called on unload, in reverse load order.
	Shutdown(ctx context.Context) error
}

// Factory builds a fresh CodeModule instance for one load attempt.
type Factory func() CodeModule

// Module is implemented by built-in packages that contribute code modules
// to an application instance.
type Module interface {
	Register(r *Registry)
}

// Registry maps code-module reference names to factories for a single
// application instance. Registration happens during startup, before any
// load, so it is not synchronized.
type Registry struct {
	factories map[string]Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// RegisterModule registers a factory under a reference name. A duplicate
// name is a programmer error and panics, matching startup-time wiring.
func (r *Registry) RegisterModule(name string, factory Factory) {
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("code module with name '%s' already registered", name))
	}
	slog.Debug("Registering code module.", "name", name)
	r.factories[name] = factory
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}
