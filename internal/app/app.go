// Package app wires the engine together: manifest scanner, dependency
// resolver, code-module registry, runtime loader, patch coordinator,
// override merger and metrics, behind the query and lifecycle API a host
// embeds or the CLI drives.
package app

import (
	"io"
	"log/slog"
	"sync"

	"github.com/loadstone/loadstone/internal/dag"
	"github.com/loadstone/loadstone/internal/loader"
	"github.com/loadstone/loadstone/internal/manifest"
	"github.com/loadstone/loadstone/internal/metrics"
	"github.com/loadstone/loadstone/internal/overrides"
	"github.com/loadstone/loadstone/internal/patch"
	"github.com/loadstone/loadstone/internal/registry"
)

// App encapsulates one engine instance: its configuration, logger and the
// explicitly-owned mod/patch registries. Nothing here is process-global;
// two Apps in one process stay fully isolated.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	patches  *patch.Coordinator
	loader   *loader.Loader
	scanner  *manifest.Scanner
	metrics  *metrics.Metrics

	// mu guards the resolution results below; the loader guards its own
	// registries internally.
	mu          sync.RWMutex
	descriptors []*manifest.Descriptor
	report      *manifest.Report
	order       dag.LoadOrder
	values      *overrides.Values
	lastLoad    metrics.Snapshot
}

// NewApp is the constructor for the engine. It returns a fully initialized
// App instance, including its own isolated logger and registries. When no
// modules are passed, the built-in core modules are registered.
func NewApp(outW io.Writer, config *Config, modules ...registry.Module) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All built-in code modules registered.", "count", len(modules))

	coordinator := patch.NewCoordinator()

	return &App{
		outW:     outW,
		logger:   logger,
		config:   config,
		registry: reg,
		patches:  coordinator,
		loader:   loader.New(reg, coordinator, nil),
		scanner:  &manifest.Scanner{Workers: config.ScanWorkers},
		metrics:  metrics.New(),
		values:   overrides.Merge(nil, nil),
	}
}

// Registry returns the application's code-module registry. This is
// primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Patches returns the application's patch coordinator.
func (a *App) Patches() *patch.Coordinator {
	return a.patches
}
