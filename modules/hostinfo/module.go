// Package hostinfo is a built-in code module that publishes basic engine
// and runtime information as a capability API other mods can look up.
package hostinfo

import (
	"context"
	"runtime"

	"github.com/loadstone/loadstone/internal/registry"
)

// ModuleName is the reference name manifests use to bind this module.
const ModuleName = "hostinfo"

// EngineVersion is the engine release baked into builds.
const EngineVersion = "0.3.0"

// API is the capability object published by this module.
type API struct {
	EngineVersion string
	GoVersion     string
	OS            string
	Arch          string
}

// Module registers the hostinfo code module.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterModule(ModuleName, func() registry.CodeModule {
		return &service{}
	})
}

type service struct{}

// Initialize implements registry.CodeModule.
func (s *service) Initialize(ctx context.Context, host registry.Host) error {
	host.PublishAPI(&API{
		EngineVersion: EngineVersion,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	})
	host.Logger().Debug("hostinfo API published.")
	return nil
}

// Shutdown implements registry.CodeModule.
func (s *service) Shutdown(ctx context.Context) error {
	return nil
}
