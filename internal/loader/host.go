package loader

import (
	"context"
	"log/slog"

	"github.com/loadstone/loadstone/internal/manifest"
	"github.com/loadstone/loadstone/internal/patch"
)

// modHost is the per-mod capability surface handed to a code module. It
// tags every operation with the owning mod's id so patch ownership and API
// publication stay scoped.
type modHost struct {
	loader *Loader
	record *Record
	logger *slog.Logger
}

// Descriptor implements registry.Host.
func (h *modHost) Descriptor() *manifest.Descriptor {
	return h.record.Descriptor
}

// Logger implements registry.Host.
func (h *modHost) Logger() *slog.Logger {
	return h.logger
}

// ApplyPatches implements registry.Host.
func (h *modHost) ApplyPatches(ctx context.Context, patches []patch.Patch) []patch.Record {
	return h.loader.patches.Apply(ctx, h.record.Descriptor.ID, patches)
}

// PublishAPI implements registry.Host.
func (h *modHost) PublishAPI(api any) {
	h.loader.mu.Lock()
	defer h.loader.mu.Unlock()
	h.loader.apis[h.record.Descriptor.ID] = api
}
