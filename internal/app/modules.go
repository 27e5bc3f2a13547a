package app

import (
	"github.com/loadstone/loadstone/internal/registry"
	"github.com/loadstone/loadstone/modules/hostinfo"
)

// coreModules is the definitive list of code modules compiled into the
// loadstone binary. Hosts embedding the engine pass their own list to
// NewApp instead.
var coreModules = []registry.Module{
	&hostinfo.Module{},
}

// APIAs looks up the capability object a mod published and asserts it to
// the requested type.
func APIAs[T any](a *App, id string) (T, bool) {
	var zero T
	api, ok := a.API(id)
	if !ok {
		return zero, false
	}
	typed, ok := api.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
