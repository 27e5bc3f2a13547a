// Package loader owns the mod runtime lifecycle. It loads and initializes
// mods in resolved order, isolating per-mod failures so one broken mod
// never blocks independent mods, and drives the reverse path on unload:
// shutdown hooks, patch removal, record teardown. Reload re-enters the same
// path for a single mod while other lifecycle operations are serialized.
//
// The loader is the single writer of the loaded-record registry; queries
// take the shared side of an RWMutex and return snapshot copies.
package loader
