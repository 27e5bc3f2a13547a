// Package dag resolves the mod dependency graph into a deterministic load
// order. It builds a directed graph fresh for every resolution call from an
// immutable snapshot of descriptors, validates hard dependency, version and
// incompatibility constraints, detects cycles with a full chain report, and
// topologically sorts the result with a stable tie-break so independent
// mods always load in the same relative order across runs.
package dag
