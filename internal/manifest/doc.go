// Package manifest implements mod discovery and metadata parsing.
//
// Each mod lives in its own subdirectory of the mod root and declares its
// identity, version, dependencies, ordering hints and data contributions in
// a single mod.hcl file. The Scanner walks the root, parses every manifest
// it finds, and produces a deterministic slice of Descriptors plus a
// validation Report. One malformed mod never aborts the scan; it is
// recorded in the report and excluded from the result.
package manifest
