package manifest

import (
	"github.com/Masterminds/semver/v3"
	"github.com/zclconf/go-cty/cty"

	"github.com/loadstone/loadstone/internal/version"
)

// ManifestFileName is the metadata document expected in every mod directory.
const ManifestFileName = "mod.hcl"

// Dependency is one entry of a mod's depends-on set.
type Dependency struct {
	// ID of the mod this dependency points at.
	ID string
	// Constraint the dependency's version must satisfy. Nil means any version.
	Constraint *version.Constraint
	// Optional dependencies add an ordering edge when present but do not
	// fail resolution when absent.
	Optional bool
}

// Descriptor is the parsed, validated metadata of a single mod. Descriptors
// are immutable after the scan; the loader and resolver only read them.
type Descriptor struct {
	// ID is the unique stable token identifying the mod.
	ID string
	// Name is the human-readable mod name.
	Name string
	// Version is the mod's own version.
	Version *semver.Version
	// RawVersion is the version string as written in the manifest.
	RawVersion string

	Author      string
	Description string

	// Module optionally names a registered code module backing this mod.
	// Empty for data-only mods.
	Module string

	Dependencies     []Dependency
	IncompatibleWith []string
	LoadAfter        []string
	LoadBefore       []string

	// Overrides are scalar data contributions; the latest mod in load order
	// wins per key. Appends are list contributions concatenated in load
	// order. Values stay opaque cty values until merged.
	Overrides map[string]cty.Value
	Appends   map[string]cty.Value

	// Dir is the mod's source directory.
	Dir string
	// Assets are the resolved paths of every non-manifest file in Dir,
	// handed to external collaborators without interpretation.
	Assets []string

	// DiscoveryIndex is the mod's position in the deterministic scan order.
	// The resolver uses it to break ties between independent mods.
	DiscoveryIndex int
}
