package manifest

import (
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/loadstone/loadstone/internal/fsutil"
	"github.com/loadstone/loadstone/internal/version"
)

// manifestFile mirrors the top-level structure of a mod.hcl document.
type manifestFile struct {
	Mod    *modBlock `hcl:"mod,block"`
	Remain hcl.Body  `hcl:",remain"`
}

// modBlock is the single mod block of a manifest. Unknown attributes and
// blocks fall into Remain and are ignored, keeping old engines forward
// compatible with manifests written for newer ones.
type modBlock struct {
	ID      string `hcl:"id,label"`
	Name    string `hcl:"name"`
	Version string `hcl:"version"`

	Author      string `hcl:"author,optional"`
	Description string `hcl:"description,optional"`
	Module      string `hcl:"module,optional"`

	IncompatibleWith []string `hcl:"incompatible_with,optional"`
	LoadAfter        []string `hcl:"load_after,optional"`
	LoadBefore       []string `hcl:"load_before,optional"`

	Dependencies []dependencyBlock `hcl:"dependency,block"`
	Overrides    *attrBlock        `hcl:"overrides,block"`
	Appends      *attrBlock        `hcl:"appends,block"`

	Remain hcl.Body `hcl:",remain"`
}

// dependencyBlock is one `dependency "<id>" { ... }` entry.
type dependencyBlock struct {
	ID       string   `hcl:"id,label"`
	Version  string   `hcl:"version,optional"`
	Optional bool     `hcl:"optional,optional"`
	Remain   hcl.Body `hcl:",remain"`
}

// attrBlock captures a block whose attributes form a free-form key/value set.
type attrBlock struct {
	Remain hcl.Body `hcl:",remain"`
}

// ParseDir parses the manifest inside a single mod directory into a
// Descriptor. The returned descriptor has no DiscoveryIndex yet; the
// scanner assigns it after the deterministic re-sort.
func ParseDir(dir string) (*Descriptor, error) {
	path := filepath.Join(dir, ManifestFileName)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	var mf manifestFile
	if diags := gohcl.DecodeBody(file.Body, nil, &mf); diags.HasErrors() {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, diags)
	}
	if mf.Mod == nil {
		return nil, fmt.Errorf("invalid manifest %s: missing mod block", path)
	}
	return newDescriptor(dir, mf.Mod)
}

// newDescriptor validates a decoded mod block and builds the Descriptor.
func newDescriptor(dir string, m *modBlock) (*Descriptor, error) {
	if m.ID == "" {
		return nil, fmt.Errorf("mod in %s: id label must not be empty", dir)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("mod %q: name must not be empty", m.ID)
	}

	v, err := version.Parse(m.Version)
	if err != nil {
		return nil, fmt.Errorf("mod %q: %w", m.ID, err)
	}

	deps := make([]Dependency, 0, len(m.Dependencies))
	for _, d := range m.Dependencies {
		dep := Dependency{ID: d.ID, Optional: d.Optional}
		if d.Version != "" {
			c, err := version.ParseConstraint(d.Version)
			if err != nil {
				return nil, fmt.Errorf("mod %q, dependency %q: %w", m.ID, d.ID, err)
			}
			dep.Constraint = c
		}
		deps = append(deps, dep)
	}

	overrides, err := decodeAttrBlock(m.Overrides)
	if err != nil {
		return nil, fmt.Errorf("mod %q, overrides: %w", m.ID, err)
	}
	appends, err := decodeAttrBlock(m.Appends)
	if err != nil {
		return nil, fmt.Errorf("mod %q, appends: %w", m.ID, err)
	}

	assets, err := fsutil.ListFilesExcept(dir, ManifestFileName)
	if err != nil {
		return nil, fmt.Errorf("mod %q: listing assets: %w", m.ID, err)
	}

	return &Descriptor{
		ID:               m.ID,
		Name:             m.Name,
		Version:          v,
		RawVersion:       m.Version,
		Author:           m.Author,
		Description:      m.Description,
		Module:           m.Module,
		Dependencies:     deps,
		IncompatibleWith: m.IncompatibleWith,
		LoadAfter:        m.LoadAfter,
		LoadBefore:       m.LoadBefore,
		Overrides:        overrides,
		Appends:          appends,
		Dir:              dir,
		Assets:           assets,
	}, nil
}

// decodeAttrBlock evaluates every attribute of a key/value block into a
// literal cty value. Contribution values may not reference variables.
func decodeAttrBlock(b *attrBlock) (map[string]cty.Value, error) {
	if b == nil {
		return nil, nil
	}
	attrs, diags := b.Remain.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	values := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %q: %w", name, diags)
		}
		values[name] = val
	}
	return values, nil
}
