// Package version implements mod version handling: strict three-component
// semantic versions and the constraint grammar used by manifest dependency
// declarations (exact, ">=", "^", "~").
package version

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// strictRe matches exactly MAJOR.MINOR.PATCH with non-negative integers.
// Pre-release and build metadata are not part of the manifest contract.
var strictRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Parse parses a strict three-component version string.
func Parse(s string) (*semver.Version, error) {
	if !strictRe.MatchString(s) {
		return nil, fmt.Errorf("invalid version %q: must be MAJOR.MINOR.PATCH", s)
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return v, nil
}

// Op identifies the comparison a constraint performs.
type Op int

const (
	// OpExact requires the dependency version to equal the given version.
	OpExact Op = iota
	// OpMinimum requires the dependency version to be >= the given version.
	OpMinimum
	// OpCaret requires the same major version and >= the given minor.patch.
	OpCaret
	// OpTilde requires the same major.minor version and >= the given patch.
	OpTilde
)

// Constraint is a parsed version constraint from a dependency declaration.
type Constraint struct {
	op  Op
	ref *semver.Version
	raw string
}

// ParseConstraint parses one of the four supported constraint forms:
// "1.5.3" (exact), ">=1.0.0" (minimum), "^2.0.0" (compatible minor),
// "~1.2.0" (compatible patch).
func ParseConstraint(s string) (*Constraint, error) {
	op := OpExact
	rest := s
	switch {
	case strings.HasPrefix(s, ">="):
		op, rest = OpMinimum, s[2:]
	case strings.HasPrefix(s, "^"):
		op, rest = OpCaret, s[1:]
	case strings.HasPrefix(s, "~"):
		op, rest = OpTilde, s[1:]
	}

	ref, err := Parse(rest)
	if err != nil {
		return nil, fmt.Errorf("invalid constraint %q: %w", s, err)
	}
	return &Constraint{op: op, ref: ref, raw: s}, nil
}

// Check reports whether v satisfies the constraint. Comparison is pure
// three-component numeric comparison.
func (c *Constraint) Check(v *semver.Version) bool {
	switch c.op {
	case OpExact:
		return v.Compare(c.ref) == 0
	case OpMinimum:
		return v.Compare(c.ref) >= 0
	case OpCaret:
		return v.Major() == c.ref.Major() && v.Compare(c.ref) >= 0
	case OpTilde:
		return v.Major() == c.ref.Major() && v.Minor() == c.ref.Minor() && v.Compare(c.ref) >= 0
	}
	return false
}

// String returns the constraint as written in the manifest.
func (c *Constraint) String() string {
	return c.raw
}
