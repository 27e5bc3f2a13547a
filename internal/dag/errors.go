package dag

import (
	"fmt"
	"strings"
)

// CircularDependencyError reports a dependency cycle, including a 1-node
// self-dependency. Chain holds the full cycle, first node repeated last.
type CircularDependencyError struct {
	Chain []string
}

// Error implements the error interface.
func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Chain, " -> "))
}

// MissingDependencyError reports a non-optional dependency that is absent
// from the discovered set. Missing-at-resolution-time is strictly fatal;
// load-time failures of present mods are handled leniently by the loader.
type MissingDependencyError struct {
	ModID     string
	MissingID string
}

// Error implements the error interface.
func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("mod %q requires missing mod %q", e.ModID, e.MissingID)
}

// VersionIncompatibleError reports a dependency whose resolved version does
// not satisfy the dependent's declared constraint.
type VersionIncompatibleError struct {
	ModID        string
	DependencyID string
	Constraint   string
	Actual       string
}

// Error implements the error interface.
func (e *VersionIncompatibleError) Error() string {
	return fmt.Sprintf("mod %q requires mod %q version %s, but %s is present",
		e.ModID, e.DependencyID, e.Constraint, e.Actual)
}

// IncompatibilityError reports two discovered mods that declare each other
// (or one the other) incompatible.
type IncompatibilityError struct {
	ModID          string
	IncompatibleID string
}

// Error implements the error interface.
func (e *IncompatibilityError) Error() string {
	return fmt.Sprintf("mod %q is incompatible with mod %q", e.ModID, e.IncompatibleID)
}
