package loader

import "fmt"

// RuntimeLoadError reports a failure to instantiate a mod's code module.
type RuntimeLoadError struct {
	ModID string
	Err   error
}

// Error implements the error interface.
func (e *RuntimeLoadError) Error() string {
	return fmt.Sprintf("mod %q failed to load: %v", e.ModID, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *RuntimeLoadError) Unwrap() error {
	return e.Err
}

// InitializationError reports a failure (or panic) inside a code module's
// Initialize hook.
type InitializationError struct {
	ModID string
	Err   error
}

// Error implements the error interface.
func (e *InitializationError) Error() string {
	return fmt.Sprintf("mod %q failed to initialize: %v", e.ModID, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *InitializationError) Unwrap() error {
	return e.Err
}

// MissingRuntimeDependencyError reports a mod whose hard dependency was
// resolved but ended Failed at load time. The dependent fails without
// attempting initialization rather than running against an absent
// dependency.
type MissingRuntimeDependencyError struct {
	ModID        string
	DependencyID string
}

// Error implements the error interface.
func (e *MissingRuntimeDependencyError) Error() string {
	return fmt.Sprintf("mod %q cannot initialize: dependency %q is not loaded", e.ModID, e.DependencyID)
}

// UnknownModError reports a lifecycle operation against an id the loader
// has never seen.
type UnknownModError struct {
	ModID string
}

// Error implements the error interface.
func (e *UnknownModError) Error() string {
	return fmt.Sprintf("unknown mod %q", e.ModID)
}
