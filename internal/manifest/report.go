package manifest

import "fmt"

// ValidationError records why one discovered mod directory was excluded
// from the scan result.
type ValidationError struct {
	// Dir is the offending mod directory.
	Dir string
	// Err is the underlying parse or validation failure.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid mod in %s: %v", e.Dir, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Report collects the validation failures of a single scan. A scan with a
// non-empty report still succeeds; the offending mods are simply excluded.
type Report struct {
	Errors []*ValidationError
}

// Add records one validation failure.
func (r *Report) Add(dir string, err error) {
	r.Errors = append(r.Errors, &ValidationError{Dir: dir, Err: err})
}

// OK reports whether every discovered mod parsed cleanly.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}
