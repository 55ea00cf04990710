package selector

import "fmt"

// SelectionError wraps a contact source failure. A run that hits one
// transitions to failed with its partial log preserved.
type SelectionError struct {
	Kind string
	Err  error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("candidate selection for %s failed: %v", e.Kind, e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }
