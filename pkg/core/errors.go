package core

import "fmt"

// ConfigSpaceError reports a malformed or ambiguous dimension or metric
// specification. It is fatal at search start and never retried.
type ConfigSpaceError struct {
	Reason string
}

func (e *ConfigSpaceError) Error() string {
	return fmt.Sprintf("configuration space error: %s", e.Reason)
}
