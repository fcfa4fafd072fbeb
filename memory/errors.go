package memory

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store lookups when the requested entity does
// not exist.
var ErrNotFound = errors.New("not found")

// TransientError marks a retryable resource failure (embedding backend
// unavailable, database connection drop). Batch jobs surface these as
// failed operations rather than crashing.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ConfigError marks a fatal startup misconfiguration (missing taxonomy,
// invalid dimensions). It is never silently degraded.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}
