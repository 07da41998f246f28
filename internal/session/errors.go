package session

import (
	"errors"
	"fmt"
)

// SetupError is a fatal condition: the process cannot continue without the
// resource that failed to open. It is never retried.
type SetupError struct {
	Op     string
	Target string
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Target, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

func IsSetupError(err error) bool {
	var setupErr *SetupError
	return errors.As(err, &setupErr)
}
