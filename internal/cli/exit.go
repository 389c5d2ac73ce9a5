package cli

import (
	"errors"
	"fmt"
)

// Process exit statuses.
const (
	ExitOK = 0
	// ExitFailed means the suite ran and at least one case failed.
	ExitFailed = 1
	// ExitSetup means the suite could not run: bad flags, config or backend.
	ExitSetup = 2
)

// ExitError attaches a process exit status to the error that ended a
// command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps the error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitSetup
}
