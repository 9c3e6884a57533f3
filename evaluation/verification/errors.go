package verification

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownService is returned for tasks whose service has no backend
// registered with the runner.
var ErrUnknownService = errors.New("no backend registered for service")

// SpawnError means the verification process never started: the program is
// missing, not executable, or the working directory is unusable.
type SpawnError struct {
	TaskKey string
	Argv    []string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn verification for %s (%s): %v", e.TaskKey, strings.Join(e.Argv, " "), e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// RunError is any other failure of the runner itself, such as a missing
// backend, an unbuildable command or cancellation by the caller.
type RunError struct {
	TaskKey string
	Op      string
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("verification %s for %s: %v", e.Op, e.TaskKey, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
