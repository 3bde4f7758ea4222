package engine

import (
	"errors"
	"fmt"
	"os"
)

// Typed outcomes surfaced to callers. State-precondition mismatches
// (AlreadyRunning, NotRunning) reflect a race with reality rather than a
// bug; callers usually report them verbatim instead of treating them as
// faults.
var (
	ErrNotConfigured   = errors.New("app is not configured for launch")
	ErrAlreadyRunning  = errors.New("app is already running")
	ErrNotRunning      = errors.New("app is not running")
	ErrTerminateFailed = errors.New("termination failed")
)

// SpawnKind classifies why a spawn failed.
type SpawnKind string

const (
	SpawnMissingExecutable SpawnKind = "missing_executable"
	SpawnPermissionDenied  SpawnKind = "permission_denied"
	SpawnOther             SpawnKind = "other"
)

// SpawnError reports an OS-level launch failure with its classification and
// the underlying reason.
type SpawnError struct {
	Kind SpawnKind
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn failed (%s): %v", e.Kind, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func classifySpawn(err error) *SpawnError {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &SpawnError{Kind: SpawnMissingExecutable, Err: err}
	case errors.Is(err, os.ErrPermission):
		return &SpawnError{Kind: SpawnPermissionDenied, Err: err}
	default:
		return &SpawnError{Kind: SpawnOther, Err: err}
	}
}
