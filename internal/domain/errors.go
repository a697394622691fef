package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyActive     = errors.New("a session is already active")
	ErrNotActive         = errors.New("no active session")
	ErrStillLocked       = errors.New("session has not expired yet, use --force to override")
	ErrNoProfile         = errors.New("no profile specified and no default profile configured")
	ErrEmptyTargetSet    = errors.New("profile has no targets to block")
	ErrInvalidDuration   = errors.New("duration must be greater than zero")
	ErrPermissionDenied  = errors.New("elevated privileges required")
	ErrUnsupportedTarget = errors.New("unsupported target kind")
	ErrCorruptState      = errors.New("session state file is corrupt")
)

// ApplyError reports a target whose block could not be applied or removed.
type ApplyError struct {
	Target BlockTarget
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s: %v", e.Target, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
