package optcache

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleRead is returned by CompleteRead when the read was superseded by a
	// newer read or a mutation. The result was dropped; callers treat it as a no-op.
	ErrStaleRead = errors.New("optcache: stale read discarded")

	// ErrSetRejected is returned when the provider refused a write (eviction or
	// admission pressure). The previous value, if any, may still be present.
	ErrSetRejected = errors.New("optcache: provider rejected write")
)

// TransportError wraps a failure of an injected read or write function
// (network error, bad status, malformed payload, cancelled context).
type TransportError struct {
	Op  string // "read" or the mutation name
	Key string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("optcache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RollbackError is returned when a mutation failed remotely and restoring its
// snapshot failed as well. The cache holds the provisional value.
type RollbackError struct {
	Key        string
	Cause      error
	RestoreErr error
}

func (e *RollbackError) Error() string {
	switch {
	case e.Cause != nil && e.RestoreErr != nil:
		return fmt.Sprintf("rollback %q failed: cause=%v; restore=%v", e.Key, e.Cause, e.RestoreErr)
	case e.RestoreErr != nil:
		return fmt.Sprintf("rollback %q: restore failed: %v", e.Key, e.RestoreErr)
	case e.Cause != nil:
		return fmt.Sprintf("rollback %q: %v", e.Key, e.Cause)
	default:
		return fmt.Sprintf("rollback %q: unknown error", e.Key)
	}
}

func (e *RollbackError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.RestoreErr != nil {
		errs = append(errs, e.RestoreErr)
	}
	return errs
}
