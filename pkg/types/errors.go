package types

import (
	"errors"
	"fmt"
)

var (
	// Lock store errors
	ErrAlreadyExists = errors.New("lock already exists")
	ErrNotFound      = errors.New("lock not found")
	ErrUnreleasable  = errors.New("lock is unreleasable")

	// Client errors
	ErrTimeout = errors.New("timed out acquiring lock")

	// Request errors
	ErrInvalidKey   = errors.New("lock key is required")
	ErrInvalidLease = errors.New("lease is negative or too large")
)

// UnreleasableError is returned when a release presents a fencing token
// that is not the lock's current clock.
type UnreleasableError struct {
	Key       string
	Expected  uint64
	Presented uint64
}

func (e *UnreleasableError) Error() string {
	return fmt.Sprintf("tried to release lock %q at clock %d, but given clock %d", e.Key, e.Expected, e.Presented)
}

func (e *UnreleasableError) Is(target error) bool {
	return target == ErrUnreleasable
}
