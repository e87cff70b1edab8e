// internal/app/errors.go
package app

import (
	"errors"
	"fmt"
)

// Precondition failures. They are checked before any write happens.
var (
	ErrNoActor           = errors.New("no authenticated user")
	ErrClassNotFound     = errors.New("class data not found")
	ErrStudentNotFound   = errors.New("student not found")
	ErrStudentNotInClass = errors.New("student is not enrolled in this class")
	ErrUnknownNoticeType = errors.New("unknown notification type")
)

// PreconditionError aborts a single action before any mutation.
type PreconditionError struct {
	Err error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %v", e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

func precondition(err error) error {
	return &PreconditionError{Err: err}
}

// StorageError reports a rejected read or write against the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsPrecondition reports whether err is, or wraps, a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsStorage reports whether err is, or wraps, a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
