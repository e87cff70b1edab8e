package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Postgres error codes this package maps to friendlier errors.
const (
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

var (
	ErrUnknownReference = errors.New("referenced student or class does not exist")
	ErrConstraint       = errors.New("value violates a table constraint")
)

// wrapWriteError keeps the pq error in the chain and tags known constraint failures.
func wrapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w (constraint %s): %w", op, ErrUnknownReference, pqErr.Constraint, err)
		case pqCheckViolation:
			return fmt.Errorf("%s: %w (constraint %s): %w", op, ErrConstraint, pqErr.Constraint, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
