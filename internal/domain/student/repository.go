package student

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("student not found")

// Repository defines the read operations the workflow needs on students.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Student, error)
	// ListActiveByClass returns the active students of a class ordered by name.
	ListActiveByClass(ctx context.Context, classID uuid.UUID) ([]*Student, error)
}
