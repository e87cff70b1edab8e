package class

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("class not found")

// Class is a study circle students are enrolled in.
type Class struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Class, error)
}
