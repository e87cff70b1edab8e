// internal/domain/attendance/repository.go
package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRecordNotFound is returned when no record exists for a (student, class, date) key.
var ErrRecordNotFound = errors.New("attendance record not found")

// Repository defines persistence for attendance records.
type Repository interface {
	// Upsert inserts the record or overwrites status, note and recorded_by of the
	// existing record with the same (student, class, date) key. Last write wins.
	Upsert(ctx context.Context, rec *Record) error
	Get(ctx context.Context, studentID, classID uuid.UUID, date time.Time) (*Record, error)
	ListByClassAndDate(ctx context.Context, classID uuid.UUID, date time.Time) ([]*Record, error)
}
