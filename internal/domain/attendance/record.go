// internal/domain/attendance/record.go
package attendance

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome recorded for a student on a given day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// Record is a single (student, class, date) attendance entry.
// Corresponds to the 'attendance_records' table; (student_id, class_id, date) is unique.
type Record struct {
	StudentID  uuid.UUID      `validate:"required"`
	ClassID    uuid.UUID      `validate:"required"`
	Date       time.Time      `validate:"required"` // Calendar day, see DayOf
	Status     Status         `validate:"required,oneof=present absent"`
	Note       sql.NullString // Resolved notification text for absences, free text otherwise
	RecordedBy uuid.UUID      `validate:"required"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DayOf returns t's calendar day, as seen in t's location, at midnight UTC.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
