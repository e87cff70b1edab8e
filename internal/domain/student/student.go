package student

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Student represents an enrolled student.
// AbsenceLevel and ConsecutiveAbsences are maintained by the escalation job
// outside this service; they are only read here.
type Student struct {
	ID                  uuid.UUID
	ClassID             uuid.UUID
	Name                string
	AbsenceLevel        sql.NullInt32
	ConsecutiveAbsences int
	IsAdult             bool     // Adults are notified directly, children through their parents
	NotificationPhones  []string // Raw phone numbers as entered by staff
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
