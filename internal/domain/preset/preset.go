// internal/domain/preset/preset.go
package preset

import (
	"context"
	"errors"
	"time"
)

// Type is the kind of notification a preset is written for.
type Type string

const (
	TypeLessonAbsent     Type = "lesson_absent"
	TypeLessonFail       Type = "lesson_fail"
	TypeLessonRepeat     Type = "lesson_repeat"
	TypePaymentFailed    Type = "payment_failed"
	TypeHomeworkAssigned Type = "homework_assigned"
	TypeLessonPass       Type = "lesson_pass"
)

// AllTypes lists every known notification type.
var AllTypes = []Type{
	TypeLessonAbsent,
	TypeLessonFail,
	TypeLessonRepeat,
	TypePaymentFailed,
	TypeHomeworkAssigned,
	TypeLessonPass,
}

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

var ErrNotFound = errors.New("notification preset not found")

// Preset is an operator-authored message template.
// Corresponds to the 'notification_presets' table.
type Preset struct {
	ID        int64
	Type      Type
	Level     int
	IsAdult   bool
	Message   string // May contain {{student_name}}, {{class_name}}, {{surah}}, {{verses}}
	UpdatedAt time.Time
}

// Repository is a read-only view of the preset pool.
type Repository interface {
	// FindFirst returns the preset with the lowest id matching (type, level, isAdult),
	// or ErrNotFound when none match.
	FindFirst(ctx context.Context, t Type, level int, isAdult bool) (*Preset, error)
}
