package app

import "hifz_attendance_notifier/internal/domain/student"

const (
	MinAbsenceLevel = 1
	MaxAbsenceLevel = 3
)

// LevelResolver picks the escalation tier used to choose notification wording.
type LevelResolver interface {
	ResolveLevel(s *student.Student) int
}

// StoredLevel reads the level kept on the student record. The counters are
// maintained elsewhere, so this never derives a level from absences itself.
type StoredLevel struct{}

func (StoredLevel) ResolveLevel(s *student.Student) int {
	if s == nil || !s.AbsenceLevel.Valid {
		return MinAbsenceLevel
	}
	return clampLevel(int(s.AbsenceLevel.Int32))
}

func clampLevel(level int) int {
	if level < MinAbsenceLevel {
		return MinAbsenceLevel
	}
	if level > MaxAbsenceLevel {
		return MaxAbsenceLevel
	}
	return level
}
