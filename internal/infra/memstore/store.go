// Package memstore keeps students, classes, presets and attendance in memory.
// It backs STORAGE_DRIVER=memory for local runs and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"hifz_attendance_notifier/internal/domain/attendance"
	"hifz_attendance_notifier/internal/domain/class"
	"hifz_attendance_notifier/internal/domain/preset"
	"hifz_attendance_notifier/internal/domain/student"

	"github.com/google/uuid"
)

type attendanceKey struct {
	studentID uuid.UUID
	classID   uuid.UUID
	date      time.Time
}

// Store implements every repository interface the workflow uses.
type Store struct {
	mu           sync.RWMutex
	classes      map[uuid.UUID]class.Class
	students     map[uuid.UUID]student.Student
	presets      []preset.Preset
	nextPresetID int64
	records      map[attendanceKey]attendance.Record
	nowFunc      func() time.Time
}

var (
	_ attendance.Repository = (*Store)(nil)
	_ student.Repository    = (*Store)(nil)
	_ class.Repository      = classView{}
	_ preset.Repository     = (*Store)(nil)
)

func New() *Store {
	return &Store{
		classes:      make(map[uuid.UUID]class.Class),
		students:     make(map[uuid.UUID]student.Student),
		records:      make(map[attendanceKey]attendance.Record),
		nextPresetID: 1,
		nowFunc:      time.Now,
	}
}

// AddClass stores c, assigning an id when it has none.
func (s *Store) AddClass(c class.Class) class.Class {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.nowFunc()
	}
	s.classes[c.ID] = c
	return c
}

// AddStudent stores st, assigning an id when it has none.
func (s *Store) AddStudent(st student.Student) student.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	now := s.nowFunc()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	st.NotificationPhones = append([]string(nil), st.NotificationPhones...)
	s.students[st.ID] = st
	return st
}

// AddPreset stores p with the next sequential id.
func (s *Store) AddPreset(p preset.Preset) preset.Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextPresetID
	s.nextPresetID++
	p.UpdatedAt = s.nowFunc()
	s.presets = append(s.presets, p)
	return p
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*student.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return nil, student.ErrNotFound
	}
	return copyStudent(st), nil
}

func (s *Store) ListActiveByClass(ctx context.Context, classID uuid.UUID) ([]*student.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*student.Student
	for _, st := range s.students {
		if st.ClassID == classID && st.IsActive {
			out = append(out, copyStudent(st))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func copyStudent(st student.Student) *student.Student {
	st.NotificationPhones = append([]string(nil), st.NotificationPhones...)
	return &st
}

// Classes returns a class.Repository view of the store. Store cannot satisfy
// class.Repository directly because its GetByID already serves students.
func (s *Store) Classes() class.Repository {
	return classView{s}
}

type classView struct{ s *Store }

func (v classView) GetByID(ctx context.Context, id uuid.UUID) (*class.Class, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	c, ok := v.s.classes[id]
	if !ok {
		return nil, class.ErrNotFound
	}
	return &c, nil
}

func (s *Store) FindFirst(ctx context.Context, t preset.Type, level int, isAdult bool) (*preset.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// presets are appended in id order, so the first match has the lowest id
	for _, p := range s.presets {
		if p.Type == t && p.Level == level && p.IsAdult == isAdult {
			p := p
			return &p, nil
		}
	}
	return nil, preset.ErrNotFound
}

func (s *Store) Upsert(ctx context.Context, rec *attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attendanceKey{rec.StudentID, rec.ClassID, attendance.DayOf(rec.Date)}
	now := s.nowFunc()

	stored := *rec
	stored.Date = key.date
	stored.UpdatedAt = now
	if existing, ok := s.records[key]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	s.records[key] = stored

	rec.Date = stored.Date
	rec.CreatedAt = stored.CreatedAt
	rec.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *Store) Get(ctx context.Context, studentID, classID uuid.UUID, date time.Time) (*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[attendanceKey{studentID, classID, attendance.DayOf(date)}]
	if !ok {
		return nil, attendance.ErrRecordNotFound
	}
	return &rec, nil
}

func (s *Store) ListByClassAndDate(ctx context.Context, classID uuid.UUID, date time.Time) ([]*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := attendance.DayOf(date)
	var out []*attendance.Record
	for key, rec := range s.records {
		if key.classID == classID && key.date.Equal(day) {
			rec := rec
			out = append(out, &rec)
		}
	}
	return out, nil
}

// RecordCount returns the number of stored attendance records.
func (s *Store) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
