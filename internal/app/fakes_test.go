package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"hifz_attendance_notifier/internal/domain/attendance"
	"hifz_attendance_notifier/internal/domain/preset"
	"hifz_attendance_notifier/internal/domain/student"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var errStorageDown = errors.New("connection refused")

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type sentSMS struct {
	From, To, Body string
}

// fakeSender records every send and fails for the numbers listed in failures.
type fakeSender struct {
	mu       sync.Mutex
	calls    []sentSMS
	failures map[string]error
}

func (f *fakeSender) Send(ctx context.Context, from, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentSMS{From: from, To: to, Body: body})
	if err, ok := f.failures[to]; ok {
		return "", err
	}
	return fmt.Sprintf("SM%d", len(f.calls)), nil
}

func (f *fakeSender) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.To)
	}
	return out
}

// countingLimiter never blocks; it only counts how often a send slot was requested.
type countingLimiter struct {
	waits int
	err   error
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	return l.err
}

// failingAttendance rejects writes for a single student.
type failingAttendance struct {
	attendance.Repository
	failFor uuid.UUID
}

func (f failingAttendance) Upsert(ctx context.Context, rec *attendance.Record) error {
	if rec.StudentID == f.failFor {
		return errStorageDown
	}
	return f.Repository.Upsert(ctx, rec)
}

// brokenAttendance fails every list call.
type brokenAttendance struct {
	attendance.Repository
}

func (brokenAttendance) ListByClassAndDate(ctx context.Context, classID uuid.UUID, date time.Time) ([]*attendance.Record, error) {
	return nil, errStorageDown
}

// brokenPresets fails every lookup.
type brokenPresets struct{}

func (brokenPresets) FindFirst(ctx context.Context, t preset.Type, level int, isAdult bool) (*preset.Preset, error) {
	return nil, errStorageDown
}

// idlessStudents adds a student row without an id to every class listing.
type idlessStudents struct {
	student.Repository
}

func (r idlessStudents) ListActiveByClass(ctx context.Context, classID uuid.UUID) ([]*student.Student, error) {
	list, err := r.Repository.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	return append(list, &student.Student{ClassID: classID, Name: "Nameless row", IsActive: true, NotificationPhones: []string{"5557778888"}}), nil
}
