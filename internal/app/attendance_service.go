// internal/app/attendance_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hifz_attendance_notifier/internal/domain/attendance"
	"hifz_attendance_notifier/internal/domain/class"
	"hifz_attendance_notifier/internal/domain/preset"
	"hifz_attendance_notifier/internal/domain/student"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SMSDispatcher is the part of Dispatcher the attendance workflow depends on.
type SMSDispatcher interface {
	SendSMS(ctx context.Context, recipients []string, body string) DispatchResult
}

// AttendanceService marks attendance and notifies families about absences.
type AttendanceService struct {
	attendanceRepo attendance.Repository
	studentRepo    student.Repository
	classRepo      class.Repository
	levels         LevelResolver
	messages       *MessageResolver
	dispatcher     SMSDispatcher
	validate       *validator.Validate
	logger         *logrus.Entry
}

func NewAttendanceService(
	ar attendance.Repository,
	sr student.Repository,
	cr class.Repository,
	levels LevelResolver,
	messages *MessageResolver,
	dispatcher SMSDispatcher,
	logger *logrus.Entry,
) *AttendanceService {
	if levels == nil {
		levels = StoredLevel{}
	}
	return &AttendanceService{
		attendanceRepo: ar,
		studentRepo:    sr,
		classRepo:      cr,
		levels:         levels,
		messages:       messages,
		dispatcher:     dispatcher,
		validate:       validator.New(),
		logger:         logger.WithField("component", "attendance_service"),
	}
}

// Roster returns the active students of a class who have no attendance record
// for the given day yet, in the order the student repository lists them.
func (s *AttendanceService) Roster(ctx context.Context, classID uuid.UUID, date time.Time) ([]*student.Student, error) {
	if _, err := s.loadClass(ctx, classID); err != nil {
		return nil, err
	}
	return s.pendingStudents(ctx, classID, attendance.DayOf(date))
}

func (s *AttendanceService) pendingStudents(ctx context.Context, classID uuid.UUID, day time.Time) ([]*student.Student, error) {
	students, err := s.studentRepo.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, storageError("list students", err)
	}
	records, err := s.attendanceRepo.ListByClassAndDate(ctx, classID, day)
	if err != nil {
		return nil, storageError("list attendance", err)
	}

	marked := make(map[uuid.UUID]struct{}, len(records))
	for _, rec := range records {
		if rec.Status.Valid() {
			marked[rec.StudentID] = struct{}{}
		}
	}

	pending := make([]*student.Student, 0, len(students))
	for _, st := range students {
		if _, done := marked[st.ID]; !done {
			pending = append(pending, st)
		}
	}
	return pending, nil
}

// MarkAllAbsent marks every not-yet-marked student of the class absent for the
// day and notifies their contacts. Students are processed one by one; a failure
// for one student is recorded in the summary and the sweep moves on.
// Once started the sweep is not cancelled by the caller's context.
func (s *AttendanceService) MarkAllAbsent(ctx context.Context, actor *Actor, classID uuid.UUID, date time.Time) (*BatchSummary, error) {
	if !actor.valid() {
		return nil, precondition(ErrNoActor)
	}
	cls, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	day := attendance.DayOf(date)
	logCtx := s.logger.WithFields(logrus.Fields{
		"class_id": classID,
		"date":     day.Format("2006-01-02"),
		"actor_id": actor.UserID,
	})

	pending, err := s.pendingStudents(ctx, classID, day)
	if err != nil {
		logCtx.WithError(err).Error("Failed to build roster for absence sweep")
		return nil, err
	}
	logCtx.WithField("students", len(pending)).Info("Starting absence sweep")

	ctx = context.WithoutCancel(ctx)
	summary := &BatchSummary{ClassName: cls.Name}
	for _, st := range pending {
		outcome := s.markAbsent(ctx, actor, cls, st, day)
		summary.add(outcome)
	}

	logCtx.WithFields(logrus.Fields{
		"marked":             summary.Marked,
		"notifications_sent": summary.NotificationsSent,
		"failed":             len(summary.Failed),
		"sms_failed":         len(summary.NotificationFailures),
	}).Info("Absence sweep finished")
	return summary, nil
}

// MarkAbsent marks a single student absent and notifies their contacts.
// A failed write is returned as an error; an SMS failure is only reported
// in the outcome because the attendance itself was saved.
func (s *AttendanceService) MarkAbsent(ctx context.Context, actor *Actor, classID, studentID uuid.UUID, date time.Time) (*StudentOutcome, error) {
	cls, st, err := s.checkSingle(ctx, actor, classID, studentID)
	if err != nil {
		return nil, err
	}
	outcome := s.markAbsent(ctx, actor, cls, st, attendance.DayOf(date))
	if outcome.Err != nil {
		return &outcome, outcome.Err
	}
	return &outcome, nil
}

// MarkPresent records the student as present. No notification is sent.
func (s *AttendanceService) MarkPresent(ctx context.Context, actor *Actor, classID, studentID uuid.UUID, date time.Time, note string) (*StudentOutcome, error) {
	_, st, err := s.checkSingle(ctx, actor, classID, studentID)
	if err != nil {
		return nil, err
	}

	outcome := StudentOutcome{StudentID: st.ID, Name: st.Name, Level: s.levels.ResolveLevel(st)}
	rec := &attendance.Record{
		StudentID:  st.ID,
		ClassID:    classID,
		Date:       attendance.DayOf(date),
		Status:     attendance.StatusPresent,
		Note:       sql.NullString{String: note, Valid: note != ""},
		RecordedBy: actor.UserID,
	}
	if err := s.save(ctx, rec); err != nil {
		outcome.Err = err
		return &outcome, err
	}
	outcome.Marked = true
	return &outcome, nil
}

func (s *AttendanceService) checkSingle(ctx context.Context, actor *Actor, classID, studentID uuid.UUID) (*class.Class, *student.Student, error) {
	if !actor.valid() {
		return nil, nil, precondition(ErrNoActor)
	}
	cls, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, nil, err
	}
	st, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, student.ErrNotFound) {
			return nil, nil, precondition(ErrStudentNotFound)
		}
		return nil, nil, storageError("get student", err)
	}
	if st.ClassID != classID {
		return nil, nil, precondition(ErrStudentNotInClass)
	}
	return cls, st, nil
}

func (s *AttendanceService) loadClass(ctx context.Context, classID uuid.UUID) (*class.Class, error) {
	cls, err := s.classRepo.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, class.ErrNotFound) {
			return nil, precondition(ErrClassNotFound)
		}
		return nil, storageError("get class", err)
	}
	return cls, nil
}

// markAbsent runs level -> message -> write -> SMS for one student.
func (s *AttendanceService) markAbsent(ctx context.Context, actor *Actor, cls *class.Class, st *student.Student, day time.Time) StudentOutcome {
	logCtx := s.logger.WithFields(logrus.Fields{
		"class_id":   cls.ID,
		"student_id": st.ID,
	})

	outcome := StudentOutcome{StudentID: st.ID, Name: st.Name}
	outcome.Level = s.levels.ResolveLevel(st)
	outcome.Message = s.messages.ResolveMessage(ctx, preset.TypeLessonAbsent, outcome.Level, st.IsAdult, map[string]string{
		PlaceholderStudentName: st.Name,
		PlaceholderClassName:   cls.Name,
	})

	rec := &attendance.Record{
		StudentID:  st.ID,
		ClassID:    cls.ID,
		Date:       day,
		Status:     attendance.StatusAbsent,
		Note:       sql.NullString{String: outcome.Message, Valid: outcome.Message != ""},
		RecordedBy: actor.UserID,
	}
	if err := s.save(ctx, rec); err != nil {
		logCtx.WithError(err).Error("Failed to mark student absent")
		outcome.Err = err
		return outcome
	}
	outcome.Marked = true

	if outcome.Message == "" {
		return outcome
	}
	if len(st.NotificationPhones) == 0 {
		logCtx.Warn("Student has no notification phone numbers, skipping SMS")
		return outcome
	}

	outcome.Dispatch = s.dispatcher.SendSMS(ctx, st.NotificationPhones, outcome.Message)
	for _, rerr := range outcome.Dispatch.Errors {
		logCtx.WithError(rerr.Err).WithField("recipient", rerr.Recipient).Warn("Absence SMS not delivered")
	}
	logCtx.WithFields(logrus.Fields{
		"level": outcome.Level,
		"sent":  outcome.Dispatch.Sent,
	}).Info("Student marked absent")
	return outcome
}

func (s *AttendanceService) save(ctx context.Context, rec *attendance.Record) error {
	if err := s.validate.StructCtx(ctx, rec); err != nil {
		return precondition(fmt.Errorf("invalid attendance record: %w", err))
	}
	if err := s.attendanceRepo.Upsert(ctx, rec); err != nil {
		return storageError("upsert attendance", err)
	}
	return nil
}
