package app

import (
	"context"
	"errors"

	"hifz_attendance_notifier/internal/domain/class"
	"hifz_attendance_notifier/internal/domain/preset"
	"hifz_attendance_notifier/internal/domain/student"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LessonNotice describes a recitation or homework event to tell a family about.
type LessonNotice struct {
	StudentID uuid.UUID
	Type      preset.Type
	Surah     string
	Verses    string
}

// NoticeResult is what happened to one lesson notice.
type NoticeResult struct {
	Message  string
	Dispatch DispatchResult
}

// LessonNoticeService sends the non-attendance notifications (lesson results,
// homework, failed payments) through the same template and SMS pipeline.
type LessonNoticeService struct {
	studentRepo student.Repository
	classRepo   class.Repository
	levels      LevelResolver
	messages    *MessageResolver
	dispatcher  SMSDispatcher
	logger      *logrus.Entry
}

func NewLessonNoticeService(
	sr student.Repository,
	cr class.Repository,
	levels LevelResolver,
	messages *MessageResolver,
	dispatcher SMSDispatcher,
	logger *logrus.Entry,
) *LessonNoticeService {
	if levels == nil {
		levels = StoredLevel{}
	}
	return &LessonNoticeService{
		studentRepo: sr,
		classRepo:   cr,
		levels:      levels,
		messages:    messages,
		dispatcher:  dispatcher,
		logger:      logger.WithField("component", "lesson_notice_service"),
	}
}

func (s *LessonNoticeService) Notify(ctx context.Context, actor *Actor, notice LessonNotice) (*NoticeResult, error) {
	if !actor.valid() {
		return nil, precondition(ErrNoActor)
	}
	if !notice.Type.Valid() || notice.Type == preset.TypeLessonAbsent {
		return nil, precondition(ErrUnknownNoticeType)
	}

	st, err := s.studentRepo.GetByID(ctx, notice.StudentID)
	if err != nil {
		if errors.Is(err, student.ErrNotFound) {
			return nil, precondition(ErrStudentNotFound)
		}
		return nil, storageError("get student", err)
	}

	vars := map[string]string{PlaceholderStudentName: st.Name}
	if notice.Surah != "" {
		vars[PlaceholderSurah] = notice.Surah
	}
	if notice.Verses != "" {
		vars[PlaceholderVerses] = notice.Verses
	}
	// The class name is optional decoration; a missing class does not block the notice.
	if cls, err := s.classRepo.GetByID(ctx, st.ClassID); err == nil {
		vars[PlaceholderClassName] = cls.Name
	} else {
		s.logger.WithError(err).WithField("class_id", st.ClassID).Debug("Class lookup failed for lesson notice")
	}

	level := s.levels.ResolveLevel(st)
	result := &NoticeResult{
		Message: s.messages.ResolveMessage(ctx, notice.Type, level, st.IsAdult, vars),
	}
	if result.Message != "" && len(st.NotificationPhones) > 0 {
		result.Dispatch = s.dispatcher.SendSMS(ctx, st.NotificationPhones, result.Message)
	}

	s.logger.WithFields(logrus.Fields{
		"student_id": st.ID,
		"type":       notice.Type,
		"actor_id":   actor.UserID,
		"sent":       result.Dispatch.Sent,
		"failed":     len(result.Dispatch.Errors),
	}).Info("Lesson notice processed")
	return result, nil
}
