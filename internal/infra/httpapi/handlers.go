package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hifz_attendance_notifier/internal/app"
	"hifz_attendance_notifier/internal/domain/attendance"
	"hifz_attendance_notifier/internal/domain/preset"
	"hifz_attendance_notifier/internal/domain/sms"
	"hifz_attendance_notifier/internal/domain/student"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// AttendanceActions is what the HTTP API needs from the attendance service.
type AttendanceActions interface {
	Roster(ctx context.Context, classID uuid.UUID, date time.Time) ([]*student.Student, error)
	MarkAbsent(ctx context.Context, actor *app.Actor, classID, studentID uuid.UUID, date time.Time) (*app.StudentOutcome, error)
	MarkPresent(ctx context.Context, actor *app.Actor, classID, studentID uuid.UUID, date time.Time, note string) (*app.StudentOutcome, error)
	MarkAllAbsent(ctx context.Context, actor *app.Actor, classID uuid.UUID, date time.Time) (*app.BatchSummary, error)
}

// NoticeSender is what the HTTP API needs from the lesson notice service.
type NoticeSender interface {
	Notify(ctx context.Context, actor *app.Actor, notice app.LessonNotice) (*app.NoticeResult, error)
}

// PresetCacheInvalidator drops cached preset lookups. Optional.
type PresetCacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type handlers struct {
	attendance AttendanceActions
	notices    NoticeSender
	presets    PresetCacheInvalidator
	levels     app.LevelResolver
	location   *time.Location
	logger     *logrus.Entry
	nowFunc    func() time.Time
}

// Request and response bodies.
type (
	dateRequest struct {
		Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	}

	attendanceRequest struct {
		Status string `json:"status" validate:"required,oneof=present absent"`
		Note   string `json:"note" validate:"max=500"`
		Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	}

	noticeRequest struct {
		Type   string `json:"type" validate:"required,oneof=lesson_fail lesson_repeat lesson_pass homework_assigned payment_failed"`
		Surah  string `json:"surah" validate:"max=100"`
		Verses string `json:"verses" validate:"max=100"`
	}

	studentResponse struct {
		ID                  uuid.UUID `json:"id"`
		Name                string    `json:"name"`
		AbsenceLevel        int       `json:"absence_level"`
		ConsecutiveAbsences int       `json:"consecutive_absences"`
		IsAdult             bool      `json:"is_adult"`
	}

	recipientErrorResponse struct {
		Recipient string `json:"recipient"`
		Reason    string `json:"reason"`
	}

	outcomeResponse struct {
		StudentID         uuid.UUID                `json:"student_id"`
		Name              string                   `json:"name"`
		Level             int                      `json:"level"`
		Message           string                   `json:"message,omitempty"`
		Marked            bool                     `json:"marked"`
		NotificationsSent int                      `json:"notifications_sent"`
		SMSErrors         []recipientErrorResponse `json:"sms_errors,omitempty"`
	}

	summaryResponse struct {
		Marked               int               `json:"marked"`
		NotificationsSent    int               `json:"notifications_sent"`
		Failed               []string          `json:"failed"`
		NotificationFailures []string          `json:"notification_failures"`
		Outcomes             []outcomeResponse `json:"outcomes"`
		Summary              string            `json:"summary"`
	}

	noticeResponse struct {
		Message   string                   `json:"message"`
		Sent      int                      `json:"sent"`
		SMSErrors []recipientErrorResponse `json:"sms_errors,omitempty"`
	}
)

func (h *handlers) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) roster(c echo.Context) error {
	classID, err := uuidParam(c, "classID")
	if err != nil {
		return err
	}
	date, err := h.parseDate(c.QueryParam("date"))
	if err != nil {
		return err
	}

	students, err := h.attendance.Roster(c.Request().Context(), classID, date)
	if err != nil {
		return h.serviceError(c, err)
	}

	out := make([]studentResponse, 0, len(students))
	for _, st := range students {
		out = append(out, studentResponse{
			ID:                  st.ID,
			Name:                st.Name,
			AbsenceLevel:        h.levels.ResolveLevel(st),
			ConsecutiveAbsences: st.ConsecutiveAbsences,
			IsAdult:             st.IsAdult,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) markAllAbsent(c echo.Context) error {
	classID, err := uuidParam(c, "classID")
	if err != nil {
		return err
	}
	var req dateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		return err
	}

	summary, err := h.attendance.MarkAllAbsent(c.Request().Context(), actorFrom(c), classID, date)
	if err != nil {
		return h.serviceError(c, err)
	}

	resp := summaryResponse{
		Marked:               summary.Marked,
		NotificationsSent:    summary.NotificationsSent,
		Failed:               nonNil(summary.Failed),
		NotificationFailures: nonNil(summary.NotificationFailures),
		Outcomes:             make([]outcomeResponse, 0, len(summary.Outcomes)),
		Summary:              summary.Text(),
	}
	for i := range summary.Outcomes {
		resp.Outcomes = append(resp.Outcomes, toOutcomeResponse(&summary.Outcomes[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handlers) markStudent(c echo.Context) error {
	classID, err := uuidParam(c, "classID")
	if err != nil {
		return err
	}
	studentID, err := uuidParam(c, "studentID")
	if err != nil {
		return err
	}
	var req attendanceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var outcome *app.StudentOutcome
	if attendance.Status(req.Status) == attendance.StatusAbsent {
		outcome, err = h.attendance.MarkAbsent(ctx, actorFrom(c), classID, studentID, date)
	} else {
		outcome, err = h.attendance.MarkPresent(ctx, actorFrom(c), classID, studentID, date, req.Note)
	}
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toOutcomeResponse(outcome))
}

func (h *handlers) sendNotice(c echo.Context) error {
	studentID, err := uuidParam(c, "studentID")
	if err != nil {
		return err
	}
	var req noticeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.notices.Notify(c.Request().Context(), actorFrom(c), app.LessonNotice{
		StudentID: studentID,
		Type:      preset.Type(req.Type),
		Surah:     req.Surah,
		Verses:    req.Verses,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, noticeResponse{
		Message:   result.Message,
		Sent:      result.Dispatch.Sent,
		SMSErrors: toRecipientErrors(result.Dispatch.Errors),
	})
}

func (h *handlers) invalidatePresetCache(c echo.Context) error {
	if h.presets == nil {
		return c.NoContent(http.StatusNoContent)
	}
	if err := h.presets.Invalidate(c.Request().Context()); err != nil {
		h.logger.WithError(err).Error("Failed to invalidate preset cache")
		return echo.NewHTTPError(http.StatusBadGateway, "could not clear preset cache")
	}
	return c.NoContent(http.StatusNoContent)
}

// parseDate reads YYYY-MM-DD in the school's time zone; empty means today.
func (h *handlers) parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return h.nowFunc().In(h.location), nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, h.location)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return d, nil
}

// serviceError maps the workflow error taxonomy to HTTP statuses.
func (h *handlers) serviceError(c echo.Context, err error) error {
	logCtx := h.logger.WithError(err).WithField("path", c.Path())
	switch {
	case errors.Is(err, app.ErrNoActor):
		return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated user")
	case errors.Is(err, app.ErrClassNotFound), errors.Is(err, app.ErrStudentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, preconditionReason(err))
	case app.IsPrecondition(err):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, preconditionReason(err))
	case app.IsStorage(err):
		logCtx.Error("Attendance storage failure")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "attendance failed: storage unavailable")
	default:
		logCtx.Error("Unexpected service error")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func preconditionReason(err error) string {
	var pe *app.PreconditionError
	if errors.As(err, &pe) && pe.Err != nil {
		return pe.Err.Error()
	}
	return err.Error()
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be a UUID")
	}
	return id, nil
}

func toOutcomeResponse(o *app.StudentOutcome) outcomeResponse {
	return outcomeResponse{
		StudentID:         o.StudentID,
		Name:              o.Name,
		Level:             o.Level,
		Message:           o.Message,
		Marked:            o.Marked,
		NotificationsSent: o.Dispatch.Sent,
		SMSErrors:         toRecipientErrors(o.Dispatch.Errors),
	}
}

func toRecipientErrors(errs []app.RecipientError) []recipientErrorResponse {
	if len(errs) == 0 {
		return nil
	}
	out := make([]recipientErrorResponse, 0, len(errs))
	for _, e := range errs {
		reason := e.Reason()
		if errors.Is(e.Err, sms.ErrProviderRejected) || errors.Is(e.Err, sms.ErrProviderError) {
			reason = e.Err.Error()
		}
		out = append(out, recipientErrorResponse{Recipient: e.Recipient, Reason: reason})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
