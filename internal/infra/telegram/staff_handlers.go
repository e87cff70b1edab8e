// internal/infra/telegram/staff_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hifz_attendance_notifier/internal/app"
	"hifz_attendance_notifier/internal/domain/student"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	uniqueSweepConfirm = "sweep_ok"
	uniqueSweepCancel  = "sweep_no"
	handlerTimeout     = 30 * time.Second
)

// AttendanceActions is what the staff commands need from the attendance service.
type AttendanceActions interface {
	Roster(ctx context.Context, classID uuid.UUID, date time.Time) ([]*student.Student, error)
	MarkAbsent(ctx context.Context, actor *app.Actor, classID, studentID uuid.UUID, date time.Time) (*app.StudentOutcome, error)
	MarkPresent(ctx context.Context, actor *app.Actor, classID, studentID uuid.UUID, date time.Time, note string) (*app.StudentOutcome, error)
	MarkAllAbsent(ctx context.Context, actor *app.Actor, classID uuid.UUID, date time.Time) (*app.BatchSummary, error)
}

// StaffHandlers serves attendance commands to configured staff members.
type StaffHandlers struct {
	service  AttendanceActions
	staffIDs map[int64]uuid.UUID
	location *time.Location
	logger   *logrus.Entry
	nowFunc  func() time.Time
}

func NewStaffHandlers(service AttendanceActions, staffIDs map[int64]uuid.UUID, location *time.Location, baseLogger *logrus.Entry) *StaffHandlers {
	if location == nil {
		location = time.UTC
	}
	return &StaffHandlers{
		service:  service,
		staffIDs: staffIDs,
		location: location,
		logger:   baseLogger.WithField("handler_group", "staff"),
		nowFunc:  time.Now,
	}
}

// Register wires the staff commands and the sweep confirmation buttons.
func (h *StaffHandlers) Register(b *telebot.Bot) {
	b.Handle("/roster", h.handleRoster)
	b.Handle("/absent", h.handleAbsent)
	b.Handle("/present", h.handlePresent)
	b.Handle("/absent_all", h.handleAbsentAll)

	markup := &telebot.ReplyMarkup{}
	confirm := markup.Data("Yes, mark all absent", uniqueSweepConfirm)
	cancel := markup.Data("Cancel", uniqueSweepCancel)
	b.Handle(&confirm, h.handleSweepConfirm)
	b.Handle(&cancel, h.handleSweepCancel)
}

// actorFor maps the Telegram sender to a staff identity.
func (h *StaffHandlers) actorFor(c telebot.Context) (*app.Actor, bool) {
	sender := c.Sender()
	if sender == nil {
		return nil, false
	}
	staffID, ok := h.staffIDs[sender.ID]
	if !ok {
		return nil, false
	}
	name := strings.TrimSpace(sender.FirstName + " " + sender.LastName)
	return &app.Actor{UserID: staffID, Name: name}, true
}

// refused logs a rejected command. Channel posts arrive without a sender.
func (h *StaffHandlers) refused(c telebot.Context, command string) {
	logCtx := h.logger.WithField("command", command)
	if sender := c.Sender(); sender != nil {
		logCtx = logCtx.WithField("sender_id", sender.ID)
	}
	logCtx.Warn("Unauthorized access attempt")
}

func (h *StaffHandlers) today() time.Time {
	return h.nowFunc().In(h.location)
}

func (h *StaffHandlers) handleRoster(c telebot.Context) error {
	actor, ok := h.actorFor(c)
	if !ok {
		h.refused(c, "/roster")
		return c.Send(msgUnauthorized)
	}
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/roster", "staff_id": actor.UserID})

	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /roster <class_id>")
	}
	classID, err := uuid.Parse(args[0])
	if err != nil {
		return c.Send("Error: class_id must be a UUID.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	students, err := h.service.Roster(ctx, classID, h.today())
	if err != nil {
		logCtx.WithError(err).Error("Failed to load roster")
		return c.Send(describeError(err))
	}
	return c.Send(FormatRoster(students))
}

func (h *StaffHandlers) handleAbsent(c telebot.Context) error {
	actor, ok := h.actorFor(c)
	if !ok {
		h.refused(c, "/absent")
		return c.Send(msgUnauthorized)
	}
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/absent", "staff_id": actor.UserID})
	classID, studentID, err := parseClassStudentArgs(c.Args())
	if err != nil {
		return c.Send(fmt.Sprintf("Error: %v.\nUsage: /absent <class_id> <student_id>", err))
	}
	logCtx = logCtx.WithFields(logrus.Fields{"class_id": classID, "student_id": studentID})

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	outcome, err := h.service.MarkAbsent(ctx, actor, classID, studentID, h.today())
	if err != nil {
		logCtx.WithError(err).Error("Failed to mark student absent")
		return c.Send(describeError(err))
	}
	logCtx.WithField("sent", outcome.Dispatch.Sent).Info("Student marked absent")
	return c.Send(FormatOutcome(outcome))
}

func (h *StaffHandlers) handlePresent(c telebot.Context) error {
	actor, ok := h.actorFor(c)
	if !ok {
		h.refused(c, "/present")
		return c.Send(msgUnauthorized)
	}
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/present", "staff_id": actor.UserID})
	args := c.Args()
	if len(args) < 2 {
		return c.Send("Usage: /present <class_id> <student_id> [note]")
	}
	classID, studentID, err := parseClassStudentArgs(args[:2])
	if err != nil {
		return c.Send(fmt.Sprintf("Error: %v.\nUsage: /present <class_id> <student_id> [note]", err))
	}
	note := strings.Join(args[2:], " ")

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	outcome, err := h.service.MarkPresent(ctx, actor, classID, studentID, h.today(), note)
	if err != nil {
		logCtx.WithError(err).Error("Failed to mark student present")
		return c.Send(describeError(err))
	}
	return c.Send(fmt.Sprintf("%s marked present.", outcome.Name))
}

// handleAbsentAll shows the roster and asks for confirmation before sweeping.
func (h *StaffHandlers) handleAbsentAll(c telebot.Context) error {
	actor, ok := h.actorFor(c)
	if !ok {
		h.refused(c, "/absent_all")
		return c.Send(msgUnauthorized)
	}
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/absent_all", "staff_id": actor.UserID})
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /absent_all <class_id>")
	}
	classID, err := uuid.Parse(args[0])
	if err != nil {
		return c.Send("Error: class_id must be a UUID.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	pending, err := h.service.Roster(ctx, classID, h.today())
	if err != nil {
		logCtx.WithError(err).Error("Failed to load roster for sweep")
		return c.Send(describeError(err))
	}
	if len(pending) == 0 {
		return c.Send("Everyone in this class is already marked for today.")
	}

	markup := &telebot.ReplyMarkup{}
	confirm := markup.Data("Yes, mark all absent", uniqueSweepConfirm, classID.String())
	cancelBtn := markup.Data("Cancel", uniqueSweepCancel, classID.String())
	markup.Inline(markup.Row(confirm, cancelBtn))

	text := fmt.Sprintf("Mark %d students absent and notify their families?\n%s", len(pending), FormatRoster(pending))
	return c.Send(text, markup)
}

func (h *StaffHandlers) handleSweepConfirm(c telebot.Context) error {
	actor, ok := h.actorFor(c)
	if !ok {
		h.refused(c, uniqueSweepConfirm)
		return c.Respond(&telebot.CallbackResponse{Text: msgUnauthorized})
	}
	logCtx := h.logger.WithFields(logrus.Fields{"callback": uniqueSweepConfirm, "staff_id": actor.UserID})
	classID, err := uuid.Parse(c.Callback().Data)
	if err != nil {
		c.Bot().OnError(fmt.Errorf("invalid class id in sweep callback %q: %w", c.Callback().Data, err), c)
		return c.Respond(&telebot.CallbackResponse{Text: "Invalid request."})
	}
	logCtx = logCtx.WithField("class_id", classID)

	if err := c.Respond(&telebot.CallbackResponse{Text: "Processing..."}); err != nil {
		logCtx.WithError(err).Warn("Failed to acknowledge callback")
	}
	_ = c.Edit("Marking students absent, please wait...")

	summary, err := h.service.MarkAllAbsent(context.Background(), actor, classID, h.today())
	if err != nil {
		logCtx.WithError(err).Error("Absence sweep failed")
		return c.Edit(describeError(err))
	}
	logCtx.WithFields(logrus.Fields{
		"marked":             summary.Marked,
		"notifications_sent": summary.NotificationsSent,
	}).Info("Absence sweep completed from Telegram")
	return c.Edit(summary.Text())
}

func (h *StaffHandlers) handleSweepCancel(c telebot.Context) error {
	if err := c.Respond(&telebot.CallbackResponse{Text: "Cancelled."}); err != nil {
		h.logger.WithError(err).Warn("Failed to acknowledge cancel callback")
	}
	return c.Edit("Cancelled. Nobody was marked.")
}

func parseClassStudentArgs(args []string) (uuid.UUID, uuid.UUID, error) {
	if len(args) != 2 {
		return uuid.Nil, uuid.Nil, errors.New("expected <class_id> <student_id>")
	}
	classID, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("class_id must be a UUID")
	}
	studentID, err := uuid.Parse(args[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("student_id must be a UUID")
	}
	return classID, studentID, nil
}

// FormatRoster lists pending students one per line.
func FormatRoster(students []*student.Student) string {
	if len(students) == 0 {
		return "No students left to mark today."
	}
	var b strings.Builder
	for i, st := range students {
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, st.Name, st.ID)
		if i < len(students)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// FormatOutcome tells staff whether the attendance and the SMS went through.
func FormatOutcome(o *app.StudentOutcome) string {
	switch {
	case !o.Marked:
		return fmt.Sprintf("Attendance failed for %s.", o.Name)
	case o.NotificationFailed():
		reasons := make([]string, 0, len(o.Dispatch.Errors))
		for _, rerr := range o.Dispatch.Errors {
			reasons = append(reasons, rerr.Reason())
		}
		return fmt.Sprintf("%s marked absent, but SMS failed (%s).", o.Name, strings.Join(reasons, "; "))
	case o.Notified():
		return fmt.Sprintf("%s marked absent (level %d), family notified.", o.Name, o.Level)
	default:
		return fmt.Sprintf("%s marked absent (level %d), no SMS sent.", o.Name, o.Level)
	}
}

const msgUnauthorized = "Error: you are not allowed to use this command."

func describeError(err error) string {
	switch {
	case errors.Is(err, app.ErrClassNotFound):
		return "Error: class not found."
	case errors.Is(err, app.ErrStudentNotFound):
		return "Error: student not found."
	case errors.Is(err, app.ErrStudentNotInClass):
		return "Error: the student is not in this class."
	case errors.Is(err, app.ErrNoActor):
		return msgUnauthorized
	case app.IsStorage(err):
		return "Attendance failed: could not save to the database. Please try again."
	default:
		return fmt.Sprintf("An error occurred: %v", err)
	}
}
