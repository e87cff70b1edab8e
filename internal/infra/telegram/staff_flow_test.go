package telegram

import (
	"context"
	"io"
	"testing"
	"time"

	"hifz_attendance_notifier/internal/app"
	"hifz_attendance_notifier/internal/domain/student"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

// fakeContext records what a handler sends back. Methods the handlers never call stay nil.
type fakeContext struct {
	telebot.Context
	sender    *telebot.User
	args      []string
	callback  *telebot.Callback
	sent      []interface{}
	sentOpts  [][]interface{}
	responded []*telebot.CallbackResponse
	edited    []interface{}
}

func (c *fakeContext) Sender() *telebot.User { return c.sender }

func (c *fakeContext) Args() []string { return c.args }

func (c *fakeContext) Callback() *telebot.Callback { return c.callback }

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	c.sent = append(c.sent, what)
	c.sentOpts = append(c.sentOpts, opts)
	return nil
}

func (c *fakeContext) Respond(resp ...*telebot.CallbackResponse) error {
	c.responded = append(c.responded, resp...)
	return nil
}

func (c *fakeContext) Edit(what interface{}, opts ...interface{}) error {
	c.edited = append(c.edited, what)
	return nil
}

type sweepRequest struct {
	actor   *app.Actor
	classID uuid.UUID
	date    time.Time
}

// fakeActions serves a fixed roster and records every write.
type fakeActions struct {
	pending   []*student.Student
	summary   *app.BatchSummary
	rosterFor []uuid.UUID
	sweeps    []sweepRequest
	absences  int
	presences int
}

func (f *fakeActions) Roster(ctx context.Context, classID uuid.UUID, date time.Time) ([]*student.Student, error) {
	f.rosterFor = append(f.rosterFor, classID)
	return f.pending, nil
}

func (f *fakeActions) MarkAbsent(ctx context.Context, actor *app.Actor, classID, studentID uuid.UUID, date time.Time) (*app.StudentOutcome, error) {
	f.absences++
	return &app.StudentOutcome{StudentID: studentID, Name: "Amina", Level: 1, Marked: true}, nil
}

func (f *fakeActions) MarkPresent(ctx context.Context, actor *app.Actor, classID, studentID uuid.UUID, date time.Time, note string) (*app.StudentOutcome, error) {
	f.presences++
	return &app.StudentOutcome{StudentID: studentID, Name: "Amina", Marked: true}, nil
}

func (f *fakeActions) MarkAllAbsent(ctx context.Context, actor *app.Actor, classID uuid.UUID, date time.Time) (*app.BatchSummary, error) {
	f.sweeps = append(f.sweeps, sweepRequest{actor: actor, classID: classID, date: date})
	if f.summary != nil {
		return f.summary, nil
	}
	return &app.BatchSummary{}, nil
}

const staffTelegramID int64 = 7001

func newTestHandlers(actions *fakeActions) (*StaffHandlers, uuid.UUID) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	staffID := uuid.New()
	h := NewStaffHandlers(actions, map[int64]uuid.UUID{staffTelegramID: staffID}, time.UTC, logrus.NewEntry(l))
	h.nowFunc = func() time.Time { return time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC) }
	return h, staffID
}

func staffSender() *telebot.User {
	return &telebot.User{ID: staffTelegramID, FirstName: "Ustadh", LastName: "Yusuf"}
}

func TestHandleAbsentAll_AsksForConfirmation(t *testing.T) {
	classID := uuid.New()
	actions := &fakeActions{pending: []*student.Student{
		{ID: uuid.New(), Name: "Amina"},
		{ID: uuid.New(), Name: "Bilal"},
	}}
	h, _ := newTestHandlers(actions)
	c := &fakeContext{sender: staffSender(), args: []string{classID.String()}}

	require.NoError(t, h.handleAbsentAll(c))

	assert.Equal(t, []uuid.UUID{classID}, actions.rosterFor)
	assert.Empty(t, actions.sweeps)
	assert.Zero(t, actions.absences)

	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "Mark 2 students absent and notify their families?")
	assert.Contains(t, c.sent[0], "Amina")

	require.Len(t, c.sentOpts[0], 1)
	markup, ok := c.sentOpts[0][0].(*telebot.ReplyMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, uniqueSweepConfirm, markup.InlineKeyboard[0][0].Unique)
	assert.Equal(t, classID.String(), markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, uniqueSweepCancel, markup.InlineKeyboard[0][1].Unique)
	assert.Equal(t, classID.String(), markup.InlineKeyboard[0][1].Data)
}

func TestHandleAbsentAll_NothingPending(t *testing.T) {
	actions := &fakeActions{}
	h, _ := newTestHandlers(actions)
	c := &fakeContext{sender: staffSender(), args: []string{uuid.New().String()}}

	require.NoError(t, h.handleAbsentAll(c))

	assert.Equal(t, []interface{}{"Everyone in this class is already marked for today."}, c.sent)
	assert.Empty(t, actions.sweeps)
}

func TestHandleSweepCancel_MarksNobody(t *testing.T) {
	actions := &fakeActions{}
	h, _ := newTestHandlers(actions)
	c := &fakeContext{sender: staffSender(), callback: &telebot.Callback{Data: uuid.New().String()}}

	require.NoError(t, h.handleSweepCancel(c))

	assert.Empty(t, actions.sweeps)
	assert.Zero(t, actions.absences)
	require.Len(t, c.responded, 1)
	assert.Equal(t, "Cancelled.", c.responded[0].Text)
	assert.Equal(t, []interface{}{"Cancelled. Nobody was marked."}, c.edited)
}

func TestHandleSweepConfirm_SweepsTheClassFromTheButton(t *testing.T) {
	classID := uuid.New()
	summary := &app.BatchSummary{ClassName: "Hifz A", Marked: 2, NotificationsSent: 2}
	actions := &fakeActions{summary: summary}
	h, staffID := newTestHandlers(actions)
	c := &fakeContext{sender: staffSender(), callback: &telebot.Callback{Data: classID.String()}}

	require.NoError(t, h.handleSweepConfirm(c))

	require.Len(t, actions.sweeps, 1)
	sweep := actions.sweeps[0]
	assert.Equal(t, classID, sweep.classID)
	assert.Equal(t, staffID, sweep.actor.UserID)
	assert.Equal(t, "Ustadh Yusuf", sweep.actor.Name)
	assert.Equal(t, 10, sweep.date.Day())

	require.Len(t, c.responded, 1)
	assert.Equal(t, "Processing...", c.responded[0].Text)
	assert.Equal(t, []interface{}{"Marking students absent, please wait...", summary.Text()}, c.edited)
}

func TestStaffHandlers_RefuseUnknownSenders(t *testing.T) {
	classID := uuid.New()
	stranger := &telebot.User{ID: 9999, FirstName: "Visitor"}

	commands := []struct {
		name   string
		handle func(*StaffHandlers, telebot.Context) error
		args   []string
	}{
		{name: "roster", handle: (*StaffHandlers).handleRoster, args: []string{classID.String()}},
		{name: "absent", handle: (*StaffHandlers).handleAbsent, args: []string{classID.String(), uuid.New().String()}},
		{name: "present", handle: (*StaffHandlers).handlePresent, args: []string{classID.String(), uuid.New().String()}},
		{name: "absent_all", handle: (*StaffHandlers).handleAbsentAll, args: []string{classID.String()}},
	}
	for _, cmd := range commands {
		for _, sender := range []*telebot.User{stranger, nil} {
			name := cmd.name + "/stranger"
			if sender == nil {
				name = cmd.name + "/no sender"
			}
			t.Run(name, func(t *testing.T) {
				actions := &fakeActions{pending: []*student.Student{{ID: uuid.New(), Name: "Amina"}}}
				h, _ := newTestHandlers(actions)
				c := &fakeContext{sender: sender, args: cmd.args}

				require.NotPanics(t, func() { require.NoError(t, cmd.handle(h, c)) })

				assert.Equal(t, []interface{}{msgUnauthorized}, c.sent)
				assert.Empty(t, actions.rosterFor)
				assert.Empty(t, actions.sweeps)
				assert.Zero(t, actions.absences)
				assert.Zero(t, actions.presences)
			})
		}
	}
}

func TestHandleSweepConfirm_RefusesUnknownSender(t *testing.T) {
	for _, sender := range []*telebot.User{{ID: 9999}, nil} {
		actions := &fakeActions{}
		h, _ := newTestHandlers(actions)
		c := &fakeContext{sender: sender, callback: &telebot.Callback{Data: uuid.New().String()}}

		require.NotPanics(t, func() { require.NoError(t, h.handleSweepConfirm(c)) })

		assert.Empty(t, actions.sweeps)
		assert.Empty(t, c.edited)
		require.Len(t, c.responded, 1)
		assert.Equal(t, msgUnauthorized, c.responded[0].Text)
	}
}
