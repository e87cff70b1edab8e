package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"hifz_attendance_notifier/internal/domain/attendance"
	"hifz_attendance_notifier/internal/domain/class"
	"hifz_attendance_notifier/internal/domain/preset"
	"hifz_attendance_notifier/internal/domain/sms"
	"hifz_attendance_notifier/internal/domain/student"
	"hifz_attendance_notifier/internal/infra/memstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)

type attendanceFixture struct {
	store   *memstore.Store
	sender  *fakeSender
	service *AttendanceService
	actor   *Actor
	class   class.Class
}

func setupAttendance(t *testing.T, wrap func(attendance.Repository) attendance.Repository) *attendanceFixture {
	t.Helper()
	store := memstore.New()
	sender := &fakeSender{failures: map[string]error{}}

	var repo attendance.Repository = store
	if wrap != nil {
		repo = wrap(store)
	}
	log := testLogger()
	dispatcher := NewDispatcher(sender, "+15559990000", &countingLimiter{}, log)
	service := NewAttendanceService(repo, store, store.Classes(), StoredLevel{}, NewMessageResolver(store, log), dispatcher, log)

	return &attendanceFixture{
		store:   store,
		sender:  sender,
		service: service,
		actor:   &Actor{UserID: uuid.New(), Name: "Ustadh Kareem"},
		class:   store.AddClass(class.Class{Name: "Hifz A"}),
	}
}

func (f *attendanceFixture) addStudent(name string, phones ...string) student.Student {
	return f.store.AddStudent(student.Student{
		ClassID:            f.class.ID,
		Name:               name,
		NotificationPhones: phones,
		IsActive:           true,
	})
}

func (f *attendanceFixture) record(t *testing.T, st student.Student) *attendance.Record {
	t.Helper()
	rec, err := f.store.Get(context.Background(), st.ID, f.class.ID, testDay)
	require.NoError(t, err)
	return rec
}

func TestAttendanceService_MarkAllAbsent(t *testing.T) {
	f := setupAttendance(t, nil)
	amina := f.addStudent("Amina", "(555) 111-2222")
	bilal := f.addStudent("Bilal", "555 333 4444", "+44 20 7946 0958")
	f.addStudent("Zaid")
	f.store.AddStudent(student.Student{ClassID: f.class.ID, Name: "Inactive", IsActive: false})
	f.store.AddStudent(student.Student{ClassID: uuid.New(), Name: "Other class", IsActive: true, NotificationPhones: []string{"5559998888"}})

	summary, err := f.service.MarkAllAbsent(context.Background(), f.actor, f.class.ID, testDay)
	require.NoError(t, err)

	assert.Equal(t, "Hifz A", summary.ClassName)
	assert.Equal(t, 3, summary.Marked)
	assert.Equal(t, 2, summary.NotificationsSent)
	assert.Empty(t, summary.Failed)
	assert.Empty(t, summary.NotificationFailures)
	require.Len(t, summary.Outcomes, 3)
	assert.Equal(t, []string{"Amina", "Bilal", "Zaid"}, []string{summary.Outcomes[0].Name, summary.Outcomes[1].Name, summary.Outcomes[2].Name})
	assert.Equal(t, "Hifz A: marked 3 absent, 2 notified", summary.Text())

	assert.Equal(t, 3, f.store.RecordCount())
	rec := f.record(t, amina)
	assert.Equal(t, attendance.StatusAbsent, rec.Status)
	assert.Equal(t, f.actor.UserID, rec.RecordedBy)
	assert.Equal(t, attendance.DayOf(testDay), rec.Date)
	assert.Equal(t, sql.NullString{
		String: "Assalamu alaikum. Amina was absent from Hifz A today. Please let the teacher know if everything is alright.",
		Valid:  true,
	}, rec.Note)
	assert.Equal(t, attendance.StatusAbsent, f.record(t, bilal).Status)

	assert.ElementsMatch(t, []string{"+15551112222", "+15553334444", "+442079460958"}, f.sender.sentTo())
}

func TestAttendanceService_MarkAllAbsent_SkipsAlreadyMarked(t *testing.T) {
	f := setupAttendance(t, nil)
	amina := f.addStudent("Amina", "5551112222")
	f.addStudent("Bilal", "5553334444")

	_, err := f.service.MarkPresent(context.Background(), f.actor, f.class.ID, amina.ID, testDay, "")
	require.NoError(t, err)

	summary, err := f.service.MarkAllAbsent(context.Background(), f.actor, f.class.ID, testDay)
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, "Bilal", summary.Outcomes[0].Name)
	assert.Equal(t, attendance.StatusPresent, f.record(t, amina).Status)
	assert.Equal(t, []string{"+15553334444"}, f.sender.sentTo())

	// a second sweep finds nobody left
	again, err := f.service.MarkAllAbsent(context.Background(), f.actor, f.class.ID, testDay)
	require.NoError(t, err)
	assert.Zero(t, again.Marked)
	assert.Empty(t, again.Outcomes)
	assert.Equal(t, "Hifz A: everyone is already marked for today.", again.Text())
	assert.Len(t, f.sender.calls, 1)
}

func TestAttendanceService_MarkAllAbsent_FailuresAreContained(t *testing.T) {
	f := setupAttendance(t, nil)
	amina := f.addStudent("Amina", "5551112222")
	bilal := f.addStudent("Bilal", "5553334444")
	f.addStudent("Chadia", "5555556666")
	f.addStudent("Dawud", "12")

	log := testLogger()
	f.service = NewAttendanceService(
		failingAttendance{Repository: f.store, failFor: bilal.ID},
		f.store, f.store.Classes(), StoredLevel{}, NewMessageResolver(f.store, log),
		NewDispatcher(f.sender, "+15559990000", &countingLimiter{}, log), log,
	)
	f.sender.failures["+15555556666"] = sms.ErrProviderRejected

	summary, err := f.service.MarkAllAbsent(context.Background(), f.actor, f.class.ID, testDay)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Marked)
	assert.Equal(t, 1, summary.NotificationsSent)
	assert.Equal(t, []string{"Bilal"}, summary.Failed)
	assert.Equal(t, []string{"Chadia", "Dawud"}, summary.NotificationFailures)
	assert.Equal(t, "Hifz A: marked 3 absent, 1 notified\nAttendance failed: Bilal\nSMS failed: Chadia, Dawud", summary.Text())

	// the failed write never triggers an SMS
	assert.NotContains(t, f.sender.sentTo(), "+15553334444")
	assert.Equal(t, []string{"+15551112222", "+15555556666"}, f.sender.sentTo())

	bilalOutcome := summary.Outcomes[1]
	assert.False(t, bilalOutcome.Marked)
	assert.True(t, IsStorage(bilalOutcome.Err))
	assert.ErrorIs(t, bilalOutcome.Err, errStorageDown)

	assert.Equal(t, 3, f.store.RecordCount())
	_, err = f.store.Get(context.Background(), bilal.ID, f.class.ID, testDay)
	assert.ErrorIs(t, err, attendance.ErrRecordNotFound)
	assert.Equal(t, attendance.StatusAbsent, f.record(t, amina).Status)
}

func TestAttendanceService_MarkAllAbsent_Preconditions(t *testing.T) {
	f := setupAttendance(t, nil)
	f.addStudent("Amina", "5551112222")

	tests := []struct {
		name    string
		actor   *Actor
		classID uuid.UUID
		wantErr error
	}{
		{name: "no actor", actor: nil, classID: f.class.ID, wantErr: ErrNoActor},
		{name: "actor without id", actor: &Actor{Name: "ghost"}, classID: f.class.ID, wantErr: ErrNoActor},
		{name: "unknown class", actor: f.actor, classID: uuid.New(), wantErr: ErrClassNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := f.service.MarkAllAbsent(context.Background(), tt.actor, tt.classID, testDay)
			require.Error(t, err)
			assert.Nil(t, summary)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsPrecondition(err))
		})
	}
	assert.Zero(t, f.store.RecordCount())
	assert.Empty(t, f.sender.calls)
}

func TestAttendanceService_MarkAllAbsent_RosterFailure(t *testing.T) {
	f := setupAttendance(t, func(r attendance.Repository) attendance.Repository {
		return brokenAttendance{Repository: r}
	})
	f.addStudent("Amina", "5551112222")

	summary, err := f.service.MarkAllAbsent(context.Background(), f.actor, f.class.ID, testDay)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, IsStorage(err))
	assert.Empty(t, f.sender.calls)
}

func TestAttendanceService_MarkAllAbsent_IgnoresCancellation(t *testing.T) {
	f := setupAttendance(t, nil)
	f.addStudent("Amina", "5551112222")
	f.addStudent("Bilal", "5553334444")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := f.service.MarkAllAbsent(ctx, f.actor, f.class.ID, testDay)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Marked)
}

func TestAttendanceService_UsesEscalationLevel(t *testing.T) {
	f := setupAttendance(t, nil)
	f.store.AddPreset(preset.Preset{Type: preset.TypeLessonAbsent, Level: 3, IsAdult: true, Message: "Final notice: {{student_name}} missed {{class_name}}."})
	f.store.AddPreset(preset.Preset{Type: preset.TypeLessonAbsent, Level: 2, IsAdult: false, Message: "Second notice for {{student_name}}."})

	adult := f.store.AddStudent(student.Student{
		ClassID:            f.class.ID,
		Name:               "Hamza",
		AbsenceLevel:       sql.NullInt32{Int32: 7, Valid: true},
		IsAdult:            true,
		NotificationPhones: []string{"5551112222"},
		IsActive:           true,
	})
	child := f.store.AddStudent(student.Student{
		ClassID:            f.class.ID,
		Name:               "Maryam",
		AbsenceLevel:       sql.NullInt32{Int32: 2, Valid: true},
		NotificationPhones: []string{"5553334444"},
		IsActive:           true,
	})

	out, err := f.service.MarkAbsent(context.Background(), f.actor, f.class.ID, adult.ID, testDay)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Level)
	assert.Equal(t, "Final notice: Hamza missed Hifz A.", out.Message)

	out, err = f.service.MarkAbsent(context.Background(), f.actor, f.class.ID, child.ID, testDay)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Level)
	assert.Equal(t, "Second notice for Maryam.", out.Message)
	assert.True(t, out.Notified())

	require.Len(t, f.sender.calls, 2)
	assert.Equal(t, "Final notice: Hamza missed Hifz A.", f.sender.calls[0].Body)
}

func TestAttendanceService_MarkAbsent(t *testing.T) {
	f := setupAttendance(t, nil)
	amina := f.addStudent("Amina")
	outsider := f.store.AddStudent(student.Student{ClassID: uuid.New(), Name: "Outsider", IsActive: true})

	t.Run("no phones still marks", func(t *testing.T) {
		out, err := f.service.MarkAbsent(context.Background(), f.actor, f.class.ID, amina.ID, testDay)
		require.NoError(t, err)
		assert.True(t, out.Marked)
		assert.False(t, out.Dispatch.Attempted())
		assert.False(t, out.NotificationFailed())
		assert.Empty(t, f.sender.calls)
	})

	t.Run("student in another class", func(t *testing.T) {
		_, err := f.service.MarkAbsent(context.Background(), f.actor, f.class.ID, outsider.ID, testDay)
		assert.ErrorIs(t, err, ErrStudentNotInClass)
		assert.True(t, IsPrecondition(err))
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := f.service.MarkAbsent(context.Background(), f.actor, f.class.ID, uuid.New(), testDay)
		assert.ErrorIs(t, err, ErrStudentNotFound)
	})

	t.Run("no actor", func(t *testing.T) {
		_, err := f.service.MarkAbsent(context.Background(), nil, f.class.ID, amina.ID, testDay)
		assert.ErrorIs(t, err, ErrNoActor)
	})
}

func TestAttendanceService_MarkAbsent_StorageFailure(t *testing.T) {
	f := setupAttendance(t, nil)
	amina := f.addStudent("Amina", "5551112222")
	log := testLogger()
	f.service = NewAttendanceService(
		failingAttendance{Repository: f.store, failFor: amina.ID},
		f.store, f.store.Classes(), nil, NewMessageResolver(f.store, log),
		NewDispatcher(f.sender, "+15559990000", &countingLimiter{}, log), log,
	)

	out, err := f.service.MarkAbsent(context.Background(), f.actor, f.class.ID, amina.ID, testDay)
	require.Error(t, err)
	assert.True(t, IsStorage(err))
	require.NotNil(t, out)
	assert.False(t, out.Marked)
	assert.Empty(t, f.sender.calls)
}

func TestAttendanceService_UpsertOverwrites(t *testing.T) {
	f := setupAttendance(t, nil)
	amina := f.addStudent("Amina", "5551112222")
	ctx := context.Background()

	_, err := f.service.MarkPresent(ctx, f.actor, f.class.ID, amina.ID, testDay, "arrived late")
	require.NoError(t, err)
	first := f.record(t, amina)
	assert.Equal(t, attendance.StatusPresent, first.Status)
	assert.Equal(t, "arrived late", first.Note.String)

	later := testDay.Add(3 * time.Hour)
	_, err = f.service.MarkAbsent(ctx, f.actor, f.class.ID, amina.ID, later)
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.RecordCount())
	second := f.record(t, amina)
	assert.Equal(t, attendance.StatusAbsent, second.Status)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	_, err = f.service.MarkPresent(ctx, f.actor, f.class.ID, amina.ID, testDay, "")
	require.NoError(t, err)
	third := f.record(t, amina)
	assert.Equal(t, attendance.StatusPresent, third.Status)
	assert.False(t, third.Note.Valid)
	assert.Equal(t, 1, f.store.RecordCount())
}

func TestAttendanceService_Roster(t *testing.T) {
	f := setupAttendance(t, nil)
	amina := f.addStudent("Amina")
	bilal := f.addStudent("Bilal")
	chadia := f.addStudent("Chadia")

	_, err := f.service.MarkPresent(context.Background(), f.actor, f.class.ID, bilal.ID, testDay, "")
	require.NoError(t, err)

	roster, err := f.service.Roster(context.Background(), f.class.ID, testDay)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, amina.ID, roster[0].ID)
	assert.Equal(t, chadia.ID, roster[1].ID)

	// the next day everyone is pending again
	roster, err = f.service.Roster(context.Background(), f.class.ID, testDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, roster, 3)

	_, err = f.service.Roster(context.Background(), uuid.New(), testDay)
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestAttendanceService_MarkAllAbsent_InvalidRecordIsNotAStorageFailure(t *testing.T) {
	f := setupAttendance(t, nil)
	f.addStudent("Amina", "5551112222")
	log := testLogger()
	f.service = NewAttendanceService(
		f.store, idlessStudents{Repository: f.store}, f.store.Classes(), StoredLevel{}, NewMessageResolver(f.store, log),
		NewDispatcher(f.sender, "+15559990000", &countingLimiter{}, log), log,
	)

	summary, err := f.service.MarkAllAbsent(context.Background(), f.actor, f.class.ID, testDay)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Marked)
	assert.Equal(t, []string{"Nameless row"}, summary.Failed)

	rejected := summary.Outcomes[1]
	assert.False(t, rejected.Marked)
	require.Error(t, rejected.Err)
	assert.True(t, IsPrecondition(rejected.Err))
	assert.False(t, IsStorage(rejected.Err))

	assert.Equal(t, 1, f.store.RecordCount())
	assert.Equal(t, []string{"+15551112222"}, f.sender.sentTo())
}
