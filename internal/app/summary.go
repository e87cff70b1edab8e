package app

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StudentOutcome is the result of processing one student in an attendance action.
type StudentOutcome struct {
	StudentID uuid.UUID
	Name      string
	Level     int
	Message   string
	Marked    bool
	Err       error // Why the attendance was not written: a StorageError or a PreconditionError
	Dispatch  DispatchResult
}

// Notified reports whether at least one recipient received the message.
func (o StudentOutcome) Notified() bool { return o.Dispatch.Sent > 0 }

// NotificationFailed reports whether sends were attempted and none succeeded.
func (o StudentOutcome) NotificationFailed() bool {
	return o.Dispatch.Attempted() && o.Dispatch.Sent == 0
}

// BatchSummary tallies a "mark all absent" sweep. Attendance writes and SMS
// delivery are tracked independently.
type BatchSummary struct {
	ClassName            string
	Marked               int
	NotificationsSent    int
	Failed               []string // Students whose attendance could not be written
	NotificationFailures []string // Students marked absent whose SMS did not go out
	Outcomes             []StudentOutcome
}

func (s *BatchSummary) add(o StudentOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	if !o.Marked {
		s.Failed = append(s.Failed, o.Name)
		return
	}
	s.Marked++
	if o.Notified() {
		s.NotificationsSent++
	}
	if o.NotificationFailed() {
		s.NotificationFailures = append(s.NotificationFailures, o.Name)
	}
}

// Text renders the summary shown to the staff member who started the sweep.
func (s *BatchSummary) Text() string {
	if len(s.Outcomes) == 0 {
		return fmt.Sprintf("%s: everyone is already marked for today.", s.ClassName)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: marked %d absent, %d notified", s.ClassName, s.Marked, s.NotificationsSent)
	if len(s.Failed) > 0 {
		fmt.Fprintf(&b, "\nAttendance failed: %s", strings.Join(s.Failed, ", "))
	}
	if len(s.NotificationFailures) > 0 {
		fmt.Fprintf(&b, "\nSMS failed: %s", strings.Join(s.NotificationFailures, ", "))
	}
	return b.String()
}
