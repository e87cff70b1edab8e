package scheduler

import (
	"context"
	"fmt"
	"time"

	"hifz_attendance_notifier/internal/app"
	domainTelegram "hifz_attendance_notifier/internal/domain/telegram"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const sweepTimeout = 10 * time.Minute

// Sweeper runs the "mark all absent" sweep for one class.
type Sweeper interface {
	MarkAllAbsent(ctx context.Context, actor *app.Actor, classID uuid.UUID, date time.Time) (*app.BatchSummary, error)
}

// AutoSweepScheduler marks still-unmarked students absent at a fixed time of day.
type AutoSweepScheduler struct {
	cronEngine   *cron.Cron
	sweeper      Sweeper
	reporter     domainTelegram.Client // Optional
	reportChatID int64
	logger       *logrus.Entry
	cronSpec     string
	classIDs     []uuid.UUID
	actor        *app.Actor
	location     *time.Location
	nowFunc      func() time.Time
}

func NewAutoSweepScheduler(
	sweeper Sweeper,
	reporter domainTelegram.Client,
	reportChatID int64,
	logger *logrus.Entry,
	cronSpec string, // e.g. "0 21 * * *" (9 PM daily)
	classIDs []uuid.UUID,
	actorID uuid.UUID,
	location *time.Location,
) *AutoSweepScheduler {
	if location == nil {
		location = time.UTC
	}
	return &AutoSweepScheduler{
		cronEngine:   cron.New(cron.WithLocation(location)),
		sweeper:      sweeper,
		reporter:     reporter,
		reportChatID: reportChatID,
		logger:       logger.WithField("component", "auto_sweep_scheduler"),
		cronSpec:     cronSpec,
		classIDs:     classIDs,
		actor:        &app.Actor{UserID: actorID, Name: "auto-sweep"},
		location:     location,
		nowFunc:      time.Now,
	}
}

// Start registers the sweep job and starts the cron engine.
func (s *AutoSweepScheduler) Start() error {
	if _, err := s.cronEngine.AddFunc(s.cronSpec, s.RunOnce); err != nil {
		return fmt.Errorf("could not add auto sweep cron job %q: %w", s.cronSpec, err)
	}
	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"spec":    s.cronSpec,
		"classes": len(s.classIDs),
	}).Info("Auto sweep scheduler started")
	return nil
}

// RunOnce sweeps every configured class for today. Classes are independent:
// a failing class is logged and the next one still runs.
func (s *AutoSweepScheduler) RunOnce() {
	today := s.nowFunc().In(s.location)
	for _, classID := range s.classIDs {
		logCtx := s.logger.WithField("class_id", classID)
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		summary, err := s.sweeper.MarkAllAbsent(ctx, s.actor, classID, today)
		cancel()
		if err != nil {
			logCtx.WithError(err).Error("Auto sweep failed")
			s.report(fmt.Sprintf("Auto sweep failed for class %s: %v", classID, err))
			continue
		}
		logCtx.WithField("marked", summary.Marked).Info("Auto sweep finished")
		if len(summary.Outcomes) > 0 {
			s.report(summary.Text())
		}
	}
}

func (s *AutoSweepScheduler) report(text string) {
	if s.reporter == nil || s.reportChatID == 0 {
		return
	}
	if err := s.reporter.SendText(s.reportChatID, text); err != nil {
		s.logger.WithError(err).Warn("Failed to send auto sweep report")
	}
}

func (s *AutoSweepScheduler) Stop() {
	s.logger.Info("Stopping auto sweep scheduler...")
	ctx := s.cronEngine.Stop() // Waits for a running sweep to finish.
	<-ctx.Done()
	s.logger.Info("Auto sweep scheduler stopped")
}
