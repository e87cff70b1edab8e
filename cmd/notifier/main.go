package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hifz_attendance_notifier/internal/app"
	"hifz_attendance_notifier/internal/domain/attendance"
	"hifz_attendance_notifier/internal/domain/class"
	"hifz_attendance_notifier/internal/domain/preset"
	domainSMS "hifz_attendance_notifier/internal/domain/sms"
	"hifz_attendance_notifier/internal/domain/student"
	domainTelegram "hifz_attendance_notifier/internal/domain/telegram"
	"hifz_attendance_notifier/internal/infra/cache"
	"hifz_attendance_notifier/internal/infra/config"
	idb "hifz_attendance_notifier/internal/infra/database"
	"hifz_attendance_notifier/internal/infra/httpapi"
	"hifz_attendance_notifier/internal/infra/logger"
	"hifz_attendance_notifier/internal/infra/memstore"
	"hifz_attendance_notifier/internal/infra/scheduler"
	infraSMS "hifz_attendance_notifier/internal/infra/sms"
	"hifz_attendance_notifier/internal/infra/telegram"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const shutdownTimeout = 15 * time.Second

type repositories struct {
	attendance attendance.Repository
	students   student.Repository
	classes    class.Repository
	presets    preset.Repository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"storage":     cfg.StorageDriver,
	}).Info("Configuration loaded")

	// Repositories
	var repos repositories
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store := memstore.New()
		repos = repositories{attendance: store, students: store, classes: store.Classes(), presets: store}
		mainLogger.Warn("Using in-memory storage; data is lost on restart")
	default:
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()
		if err := ensureSchema(db); err != nil {
			mainLogger.WithError(err).Fatal("Could not prepare database schema")
		}
		repos = repositories{
			attendance: idb.NewPostgresAttendanceRepository(db),
			students:   idb.NewPostgresStudentRepository(db),
			classes:    idb.NewPostgresClassRepository(db),
			presets:    idb.NewPostgresPresetRepository(db),
		}
		mainLogger.Info("Database connection established successfully")
	}

	// Optional Redis cache in front of the preset pool
	var presetCache *cache.PresetCache
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			mainLogger.WithError(err).Warn("Redis unavailable, presets will not be cached")
		} else {
			defer func(c *redis.Client) { _ = c.Close() }(redisClient)
			presetCache = cache.NewPresetCache(repos.presets, redisClient, cfg.PresetCacheTTL, logrus.NewEntry(logger.Log))
			repos.presets = presetCache
			mainLogger.Info("Preset cache enabled")
		}
	}

	// SMS provider
	var sender domainSMS.Sender
	if cfg.TwilioEnabled() {
		sender = infraSMS.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken)
		mainLogger.Info("Twilio SMS sender initialized")
	} else {
		sender = infraSMS.NewConsoleSender(logrus.NewEntry(logger.Log))
		mainLogger.Warn("Twilio credentials not set, SMS messages will only be logged")
	}

	// Services
	baseEntry := logrus.NewEntry(logger.Log)
	levels := app.StoredLevel{}
	messages := app.NewMessageResolver(repos.presets, baseEntry)
	dispatcher := app.NewDispatcher(sender, cfg.TwilioFromNumber, app.NewIntervalLimiter(cfg.SMSInterval), baseEntry)
	attendanceService := app.NewAttendanceService(repos.attendance, repos.students, repos.classes, levels, messages, dispatcher, baseEntry)
	noticeService := app.NewLessonNoticeService(repos.students, repos.classes, levels, messages, dispatcher, baseEntry)

	// Telegram bot (optional)
	var bot *telebot.Bot
	var reporter domainTelegram.Client
	if cfg.TelegramToken != "" {
		botLogger := logger.Component("telegram")
		pref := telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
				}
				entry.Error("Telegram handler error")
			},
		}
		bot, err = telebot.NewBot(pref)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		telegram.RegisterBotCommands(bot, cfg.StaffTelegramIDs, botLogger)
		telegram.NewStaffHandlers(attendanceService, cfg.StaffTelegramIDs, cfg.Location, botLogger).Register(bot)
		reporter = telegram.NewTelebotAdapter(bot)
		mainLogger.WithField("staff", len(cfg.StaffTelegramIDs)).Info("Telegram handlers registered")
	}

	// Auto sweep (optional)
	var autoSweep *scheduler.AutoSweepScheduler
	if cfg.CronSpecAutoSweep != "" {
		autoSweep = scheduler.NewAutoSweepScheduler(
			attendanceService,
			reporter,
			cfg.ReportTelegramChatID,
			baseEntry,
			cfg.CronSpecAutoSweep,
			cfg.AutoSweepClassIDs,
			cfg.AutoSweepActorID,
			cfg.Location,
		)
		if err := autoSweep.Start(); err != nil {
			mainLogger.WithError(err).Fatal("Could not start auto sweep scheduler")
		}
	}

	// HTTP API
	opts := &httpapi.Options{
		Address:    cfg.HTTPAddr,
		JWTSecret:  []byte(cfg.JWTSecret),
		Location:   cfg.Location,
		Attendance: attendanceService,
		Notices:    noticeService,
		Levels:     levels,
		Logger:     logger.Component("http"),
	}
	if presetCache != nil {
		opts.Presets = presetCache
	}
	server := httpapi.NewServer(opts)
	go func() {
		if err := server.Start(); err != nil {
			mainLogger.WithError(err).Fatal("HTTP server stopped unexpectedly")
		}
	}()

	if bot != nil {
		go bot.Start()
	}
	mainLogger.Info("Application setup complete")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	if autoSweep != nil {
		autoSweep.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		mainLogger.WithError(err).Error("HTTP server shutdown failed")
	}
	mainLogger.Info("Application shut down gracefully")
}

func ensureSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return idb.EnsureSchema(ctx, db)
}
