package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	StorageDriver string
	DatabaseURL   string
	LogLevel      string
	Environment   string
	Location      *time.Location

	TelegramToken        string
	StaffTelegramIDs     map[int64]uuid.UUID // Telegram user ID -> staff user ID
	ReportTelegramChatID int64

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	SMSInterval      time.Duration

	RedisURL       string
	PresetCacheTTL time.Duration

	HTTPAddr  string
	JWTSecret string

	CronSpecAutoSweep string
	AutoSweepClassIDs []uuid.UUID
	AutoSweepActorID  uuid.UUID
}

// TwilioEnabled reports whether SMS should go through Twilio instead of the console sender.
func (c *AppConfig) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.StorageDriver = strings.ToLower(os.Getenv("STORAGE_DRIVER"))
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = StorageDriverPostgres
	}
	if cfg.StorageDriver != StorageDriverPostgres && cfg.StorageDriver != StorageDriverMemory {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StorageDriver == StorageDriverPostgres {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	tz := os.Getenv("TIMEZONE")
	if tz == "" {
		tz = "UTC"
	}
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.StaffTelegramIDs, err = parseStaffIDs(os.Getenv("STAFF_TELEGRAM_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid STAFF_TELEGRAM_IDS: %w", err)
	}
	if chatID := os.Getenv("REPORT_TELEGRAM_CHAT_ID"); chatID != "" {
		cfg.ReportTelegramChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid REPORT_TELEGRAM_CHAT_ID: %w", err)
		}
	}

	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.TwilioFromNumber = os.Getenv("TWILIO_FROM_NUMBER")

	cfg.SMSInterval, err = durationOrDefault("SMS_INTERVAL", 150*time.Millisecond)
	if err != nil {
		return nil, err
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.PresetCacheTTL, err = durationOrDefault("PRESET_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	cfg.CronSpecAutoSweep = os.Getenv("CRON_SPEC_AUTO_SWEEP") // Empty disables the automatic sweep
	cfg.AutoSweepClassIDs, err = parseUUIDList(os.Getenv("AUTO_SWEEP_CLASS_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_SWEEP_CLASS_IDS: %w", err)
	}
	if actor := os.Getenv("AUTO_SWEEP_ACTOR_ID"); actor != "" {
		cfg.AutoSweepActorID, err = uuid.Parse(actor)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTO_SWEEP_ACTOR_ID: %w", err)
		}
	}
	if cfg.CronSpecAutoSweep != "" && cfg.AutoSweepActorID == uuid.Nil {
		return nil, fmt.Errorf("AUTO_SWEEP_ACTOR_ID is required when CRON_SPEC_AUTO_SWEEP is set")
	}

	return cfg, nil
}

func durationOrDefault(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// parseStaffIDs parses "tgid:uuid,tgid:uuid".
func parseStaffIDs(raw string) (map[int64]uuid.UUID, error) {
	ids := make(map[int64]uuid.UUID)
	for _, pair := range splitList(raw) {
		tg, staff, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("expected <telegram_id>:<staff_uuid>, got %q", pair)
		}
		tgID, err := strconv.ParseInt(strings.TrimSpace(tg), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram id %q: %w", tg, err)
		}
		staffID, err := uuid.Parse(strings.TrimSpace(staff))
		if err != nil {
			return nil, fmt.Errorf("staff id %q: %w", staff, err)
		}
		ids[tgID] = staffID
	}
	return ids, nil
}

func parseUUIDList(raw string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, item := range splitList(raw) {
		id, err := uuid.Parse(item)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", item, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
