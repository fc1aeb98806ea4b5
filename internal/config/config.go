package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr      string
	DBDriver  string
	DBPath    string
	LogLevel  string
	LogFormat string

	WorkerCount int
	QueueSize   int

	TelegramToken       string
	TelegramPollTimeout int
	WebhookVerifyToken  string
	CallbackURL         string
	MessageMaxLength    int
	OutboundRate        float64
	OutboundBurst       int

	RedisAddr    string
	RedisLockTTL time.Duration

	DueScanInterval     time.Duration
	NudgeScanInterval   time.Duration
	OutboxFlushInterval time.Duration
	OutboxMaxAttempts   int
	ScanConcurrency     int

	RecentQuestionWindow int
	SessionTimeout       time.Duration
	ProactiveCooldown    time.Duration
	QuietHoursStart      int
	QuietHoursEnd        int
	Timezone             string
	PracticeWhenIdle     bool

	SM2MinEase          float64
	SM2MaxHintPenalty   int
	SM2MaxIntervalDays  int
	MasteryRepetitions  int
	MasteryIntervalDays int

	NudgeTiers string
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:      envOr("ADDR", ":8080"),
		DBDriver:  envOr("DB_DRIVER", "sqlite3"),
		DBPath:    envOr("DB_PATH", "file:drillbot.db"),
		LogLevel:  envOr("LOG_LEVEL", "INFO"),
		LogFormat: envOr("LOG_FORMAT", "text"),

		WorkerCount: envIntOr("WORKER_COUNT", 4),
		QueueSize:   envIntOr("QUEUE_SIZE", 128),

		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		TelegramPollTimeout: envIntOr("TELEGRAM_POLL_TIMEOUT", 30),
		WebhookVerifyToken:  envOr("WEBHOOK_VERIFY_TOKEN", "drillbot-verify-token"),
		CallbackURL:         os.Getenv("CALLBACK_URL"),
		MessageMaxLength:    envIntOr("MESSAGE_MAX_LENGTH", 4096),
		OutboundRate:        envFloatOr("OUTBOUND_RATE", 1),
		OutboundBurst:       envIntOr("OUTBOUND_BURST", 5),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisLockTTL: envDurationOr("REDIS_LOCK_TTL", 30*time.Second),

		DueScanInterval:     envDurationOr("DUE_SCAN_INTERVAL", 15*time.Minute),
		NudgeScanInterval:   envDurationOr("NUDGE_SCAN_INTERVAL", time.Hour),
		OutboxFlushInterval: envDurationOr("OUTBOX_FLUSH_INTERVAL", 30*time.Second),
		OutboxMaxAttempts:   envIntOr("OUTBOX_MAX_ATTEMPTS", 8),
		ScanConcurrency:     envIntOr("SCAN_CONCURRENCY", 8),

		RecentQuestionWindow: envIntOr("RECENT_QUESTION_WINDOW", 3),
		SessionTimeout:       envDurationOr("SESSION_TIMEOUT", 12*time.Hour),
		ProactiveCooldown:    envDurationOr("PROACTIVE_COOLDOWN", 2*time.Hour),
		QuietHoursStart:      envIntOr("QUIET_HOURS_START", 22),
		QuietHoursEnd:        envIntOr("QUIET_HOURS_END", 7),
		Timezone:             envOr("TIMEZONE", "UTC"),
		PracticeWhenIdle:     envBoolOr("PRACTICE_WHEN_IDLE", false),

		SM2MinEase:          envFloatOr("SM2_MIN_EASE", 1.3),
		SM2MaxHintPenalty:   envIntOr("SM2_MAX_HINT_PENALTY", 2),
		SM2MaxIntervalDays:  envIntOr("SM2_MAX_INTERVAL_DAYS", 365),
		MasteryRepetitions:  envIntOr("MASTERY_REPETITIONS", 5),
		MasteryIntervalDays: envIntOr("MASTERY_INTERVAL_DAYS", 21),

		NudgeTiers: envOr("NUDGE_TIERS", DefaultNudgeTiers),
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Addr) == "" {
		add("ADDR cannot be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		add("DB_PATH cannot be empty")
	}
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		add("DB_DRIVER must be sqlite3 or postgres, got %q", c.DBDriver)
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		add("LOG_LEVEL must be one of DEBUG, INFO, WARN, ERROR, got %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		add("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.WorkerCount <= 0 {
		add("WORKER_COUNT must be positive")
	}
	if c.QueueSize <= 0 {
		add("QUEUE_SIZE must be positive")
	}
	if c.ScanConcurrency <= 0 {
		add("SCAN_CONCURRENCY must be positive")
	}
	if c.OutboxMaxAttempts <= 0 {
		add("OUTBOX_MAX_ATTEMPTS must be positive")
	}
	if c.MessageMaxLength < 64 {
		add("MESSAGE_MAX_LENGTH must be at least 64")
	}
	if c.OutboundRate <= 0 || c.OutboundBurst <= 0 {
		add("OUTBOUND_RATE and OUTBOUND_BURST must be positive")
	}
	for name, d := range map[string]time.Duration{
		"DUE_SCAN_INTERVAL":     c.DueScanInterval,
		"NUDGE_SCAN_INTERVAL":   c.NudgeScanInterval,
		"OUTBOX_FLUSH_INTERVAL": c.OutboxFlushInterval,
		"SESSION_TIMEOUT":       c.SessionTimeout,
	} {
		if d <= 0 {
			add("%s must be positive", name)
		}
	}
	if c.RecentQuestionWindow < 0 {
		add("RECENT_QUESTION_WINDOW cannot be negative")
	}
	if c.QuietHoursStart < 0 || c.QuietHoursStart > 23 || c.QuietHoursEnd < 0 || c.QuietHoursEnd > 23 {
		add("QUIET_HOURS_START and QUIET_HOURS_END must be within 0-23")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		add("TIMEZONE %q is not a known location", c.Timezone)
	}
	if c.SM2MinEase < 1.3 {
		add("SM2_MIN_EASE must be at least 1.3")
	}
	if c.SM2MaxHintPenalty < 0 || c.SM2MaxHintPenalty > 2 {
		add("SM2_MAX_HINT_PENALTY must be within 0-2")
	}
	if c.SM2MaxIntervalDays < 0 {
		add("SM2_MAX_INTERVAL_DAYS cannot be negative")
	}
	if c.MasteryRepetitions <= 0 || c.MasteryIntervalDays <= 0 {
		add("MASTERY_REPETITIONS and MASTERY_INTERVAL_DAYS must be positive")
	}
	if _, err := ParseNudgeTiers(c.NudgeTiers); err != nil {
		add("NUDGE_TIERS: %v", err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envFloatOr(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("invalid value for %s=%q, using default %g", key, v, def)
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("invalid value for %s=%q, using default %t", key, v, def)
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid value for %s=%q, using default %s", key, v, def)
	}
	return def
}
