package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // BUSINESS_TZ must resolve in minimal images

	"github.com/joho/godotenv"

	"github.com/nekogravitycat/massage-booking-backend/internal/schedule"
)

const PROD_STRING = "prod"

// Booking stores.
const (
	StoreCalendar = "gcal"
	StorePostgres = "postgres"
)

// Commit lock backends.
const (
	LockNone  = "none"
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	HTTPAddr     string
	LogLevel     string

	// Booking store
	Store           string
	CalendarID      string
	CredentialsFile string
	DBDSN           string

	// Business rules
	BusinessTZ           string
	Location             *time.Location
	Rules                schedule.Rules
	CancelMatchTolerance time.Duration
	DefaultDuration      time.Duration
	ServiceCatalogFile   string

	// Telegram
	TelegramBotToken string
	AdminChatID      int64
	WebAppURL        string
	NotifyTimeout    time.Duration

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string

	// Redis, commit lock and delayed cleanup
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	LockBackend    string
	CleanupEnabled bool
	CleanupQueue   string

	// Admin auth
	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	AdminPasswordHash string
	BcryptCost        int

	// Rate limit for book/cancel
	BookRateInterval time.Duration
	BookRateBurst    int
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists; a missing file is normal in containers.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() (*Config, error) {
	var err error
	cfg := &Config{}

	// Application environment (default: dev)
	cfg.IsProduction = getEnv("APP_ENV", "dev") == PROD_STRING
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")
	if cfg.IsProduction && strings.TrimSpace(cfg.ProdOrigins) == "" {
		return nil, fmt.Errorf("PROD_ORIGINS is required when APP_ENV=%s", PROD_STRING)
	}
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.LogLevel = getEnv("LOG_LEVEL", "")

	// Booking store (default: Google Calendar)
	cfg.Store = getEnv("STORE", StoreCalendar)
	cfg.CalendarID = getEnv("CALENDAR_ID", "")
	cfg.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")
	cfg.DBDSN = getEnv("DB_DSN", "")
	switch cfg.Store {
	case StoreCalendar:
		if cfg.CalendarID == "" {
			return nil, fmt.Errorf("CALENDAR_ID is required when STORE=%s", StoreCalendar)
		}
		if cfg.CredentialsFile == "" {
			return nil, fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS is required when STORE=%s", StoreCalendar)
		}
	case StorePostgres:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required when STORE=%s", StorePostgres)
		}
	default:
		return nil, fmt.Errorf("invalid STORE %q: expected %s or %s", cfg.Store, StoreCalendar, StorePostgres)
	}

	// Business rules
	cfg.BusinessTZ = getEnv("BUSINESS_TZ", "Europe/Moscow")
	cfg.Location, err = time.LoadLocation(cfg.BusinessTZ)
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TZ: %w", err)
	}
	if cfg.Rules, err = loadRules(cfg.Location); err != nil {
		return nil, err
	}
	if cfg.CancelMatchTolerance, err = getEnvAsDuration("CANCEL_MATCH_TOLERANCE", time.Minute); err != nil {
		return nil, err
	}
	defaultMinutes, err := getEnvAsInt("DEFAULT_DURATION_MIN", 60)
	if err != nil {
		return nil, err
	}
	if defaultMinutes <= 0 {
		return nil, fmt.Errorf("DEFAULT_DURATION_MIN must be positive")
	}
	cfg.DefaultDuration = time.Duration(defaultMinutes) * time.Minute
	cfg.ServiceCatalogFile = getEnv("SERVICE_CATALOG_FILE", "")

	// Telegram
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	if cfg.AdminChatID, err = getEnvAsInt64("ADMIN_CHAT_ID", 0); err != nil {
		return nil, err
	}
	cfg.WebAppURL = getEnv("WEBAPP_URL", "")
	if cfg.NotifyTimeout, err = getEnvAsDuration("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	// Kafka
	cfg.KafkaBrokers = getEnvAsList("KAFKA_BROKERS")
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "booking-events")

	// Redis
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	cfg.LockBackend = getEnv("LOCK_BACKEND", LockLocal)
	switch cfg.LockBackend {
	case LockNone, LockLocal:
	case LockRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when LOCK_BACKEND=%s", LockRedis)
		}
	default:
		return nil, fmt.Errorf("invalid LOCK_BACKEND %q", cfg.LockBackend)
	}
	if cfg.CleanupEnabled, err = getEnvAsBool("CLEANUP_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.CleanupEnabled && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required when CLEANUP_ENABLED=true")
	}
	cfg.CleanupQueue = getEnv("CLEANUP_QUEUE", "default")

	// Admin auth. JWT_SECRET is only needed once a password is set.
	cfg.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", "")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	if cfg.AdminPasswordHash != "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when ADMIN_PASSWORD_HASH is set")
	}
	if cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	// Bcrypt cost for password hashing (default: 12)
	if cfg.BcryptCost, err = getEnvAsInt("BCRYPT_COST", 12); err != nil {
		return nil, err
	}

	// Rate limit
	if cfg.BookRateInterval, err = getEnvAsDuration("BOOK_RATE_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.BookRateBurst, err = getEnvAsInt("BOOK_RATE_BURST", 3); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadRules(loc *time.Location) (schedule.Rules, error) {
	rules := schedule.DefaultRules(loc)
	var err error

	if rules.Open, err = getEnvAsTimeOfDay("BUSINESS_OPEN", rules.Open); err != nil {
		return rules, err
	}
	if rules.Close, err = getEnvAsTimeOfDay("BUSINESS_CLOSE", rules.Close); err != nil {
		return rules, err
	}
	if rules.Grid, err = getEnvAsDuration("SLOT_GRID", rules.Grid); err != nil {
		return rules, err
	}
	if rules.LeadTime, err = getEnvAsDuration("LEAD_TIME", rules.LeadTime); err != nil {
		return rules, err
	}
	if rules.HorizonDays, err = getEnvAsInt("HORIZON_DAYS", rules.HorizonDays); err != nil {
		return rules, err
	}
	if rules.Buffer, err = getEnvAsDuration("BUFFER", rules.Buffer); err != nil {
		return rules, err
	}
	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("invalid business rules: %w", err)
	}
	return rules, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

func getEnvAsInt64(key string, defaultValue int64) (int64, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseInt(valStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

// getEnvAsDuration parses values like "15m" or "4h".
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid duration: %w", key, valStr, err)
	}

	return val, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, fmt.Errorf("env %s value %q is not a valid boolean: %w", key, valStr, err)
	}

	return val, nil
}

func getEnvAsTimeOfDay(key string, defaultValue schedule.TimeOfDay) (schedule.TimeOfDay, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := schedule.ParseTimeOfDay(valStr)
	if err != nil {
		return schedule.TimeOfDay{}, fmt.Errorf("env %s: %w", key, err)
	}

	return val, nil
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, ""), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
