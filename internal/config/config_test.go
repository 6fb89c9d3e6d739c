package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "dev")
	t.Setenv("STORE", StoreCalendar)
	t.Setenv("CALENDAR_ID", "cal@group.calendar.google.com")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/secrets/sa.json")
}

func TestFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.IsProduction)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "Europe/Moscow", cfg.Location.String())
	assert.Equal(t, 10, cfg.Rules.Open.Hour)
	assert.Equal(t, 21, cfg.Rules.Close.Hour)
	assert.Equal(t, 20*time.Minute, cfg.Rules.Grid)
	assert.Equal(t, 4*time.Hour, cfg.Rules.LeadTime)
	assert.Equal(t, 14, cfg.Rules.HorizonDays)
	assert.Equal(t, 20*time.Minute, cfg.Rules.Buffer)
	assert.Equal(t, time.Minute, cfg.CancelMatchTolerance)
	assert.Equal(t, time.Hour, cfg.DefaultDuration)
	assert.Equal(t, 5*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, LockLocal, cfg.LockBackend)
	assert.Equal(t, 15*time.Second, cfg.BookRateInterval)
	assert.Equal(t, 3, cfg.BookRateBurst)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestFromEnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BUSINESS_OPEN", "09:30")
	t.Setenv("BUSINESS_CLOSE", "20:00")
	t.Setenv("SLOT_GRID", "30m")
	t.Setenv("LEAD_TIME", "2h")
	t.Setenv("HORIZON_DAYS", "7")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ADMIN_CHAT_ID", "-1001234567890")
	t.Setenv("CLEANUP_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOCK_BACKEND", LockRedis)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Rules.Open.Hour)
	assert.Equal(t, 30, cfg.Rules.Open.Minute)
	assert.Equal(t, 30*time.Minute, cfg.Rules.Grid)
	assert.Equal(t, 2*time.Hour, cfg.Rules.LeadTime)
	assert.Equal(t, 7, cfg.Rules.HorizonDays)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, int64(-1001234567890), cfg.AdminChatID)
	assert.True(t, cfg.CleanupEnabled)
	assert.Equal(t, LockRedis, cfg.LockBackend)
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing calendar id", map[string]string{"CALENDAR_ID": ""}},
		{"postgres without dsn", map[string]string{"STORE": StorePostgres}},
		{"unknown store", map[string]string{"STORE": "sqlite"}},
		{"bad timezone", map[string]string{"BUSINESS_TZ": "Mars/Olympus"}},
		{"close before open", map[string]string{"BUSINESS_OPEN": "21:00", "BUSINESS_CLOSE": "10:00"}},
		{"bad grid", map[string]string{"SLOT_GRID": "often"}},
		{"bad horizon", map[string]string{"HORIZON_DAYS": "two weeks"}},
		{"redis lock without addr", map[string]string{"LOCK_BACKEND": LockRedis}},
		{"unknown lock", map[string]string{"LOCK_BACKEND": "zookeeper"}},
		{"cleanup without redis", map[string]string{"CLEANUP_ENABLED": "true"}},
		{"admin hash without secret", map[string]string{"ADMIN_PASSWORD_HASH": "$2a$12$abc"}},
		{"prod without origins", map[string]string{"APP_ENV": PROD_STRING}},
		{"zero default duration", map[string]string{"DEFAULT_DURATION_MIN": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
