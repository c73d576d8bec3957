package config

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"SERVER_ADDRESS", "MAX_BODY_BYTES",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	"POSTGRES_URL",
	"SMS_WEBHOOK_URL", "VOICE_WEBHOOK_URL", "EMAIL_WEBHOOK_URL",
	"CONTENT_MAX", "SEND_RATE_PER_SEC", "DISPATCH_WORKERS",
	"SCHED_INTERVAL_SECONDS", "SCHED_BATCH_SIZE", "SCHED_AUTOSTART",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_TTL_SECONDS",
}

// envMu serializes tests that touch the process environment.
var envMu sync.Mutex

// loadWith runs LoadAll with exactly the given variables set.
func loadWith(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	envMu.Lock()
	defer envMu.Unlock()

	for _, k := range envKeys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	return LoadAll()
}

func TestLoadAll_Defaults(t *testing.T) {
	cfg, err := loadWith(t, nil)
	require.NoError(t, err)

	assert.Equal(t, ServerConfig{Address: ":8080", MaxBodyBytes: 1 << 20}, cfg.Server)
	assert.Equal(t, LogConfig{Level: "info", Format: "console"}, cfg.Log)
	assert.Empty(t, cfg.Database.PostgresURL, "memory ledger by default")
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, SchedulerConfig{Interval: 30 * time.Second, BatchSize: 50, AutoStart: true}, cfg.Scheduler)
	assert.Equal(t, ProviderConfig{ContentMax: 160, RatePerSec: 10}, cfg.Providers)
	assert.Equal(t, 8, cfg.Dispatch.Workers)
}

func TestLoadAll_Overrides(t *testing.T) {
	cfg, err := loadWith(t, map[string]string{
		"POSTGRES_URL":      "postgres://u:p@localhost:5432/db?sslmode=disable",
		"SMS_WEBHOOK_URL":   "https://sms.example.com/send",
		"EMAIL_WEBHOOK_URL": "http://mail.internal:8081/send",
		"LOG_FORMAT":        "json",
		"LOG_FILE":          "/var/log/schoolwire.log",
		"SCHED_AUTOSTART":   "false",
		"DISPATCH_WORKERS":  "3",
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.Database.PostgresURL)
	assert.Equal(t, "https://sms.example.com/send", cfg.Providers.SMSURL)
	assert.Empty(t, cfg.Providers.VoiceURL)
	assert.Equal(t, "http://mail.internal:8081/send", cfg.Providers.EmailURL)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/var/log/schoolwire.log", cfg.Log.File)
	assert.False(t, cfg.Scheduler.AutoStart)
	assert.Equal(t, 3, cfg.Dispatch.Workers)
}

func TestLoadAll_WithRedis(t *testing.T) {
	cfg, err := loadWith(t, map[string]string{
		"REDIS_ADDR":        "localhost:6379",
		"REDIS_PASSWORD":    "secret",
		"REDIS_DB":          "3",
		"REDIS_TTL_SECONDS": "42",
	})
	require.NoError(t, err)

	assert.Equal(t, RedisConfig{
		Enabled:  true,
		Address:  "localhost:6379",
		Password: "secret",
		DB:       3,
		TTL:      42 * time.Second,
	}, cfg.Redis)
}

func TestLoadAll_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		key  string
	}{
		{"non-numeric content max", map[string]string{"CONTENT_MAX": "abc"}, "CONTENT_MAX"},
		{"non-numeric interval", map[string]string{"SCHED_INTERVAL_SECONDS": "nope"}, "SCHED_INTERVAL_SECONDS"},
		{"non-boolean autostart", map[string]string{"SCHED_AUTOSTART": "maybe"}, "SCHED_AUTOSTART"},
		{"non-numeric workers", map[string]string{"DISPATCH_WORKERS": "many"}, "DISPATCH_WORKERS"},
		{"non-numeric redis db", map[string]string{"REDIS_ADDR": "localhost:6379", "REDIS_DB": "bad"}, "REDIS_DB"},
		{"zero batch", map[string]string{"SCHED_BATCH_SIZE": "0"}, "SCHED_BATCH_SIZE"},
		{"zero interval", map[string]string{"SCHED_INTERVAL_SECONDS": "0"}, "SCHED_INTERVAL_SECONDS"},
		{"negative rate", map[string]string{"SEND_RATE_PER_SEC": "-1"}, "SEND_RATE_PER_SEC"},
		{"zero body limit", map[string]string{"MAX_BODY_BYTES": "0"}, "MAX_BODY_BYTES"},
		{"zero redis ttl", map[string]string{"REDIS_ADDR": "localhost:6379", "REDIS_TTL_SECONDS": "0"}, "REDIS_TTL_SECONDS"},
		{"unknown log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"relative webhook", map[string]string{"SMS_WEBHOOK_URL": "/send"}, "SMS_WEBHOOK_URL"},
		{"non-http webhook", map[string]string{"VOICE_WEBHOOK_URL": "ftp://voice.example.com"}, "VOICE_WEBHOOK_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadWith(t, tt.env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadAll_ReportsEveryBadKey(t *testing.T) {
	_, err := loadWith(t, map[string]string{"CONTENT_MAX": "abc", "SCHED_BATCH_SIZE": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONTENT_MAX")
	assert.Contains(t, err.Error(), "SCHED_BATCH_SIZE")
}

func TestEnvHelpers(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	t.Setenv("SW_TEST_STR", "x")
	t.Setenv("SW_TEST_INT", "123")
	t.Setenv("SW_TEST_BAD", "abc")
	t.Setenv("SW_TEST_BOOL", "0")

	assert.Equal(t, "x", getEnv("SW_TEST_STR", "def"))
	assert.Equal(t, "def", getEnv("SW_TEST_MISSING", "def"))

	n, err := getEnvInt("SW_TEST_INT", 7)
	require.NoError(t, err)
	assert.Equal(t, 123, n)

	n, err = getEnvInt("SW_TEST_MISSING", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = getEnvInt("SW_TEST_BAD", 7)
	assert.ErrorContains(t, err, "SW_TEST_BAD")

	b, err := getEnvBool("SW_TEST_BOOL", true)
	require.NoError(t, err)
	assert.False(t, b)

	_, err = getEnvBool("SW_TEST_BAD", true)
	assert.ErrorContains(t, err, "SW_TEST_BAD")
}

func TestJoinErrors(t *testing.T) {
	assert.NoError(t, joinErrors(nil))
	assert.NoError(t, joinErrors([]error{nil, nil}))

	e1, e2 := errors.New("one"), errors.New("two")
	err := joinErrors([]error{e1, nil, e2})
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
}
