package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Providers ProviderConfig
	Dispatch  DispatchConfig
}

type ServerConfig struct {
	Address      string
	MaxBodyBytes int64
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// DatabaseConfig is optional; without a URL the ledger is kept in memory.
type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SchedulerConfig struct {
	Interval  time.Duration
	BatchSize int
	AutoStart bool
}

// ProviderConfig holds one webhook URL per channel. Empty URLs disable
// transmission on that channel.
type ProviderConfig struct {
	SMSURL     string
	VoiceURL   string
	EmailURL   string
	ContentMax int
	RatePerSec int
}

type DispatchConfig struct {
	Workers int
}

func LoadAll() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	maxBody, err := getEnvInt("MAX_BODY_BYTES", 1<<20)
	collect(err)
	interval, err := getEnvInt("SCHED_INTERVAL_SECONDS", 30)
	collect(err)
	batch, err := getEnvInt("SCHED_BATCH_SIZE", 50)
	collect(err)
	autoStart, err := getEnvBool("SCHED_AUTOSTART", true)
	collect(err)
	contentMax, err := getEnvInt("CONTENT_MAX", 160)
	collect(err)
	rps, err := getEnvInt("SEND_RATE_PER_SEC", 10)
	collect(err)
	workers, err := getEnvInt("DISPATCH_WORKERS", 8)
	collect(err)
	redisCfg, err := loadRedisConfig()
	collect(err)

	cfg := &Config{
		Server: ServerConfig{
			Address:      getEnv("SERVER_ADDRESS", ":8080"),
			MaxBodyBytes: int64(maxBody),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			File:   os.Getenv("LOG_FILE"),
		},
		Database: DatabaseConfig{
			PostgresURL: os.Getenv("POSTGRES_URL"),
		},
		Redis: redisCfg,
		Scheduler: SchedulerConfig{
			Interval:  time.Duration(interval) * time.Second,
			BatchSize: batch,
			AutoStart: autoStart,
		},
		Providers: ProviderConfig{
			SMSURL:     os.Getenv("SMS_WEBHOOK_URL"),
			VoiceURL:   os.Getenv("VOICE_WEBHOOK_URL"),
			EmailURL:   os.Getenv("EMAIL_WEBHOOK_URL"),
			ContentMax: contentMax,
			RatePerSec: rps,
		},
		Dispatch: DispatchConfig{
			Workers: workers,
		},
	}

	if len(errs) == 0 {
		errs = append(errs, validate(cfg)...)
	}
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, dbErr := getEnvInt("REDIS_DB", 0)
	ttl, ttlErr := getEnvInt("REDIS_TTL_SECONDS", 86400)

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, joinErrors([]error{dbErr, ttlErr})
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Scheduler.BatchSize <= 0 {
		errs = append(errs, errors.New("SCHED_BATCH_SIZE must be > 0"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Providers.ContentMax <= 0 {
		errs = append(errs, errors.New("CONTENT_MAX must be > 0"))
	}
	if cfg.Providers.RatePerSec <= 0 {
		errs = append(errs, errors.New("SEND_RATE_PER_SEC must be > 0"))
	}
	if cfg.Dispatch.Workers <= 0 {
		errs = append(errs, errors.New("DISPATCH_WORKERS must be > 0"))
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be > 0"))
	}
	if cfg.Redis.Enabled && cfg.Redis.TTL <= 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be > 0"))
	}
	if f := strings.ToLower(cfg.Log.Format); f != "console" && f != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be console or json, got %q", cfg.Log.Format))
	}
	for key, raw := range map[string]string{
		"SMS_WEBHOOK_URL":   cfg.Providers.SMSURL,
		"VOICE_WEBHOOK_URL": cfg.Providers.VoiceURL,
		"EMAIL_WEBHOOK_URL": cfg.Providers.EmailURL,
	} {
		if err := checkWebhookURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s %w", key, err))
		}
	}
	return errs
}

// checkWebhookURL accepts an empty value (channel disabled) or an absolute
// http(s) URL.
func checkWebhookURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid bool for env %s: %q", key, v)
	}
	return b, nil
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
