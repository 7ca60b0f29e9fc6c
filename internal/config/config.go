package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=bloodbank port=5432 sslmode=disable"

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
	AutoMigrate bool

	// Upper bound for one segregation transaction, including waiting on the collection row lock.
	SegregationTimeout time.Duration
	LockTimeout        time.Duration
	ExposeErrorDetail  bool

	ComponentSettingsFile string

	Log    LogConfig
	Redis  RedisConfig
	Alerts AlertsConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig configures the summary cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// AlertsConfig holds scheduler and notifier settings.
type AlertsConfig struct {
	ExpirySweepCron   string
	RareCheckCron     string
	CriticalCheckCron string
	Timezone          string
	WebhookURL        string
	WebhookToken      string
	JobTimeout        time.Duration
}

// Load reads the environment (and an optional .env file) into a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:           getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		CORSOrigins:           getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		AutoMigrate:           getBool("DB_AUTO_MIGRATE", true),
		ExposeErrorDetail:     getBool("EXPOSE_ERROR_DETAIL", true),
		ComponentSettingsFile: getEnv("COMPONENT_SETTINGS_FILE", ""),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Alerts: AlertsConfig{
			ExpirySweepCron:   getEnv("EXPIRY_SWEEP_CRON", "0 0 * * *"),
			RareCheckCron:     getEnv("RARE_ALERT_CRON", "0 8 * * *"),
			CriticalCheckCron: getEnv("CRITICAL_ALERT_CRON", "0 */4 * * *"),
			Timezone:          getEnv("TIMEZONE", "Asia/Kolkata"),
			WebhookURL:        getEnv("ALERT_WEBHOOK_URL", ""),
			WebhookToken:      getEnv("ALERT_WEBHOOK_TOKEN", ""),
		},
	}

	var err error
	if cfg.SegregationTimeout, err = getDuration("SEGREGATION_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockTimeout, err = getDuration("SEGREGATION_LOCK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Redis.TTL, err = getDuration("CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Alerts.JobTimeout, err = getDuration("ALERT_JOB_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB must be an integer: %w", err)
		}
		cfg.Redis.DB = db
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that are unsafe to run with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT must not be empty")
	}
	if c.SegregationTimeout <= 0 {
		return errors.New("SEGREGATION_TIMEOUT must be positive")
	}
	if c.LockTimeout <= 0 || c.LockTimeout > c.SegregationTimeout {
		return errors.New("SEGREGATION_LOCK_TIMEOUT must be positive and not exceed SEGREGATION_TIMEOUT")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// Warnings lists settings that are acceptable locally but not in production.
func (c *Config) Warnings() []string {
	var out []string
	if c.DatabaseDSN == defaultDSN {
		out = append(out, "DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if c.CORSOrigins == "http://localhost:5173" {
		out = append(out, "CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
	if c.ExposeErrorDetail {
		out = append(out, "EXPOSE_ERROR_DETAIL is on, database error messages are returned to clients")
	}
	return out
}

// Location is the service calendar. Cron schedules, expiry dates and the
// expiry sweep cutoff are all read in it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Alerts.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE is invalid: %w", err)
	}
	return loc, nil
}

// CORSOriginList splits the comma separated origin list.
func (c *Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 15s: %w", key, err)
	}
	return d, nil
}
