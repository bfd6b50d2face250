package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Ingestion    IngestionConfig
	Mailbox      MailboxConfig
	SMTP         SMTPConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	DialTimeoutSec int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Encoding    string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig bounds outbound mail.
type NotificationConfig struct {
	TimeoutSeconds int
}

// IngestionConfig tunes the mailbox poller and pass lock.
type IngestionConfig struct {
	AutoStart       bool
	FallbackSeconds int
	LockTTLSeconds  int
	DistributedLock bool
	MaxBodyBytes    int64
	CheckNowSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	mailboxSecurity, err := ParseSecurity(getEnv("MAILBOX_SECURITY", string(SecuritySSL)))
	if err != nil {
		return nil, fmt.Errorf("invalid MAILBOX_SECURITY: %w", err)
	}
	smtpSecurity, err := ParseSecurity(getEnv("SMTP_SECURITY", string(SecuritySTARTTLS)))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_SECURITY: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "crm-helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			PoolSize:       getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeoutSec: getEnvAsInt("REDIS_DIAL_TIMEOUT_SECONDS", 5),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Encoding:    getEnv("LOG_ENCODING", "json"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			TimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 20),
		},
		Ingestion: IngestionConfig{
			AutoStart:       getEnvAsBool("INGEST_AUTOSTART", true),
			FallbackSeconds: getEnvAsInt("MAILBOX_FALLBACK_SECONDS", 15),
			LockTTLSeconds:  getEnvAsInt("INGEST_LOCK_TTL_SECONDS", 300),
			DistributedLock: getEnvAsBool("INGEST_DISTRIBUTED_LOCK", true),
			MaxBodyBytes:    int64(getEnvAsInt("INGEST_MAX_BODY_BYTES", 256*1024)),
			CheckNowSeconds: getEnvAsInt("INGEST_CHECK_NOW_TIMEOUT_SECONDS", 300),
		},
		Mailbox: MailboxConfig{
			Enabled:         getEnvAsBool("MAILBOX_ENABLED", false),
			Host:            os.Getenv("MAILBOX_HOST"),
			Port:            getEnvAsInt("MAILBOX_PORT", 0),
			Username:        os.Getenv("MAILBOX_USERNAME"),
			Password:        os.Getenv("MAILBOX_PASSWORD"),
			Security:        mailboxSecurity,
			Folder:          getEnv("MAILBOX_FOLDER", DefaultFolder),
			IntervalSeconds: getEnvAsInt("MAILBOX_INTERVAL_SECONDS", 60),
		}.WithDefaults(),
		SMTP: SMTPConfig{
			Host:      os.Getenv("SMTP_HOST"),
			Port:      getEnvAsInt("SMTP_PORT", 0),
			Username:  os.Getenv("SMTP_USERNAME"),
			Password:  os.Getenv("SMTP_PASSWORD"),
			Security:  smtpSecurity,
			FromEmail: getEnv("SMTP_FROM_EMAIL", "noreply@example.com"),
			FromName:  getEnv("SMTP_FROM_NAME", "CRM Pro"),
		}.WithDefaults(),
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-notification deadline.
func (n NotificationConfig) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// Fallback returns how long the poller sleeps while checking is disabled.
func (i IngestionConfig) Fallback() time.Duration {
	if i.FallbackSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(i.FallbackSeconds) * time.Second
}

// LockTTL returns the expiry of the cross-process pass lock.
func (i IngestionConfig) LockTTL() time.Duration {
	if i.LockTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(i.LockTTLSeconds) * time.Second
}

// CheckNowTimeout bounds an on-demand pass, which outlives its HTTP request.
func (i IngestionConfig) CheckNowTimeout() time.Duration {
	if i.CheckNowSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(i.CheckNowSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
