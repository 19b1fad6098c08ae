package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the update relay.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Logger   LoggerConfig    `mapstructure:"logger"`
	Sentry   SentryConfig    `mapstructure:"sentry"`
	Ops      OpsConfig       `mapstructure:"ops"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Database DatabaseConfig  `mapstructure:"database"`
	Sinks    SinksConfig     `mapstructure:"sinks"`
	Sessions []SessionConfig `mapstructure:"sessions" validate:"required,min=1,dive"`
}

// LoggerConfig selects log level, format and optional file rotation.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig enables error forwarding to Sentry.
type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

// OpsConfig configures the operational HTTP server (/metrics, /healthz).
type OpsConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig defines connection parameters for the Redis client used by the
// stream, asynq, and dedup sinks.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// DatabaseConfig defines the Postgres connection used by the journal sink.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns a PostgreSQL connection string based on config values.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		sslMode,
	)
}

// SinksConfig carries per-backend sink settings.
type SinksConfig struct {
	Redis   RedisSinkConfig   `mapstructure:"redis"`
	Asynq   AsynqSinkConfig   `mapstructure:"asynq"`
	Journal JournalSinkConfig `mapstructure:"journal"`
	Dedup   DedupConfig       `mapstructure:"dedup"`
}

// RedisSinkConfig configures the Redis Stream sink.
type RedisSinkConfig struct {
	Stream string `mapstructure:"stream"`
	MaxLen int64  `mapstructure:"max_len"`
}

// AsynqSinkConfig configures the task-queue sink.
type AsynqSinkConfig struct {
	Queue    string `mapstructure:"queue"`
	TaskType string `mapstructure:"task_type"`
}

// JournalSinkConfig configures the Postgres journal sink.
type JournalSinkConfig struct {
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// DedupConfig configures the recently-seen guard applied before sink writes.
type DedupConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// SessionConfig describes one polling session.
type SessionConfig struct {
	Name  string `mapstructure:"name" validate:"required"`
	Token string `mapstructure:"token" validate:"required"`
	// Updates lists allowed update kinds; "*" (or an empty list) delivers
	// all kinds.
	Updates []string `mapstructure:"updates"`
	Limit   int      `mapstructure:"limit" validate:"omitempty,min=1,max=100"`
	Timeout int      `mapstructure:"timeout" validate:"gte=0"`
	// Sinks names the backends this session emits to.
	Sinks []string `mapstructure:"sinks" validate:"required,min=1,dive,oneof=redis asynq journal"`
}
