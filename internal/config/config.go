package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Log    LogConfig
	Plans  PlanConfig
	SMTP   SMTPConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable
// and set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"voucher_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// RedisConfig holds the optional Redis connection used by the plan throttle.
// When Addr is empty the throttle uses its in-process store instead.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:""`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// PlanConfig holds per-plan throttle capacities. Capacity is the number of
// requests an organization may spend within one window before receiving 429s.
type PlanConfig struct {
	FreePoints    int `envconfig:"PLAN_FREE_POINTS" default:"100"`
	ProPoints     int `envconfig:"PLAN_PRO_POINTS" default:"1000"`
	WindowSeconds int `envconfig:"PLAN_WINDOW_SECONDS" default:"60"`
}

// Window returns the throttle window as a duration.
func (c PlanConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// SMTPConfig holds the outbound mail relay used for redemption notifications.
// When Host is empty, notifications are logged instead of sent.
type SMTPConfig struct {
	Host          string  `envconfig:"SMTP_HOST" default:""`
	Port          int     `envconfig:"SMTP_PORT" default:"587"`
	User          string  `envconfig:"SMTP_USER" default:""`
	Password      string  `envconfig:"SMTP_PASSWORD" default:""`
	Sender        string  `envconfig:"SMTP_SENDER" default:""`
	SendPerSecond float64 `envconfig:"SMTP_SEND_PER_SECOND" default:"5"`
	SendBurst     int     `envconfig:"SMTP_SEND_BURST" default:"10"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
