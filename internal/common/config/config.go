// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Gateway       GatewayConfig      `mapstructure:"gateway"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Session       SessionConfig      `mapstructure:"session"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Executor      ExecutorConfig     `mapstructure:"executor"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// GatewayConfig holds settings for the messaging gateway (bot API).
type GatewayConfig struct {
	APIBaseURL    string `mapstructure:"api_base_url"`
	Token         string `mapstructure:"token"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig holds conversation session settings.
type SessionConfig struct {
	InactivityTTL int `mapstructure:"inactivity_ttl"` // seconds
}

// SchedulerConfig holds the submission scheduler settings.
type SchedulerConfig struct {
	PollInterval  int `mapstructure:"poll_interval"`   // seconds
	BatchSize     int `mapstructure:"batch_size"`      // records per cycle
	MaxRetries    int `mapstructure:"max_retries"`     // transient attempts before permanent_error
	StaleClaimAge int `mapstructure:"stale_claim_age"` // seconds before a processing claim is requeued
}

// ExecutorConfig holds settings for the portal submission executor.
type ExecutorConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// HTTPConfig holds settings for the operational HTTP surface.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// NotificationConfig holds settings for operator alerting on permanent failures.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		ToEmail   string `mapstructure:"to_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool   `mapstructure:"enabled"`
		ToPhone string `mapstructure:"to_phone"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
