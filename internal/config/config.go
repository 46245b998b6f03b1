package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ims/internal/model"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Workflow  WorkflowConfig
	Notify    NotifyConfig
	Scheduler SchedulerConfig
	LogLevel  string
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port        string
	GinMode     string
	CORSOrigins []string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the postgres connection URL.
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// AuthConfig holds token signing options.
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// WorkflowConfig holds the approval chain, ordered from first to last stage.
type WorkflowConfig struct {
	ApprovalChain []string
}

// NotifyConfig holds the outbound webhook settings. An empty URL disables it.
type NotifyConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// SchedulerConfig holds the pending-approval reminder job settings.
type SchedulerConfig struct {
	ReminderCron  string
	ReminderAfter time.Duration
}

const devJWTSecret = "default_super_secret_key"

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	}

	accessTTL, err := getDuration("ACCESS_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	notifyTimeout, err := getDuration("NOTIFY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	reminderAfter, err := getDuration("REMINDER_AFTER", 48*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getenvWithDefault("PORT", "8080"),
			GinMode:     os.Getenv("GIN_MODE"),
			CORSOrigins: splitList(getenvWithDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		},
		Database: DatabaseConfig{
			Host:     getenvWithDefault("DB_HOST", "localhost"),
			Port:     getenvWithDefault("DB_PORT", "5432"),
			User:     getenvWithDefault("DB_USER", "postgres"),
			Password: getenvWithDefault("DB_PASSWORD", "postgres"),
			Name:     getenvWithDefault("DB_NAME", "ims"),
			SSLMode:  getenvWithDefault("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("JWT_SECRET"),
			AccessTokenTTL:  accessTTL,
			RefreshTokenTTL: refreshTTL,
		},
		Workflow: WorkflowConfig{
			ApprovalChain: splitList(getenvWithDefault("APPROVAL_CHAIN", "hod,principal,admin")),
		},
		Notify: NotifyConfig{
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
			Timeout:    notifyTimeout,
		},
		Scheduler: SchedulerConfig{
			ReminderCron:  getenvWithDefault("REMINDER_CRON", "@hourly"),
			ReminderAfter: reminderAfter,
		},
		LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("PORT must be provided")
	}

	if c.Auth.JWTSecret == "" {
		if c.Server.GinMode == "release" {
			return errors.New("JWT_SECRET is required in release mode")
		}
		// Development fallback only
		c.Auth.JWTSecret = devJWTSecret
	}

	if len(c.Workflow.ApprovalChain) == 0 {
		return errors.New("APPROVAL_CHAIN must list at least one role")
	}
	seen := make(map[string]bool, len(c.Workflow.ApprovalChain))
	for _, role := range c.Workflow.ApprovalChain {
		if !model.IsApproverRole(role) {
			return fmt.Errorf("APPROVAL_CHAIN: unsupported approver role %q", role)
		}
		if seen[role] {
			return fmt.Errorf("APPROVAL_CHAIN: role %q listed twice", role)
		}
		seen[role] = true
	}

	if c.Scheduler.ReminderCron == "" {
		return errors.New("REMINDER_CRON must not be empty")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
