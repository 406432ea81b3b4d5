// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SchedulerConfig provides settings for background job scheduling.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// DirectoryConfig provides settings for the identity directory connection.
type DirectoryConfig interface {
	GetDirectoryBaseURL() string
	GetDirectoryAPIKey() string
	GetDirectoryFeedChannel() string
	GetSyncRetryDelay() time.Duration
	GetSyncRetryInterval() time.Duration
	GetSyncSnapshotInterval() time.Duration
}

// ReconcileConfig provides settings for the periodic store audit.
type ReconcileConfig interface {
	GetAuditInterval() time.Duration
	GetOpsReportEmail() string
}

// RotationConfig provides settings for round-robin agent selection.
type RotationConfig interface {
	// DegradeOnStoreError reports whether a store failure during selection
	// should be treated as "no eligible agents" instead of a hard error.
	DegradeOnStoreError() bool
}

// LeadDetailConfig provides the path of the per-source detail schema file.
type LeadDetailConfig interface {
	GetDetailSchemaPath() string
}

// WebhookConfig provides settings for the inbound webhook gateway.
type WebhookConfig interface {
	GetWebhookRatePerMinute() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowAll         bool
	CORSOrigins          []string
	EmailEnabled         bool
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	EmailFromName        string
	EmailFromAddress     string
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	DirectoryBaseURL     string
	DirectoryAPIKey      string
	DirectoryFeedChannel string
	SyncRetryDelay       time.Duration
	SyncRetryInterval    time.Duration
	SyncSnapshotInterval time.Duration
	AuditInterval        time.Duration
	OpsReportEmail       string
	RotationDegrade      bool
	DetailSchemaPath     string
	WebhookRatePerMin    int
}

// Load reads configuration from environment variables, loading .env first
// when present. Missing required values return an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		CORSAllowAll:         getEnvBool("CORS_ALLOW_ALL", false),
		CORSOrigins:          splitCSV(os.Getenv("CORS_ORIGINS")),
		EmailEnabled:         getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPPort:             getEnvInt("SMTP_PORT", 587),
		SMTPUsername:         os.Getenv("SMTP_USERNAME"),
		SMTPPassword:         os.Getenv("SMTP_PASSWORD"),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "Lead Router"),
		EmailFromAddress:     getEnv("EMAIL_FROM_ADDRESS", "noreply@localhost"),
		RedisURL:             os.Getenv("REDIS_URL"),
		RedisTLSInsecure:     getEnvBool("REDIS_TLS_INSECURE", false),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:     getEnvInt("ASYNQ_CONCURRENCY", 10),
		DirectoryBaseURL:     os.Getenv("DIRECTORY_BASE_URL"),
		DirectoryAPIKey:      os.Getenv("DIRECTORY_API_KEY"),
		DirectoryFeedChannel: getEnv("DIRECTORY_FEED_CHANNEL", "directory.events"),
		SyncRetryDelay:       getEnvDuration("SYNC_RETRY_DELAY", 5*time.Minute),
		SyncRetryInterval:    getEnvDuration("SYNC_RETRY_INTERVAL", time.Minute),
		SyncSnapshotInterval: getEnvDuration("SYNC_SNAPSHOT_INTERVAL", time.Hour),
		AuditInterval:        getEnvDuration("AUDIT_INTERVAL", 24*time.Hour),
		OpsReportEmail:       os.Getenv("OPS_REPORT_EMAIL"),
		RotationDegrade:      getEnvBool("ROTATION_DEGRADE_ON_STORE_ERROR", false),
		DetailSchemaPath:     getEnv("LEAD_DETAIL_SCHEMA_PATH", "config/detail_schemas.yaml"),
		WebhookRatePerMin:    getEnvInt("WEBHOOK_RATE_PER_MINUTE", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) GetDatabaseURL() string      { return c.DatabaseURL }
func (c *Config) GetHTTPAddr() string         { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool       { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string    { return c.CORSOrigins }
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool   { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string   { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int    { return c.AsynqConcurrency }
func (c *Config) GetDirectoryBaseURL() string { return c.DirectoryBaseURL }
func (c *Config) GetDirectoryAPIKey() string  { return c.DirectoryAPIKey }

func (c *Config) GetDirectoryFeedChannel() string     { return c.DirectoryFeedChannel }
func (c *Config) GetSyncRetryDelay() time.Duration    { return c.SyncRetryDelay }
func (c *Config) GetSyncRetryInterval() time.Duration { return c.SyncRetryInterval }

func (c *Config) GetSyncSnapshotInterval() time.Duration { return c.SyncSnapshotInterval }
func (c *Config) GetAuditInterval() time.Duration        { return c.AuditInterval }
func (c *Config) GetOpsReportEmail() string              { return c.OpsReportEmail }
func (c *Config) DegradeOnStoreError() bool           { return c.RotationDegrade }
func (c *Config) GetDetailSchemaPath() string         { return c.DetailSchemaPath }
func (c *Config) GetWebhookRatePerMinute() int        { return c.WebhookRatePerMin }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
