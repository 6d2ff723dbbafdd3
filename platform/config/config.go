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

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetEnvironment() string
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSchedulerTimezone() string
}

// PollingConfig provides settings for the invitation polling worker.
type PollingConfig interface {
	GetPollSchedule() string
	GetPollTenantDelay() time.Duration
}

// UnipileConfig provides settings for the Unipile LinkedIn API.
type UnipileConfig interface {
	GetUnipileDSN() string
	GetUnipileToken() string
	GetUnipileLookupTimeout() time.Duration
	GetUnipileProfileTimeout() time.Duration
	IsUnipileEnabled() bool
}

// ApolloConfig provides settings for the Apollo lead source / enrichment API.
type ApolloConfig interface {
	GetApolloAPIKey() string
	GetApolloBaseURL() string
	IsApolloEnabled() bool
}

// VoiceConfig provides settings for the voice agent call provider.
type VoiceConfig interface {
	GetVoiceAPIKey() string
	GetVoiceBaseURL() string
	IsVoiceEnabled() bool
}

// EmailConfig provides settings for outbound campaign email.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// WhatsAppConfig provides settings for the WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// InstagramConfig provides settings for the Instagram DM gateway.
type InstagramConfig interface {
	GetInstagramURL() string
	GetInstagramToken() string
}

// SummarizerConfig provides settings for the profile summarizer.
type SummarizerConfig interface {
	GetGenAIAPIKey() string
	GetGenAIModel() string
	IsSummarizerEnabled() bool
}

// ReconnectConfig provides settings for provider account 401 recovery.
type ReconnectConfig interface {
	GetMaxReconnectAttempts() int
	GetReconnectAttemptWindow() time.Duration
}

// DispatchConfig provides pacing settings for the LinkedIn dispatcher.
type DispatchConfig interface {
	GetPostInviteQuiescence() time.Duration
}

// InternalConfig provides in-cluster fan-out settings.
type InternalConfig interface {
	GetBackendInternalURL() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	JWTAccessSecret        string
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	SchedulerTimezone      string
	PollSchedule           string
	PollTenantDelay        time.Duration
	UnipileDSN             string
	UnipileToken           string
	UnipileLookupTimeout   time.Duration
	UnipileProfileTimeout  time.Duration
	ApolloAPIKey           string
	ApolloBaseURL          string
	VoiceAPIKey            string
	VoiceBaseURL           string
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	EmailFromName          string
	EmailFromAddress       string
	WhatsAppURL            string
	WhatsAppKey            string
	WhatsAppDeviceID       string
	InstagramURL           string
	InstagramToken         string
	GenAIAPIKey            string
	GenAIModel             string
	MaxReconnectAttempts   int
	ReconnectAttemptWindow time.Duration
	PostInviteQuiescence   time.Duration
	BackendInternalURL     string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetEnvironment() string   { return c.Env }
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string          { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool    { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string    { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int     { return c.AsynqConcurrency }
func (c *Config) GetSchedulerTimezone() string { return c.SchedulerTimezone }

// PollingConfig implementation
func (c *Config) GetPollSchedule() string           { return c.PollSchedule }
func (c *Config) GetPollTenantDelay() time.Duration { return c.PollTenantDelay }

// UnipileConfig implementation
func (c *Config) GetUnipileDSN() string                   { return c.UnipileDSN }
func (c *Config) GetUnipileToken() string                 { return c.UnipileToken }
func (c *Config) GetUnipileLookupTimeout() time.Duration  { return c.UnipileLookupTimeout }
func (c *Config) GetUnipileProfileTimeout() time.Duration { return c.UnipileProfileTimeout }
func (c *Config) IsUnipileEnabled() bool                  { return c.UnipileDSN != "" && c.UnipileToken != "" }

// ApolloConfig implementation
func (c *Config) GetApolloAPIKey() string  { return c.ApolloAPIKey }
func (c *Config) GetApolloBaseURL() string { return c.ApolloBaseURL }
func (c *Config) IsApolloEnabled() bool    { return c.ApolloAPIKey != "" }

// VoiceConfig implementation
func (c *Config) GetVoiceAPIKey() string  { return c.VoiceAPIKey }
func (c *Config) GetVoiceBaseURL() string { return c.VoiceBaseURL }
func (c *Config) IsVoiceEnabled() bool    { return c.VoiceAPIKey != "" }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.SMTPHost != "" && c.EmailFromAddress != "" }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

// InstagramConfig implementation
func (c *Config) GetInstagramURL() string   { return c.InstagramURL }
func (c *Config) GetInstagramToken() string { return c.InstagramToken }

// SummarizerConfig implementation
func (c *Config) GetGenAIAPIKey() string    { return c.GenAIAPIKey }
func (c *Config) GetGenAIModel() string     { return c.GenAIModel }
func (c *Config) IsSummarizerEnabled() bool { return c.GenAIAPIKey != "" }

// ReconnectConfig implementation
func (c *Config) GetMaxReconnectAttempts() int             { return c.MaxReconnectAttempts }
func (c *Config) GetReconnectAttemptWindow() time.Duration { return c.ReconnectAttemptWindow }

// DispatchConfig implementation
func (c *Config) GetPostInviteQuiescence() time.Duration { return c.PostInviteQuiescence }

// InternalConfig implementation
func (c *Config) GetBackendInternalURL() string { return c.BackendInternalURL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "campaigns"),
		AsynqConcurrency:       mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:           corsAllowAll,
		CORSOrigins:            corsOrigins,
		CORSAllowCreds:         strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		SchedulerTimezone:      getEnv("TZ", "UTC"),
		PollSchedule:           getEnv("POLL_SCHEDULE", "0 6,12,18 * * *"),
		PollTenantDelay:        mustMillis(getEnv("POLL_TENANT_DELAY_MS", "2000")),
		UnipileDSN:             strings.TrimRight(getEnv("UNIPILE_DSN", ""), "/"),
		UnipileToken:           getEnv("UNIPILE_TOKEN", ""),
		UnipileLookupTimeout:   mustMillis(getEnv("UNIPILE_LOOKUP_TIMEOUT_MS", "15000")),
		UnipileProfileTimeout:  mustMillis(getEnv("UNIPILE_PROFILE_TIMEOUT_MS", "30000")),
		ApolloAPIKey:           getEnv("APOLLO_API_KEY", ""),
		ApolloBaseURL:          strings.TrimRight(getEnv("APOLLO_BASE_URL", "https://api.apollo.io/api/v1"), "/"),
		VoiceAPIKey:            getEnv("VAPI_API_KEY", ""),
		VoiceBaseURL:           strings.TrimRight(getEnv("VAPI_BASE_URL", "https://api.vapi.ai"), "/"),
		SMTPHost:               getEnv("SMTP_HOST", ""),
		SMTPPort:               mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:           getEnv("SMTP_USERNAME", ""),
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		EmailFromName:          getEnv("EMAIL_FROM_NAME", "Outreach"),
		EmailFromAddress:       getEnv("EMAIL_FROM_ADDRESS", ""),
		WhatsAppURL:            getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:            getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:       getEnv("WHATSAPP_DEVICE_ID", ""),
		InstagramURL:           getEnv("INSTAGRAM_URL", ""),
		InstagramToken:         getEnv("INSTAGRAM_TOKEN", ""),
		GenAIAPIKey:            getEnv("GENAI_API_KEY", ""),
		GenAIModel:             getEnv("GENAI_MODEL", "gemini-2.0-flash"),
		MaxReconnectAttempts:   mustInt(getEnv("MAX_RECONNECT_ATTEMPTS", "3")),
		ReconnectAttemptWindow: mustMillis(getEnv("RECONNECT_ATTEMPT_WINDOW_MS", "300000")),
		PostInviteQuiescence:   mustMillis(getEnv("POST_INVITE_QUIESCENCE_MS", "10000")),
		BackendInternalURL:     getEnv("BACKEND_INTERNAL_URL", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if _, err := time.LoadLocation(cfg.SchedulerTimezone); err != nil {
		return nil, fmt.Errorf("TZ %q is not a valid timezone", cfg.SchedulerTimezone)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustMillis(value string) time.Duration {
	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
