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
	GetRunMigrations() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// CredentialDefaults provides the platform-wide fallback credentials that a
// tenant's stored configuration may override.
type CredentialDefaults interface {
	GetOpenAIAPIKey() string
	GetManyChatAPIKey() string
}

// ChatConfig provides settings for the chat-completion provider.
type ChatConfig interface {
	GetOpenAIBaseURL() string
	GetChatModel() string
}

// ManyChatConfig provides settings for the subscriber messaging platform.
type ManyChatConfig interface {
	GetManyChatBaseURL() string
	GetManyChatQualifiedTagID() int64
	GetOutboundHTTPTimeout() time.Duration
}

// ScraperConfig provides settings for the DataPrism profile scraper.
type ScraperConfig interface {
	GetDataPrismAPIKey() string
	GetDataPrismURL() string
	GetScrapePostCount() int
	GetOutboundHTTPTimeout() time.Duration
}

// MemoryConfig provides settings for the conversation memory store.
type MemoryConfig interface {
	GetMemoryBackend() string
	GetZepAPIKey() string
	GetZepBaseURL() string
	GetRedisURL() string
	GetOutboundHTTPTimeout() time.Duration
}

// WebhookConfig provides settings for the inbound webhook.
type WebhookConfig interface {
	GetWebhookMode() string
	GetWebhookRateLimitPerMinute() int
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketProfileSnapshots() string
	IsMinIOEnabled() bool
}

const (
	// WebhookModeAsync acknowledges immediately and processes in the background.
	WebhookModeAsync = "async"
	// WebhookModeSync processes every phase before responding.
	WebhookModeSync = "sync"

	// MemoryBackendZep stores conversation threads in Zep Cloud.
	MemoryBackendZep = "zep"
	// MemoryBackendRedis stores conversation threads in Redis lists.
	MemoryBackendRedis = "redis"
)

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                         string
	HTTPAddr                    string
	DatabaseURL                 string
	RunMigrations               bool
	CORSAllowAll                bool
	CORSOrigins                 []string
	OpenAIAPIKey                string
	OpenAIBaseURL               string
	ChatModel                   string
	ManyChatAPIKey              string
	ManyChatBaseURL             string
	ManyChatQualifiedTagID      int64
	DataPrismAPIKey             string
	DataPrismURL                string
	ScrapePostCount             int
	MemoryBackend               string
	ZepAPIKey                   string
	ZepBaseURL                  string
	RedisURL                    string
	OutboundHTTPTimeout         time.Duration
	WebhookMode                 string
	WebhookRateLimitPerMinute   int
	MinIOEndpoint               string
	MinIOAccessKey              string
	MinIOSecretKey              string
	MinIOUseSSL                 bool
	MinioBucketProfileSnapshots string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }
func (c *Config) GetRunMigrations() bool { return c.RunMigrations }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// CredentialDefaults implementation
func (c *Config) GetOpenAIAPIKey() string   { return c.OpenAIAPIKey }
func (c *Config) GetManyChatAPIKey() string { return c.ManyChatAPIKey }

// ChatConfig implementation
func (c *Config) GetOpenAIBaseURL() string { return c.OpenAIBaseURL }
func (c *Config) GetChatModel() string     { return c.ChatModel }

// ManyChatConfig implementation
func (c *Config) GetManyChatBaseURL() string            { return c.ManyChatBaseURL }
func (c *Config) GetManyChatQualifiedTagID() int64      { return c.ManyChatQualifiedTagID }
func (c *Config) GetOutboundHTTPTimeout() time.Duration { return c.OutboundHTTPTimeout }

// ScraperConfig implementation
func (c *Config) GetDataPrismAPIKey() string { return c.DataPrismAPIKey }
func (c *Config) GetDataPrismURL() string    { return c.DataPrismURL }
func (c *Config) GetScrapePostCount() int    { return c.ScrapePostCount }

// MemoryConfig implementation
func (c *Config) GetMemoryBackend() string { return c.MemoryBackend }
func (c *Config) GetZepAPIKey() string     { return c.ZepAPIKey }
func (c *Config) GetZepBaseURL() string    { return c.ZepBaseURL }
func (c *Config) GetRedisURL() string      { return c.RedisURL }

// WebhookConfig implementation
func (c *Config) GetWebhookMode() string            { return c.WebhookMode }
func (c *Config) GetWebhookRateLimitPerMinute() int { return c.WebhookRateLimitPerMinute }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketProfileSnapshots() string {
	return c.MinioBucketProfileSnapshots
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "*"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                         getEnv("APP_ENV", "development"),
		HTTPAddr:                    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                 getEnv("DATABASE_URL", ""),
		RunMigrations:               strings.EqualFold(getEnv("RUN_MIGRATIONS", "true"), "true"),
		CORSAllowAll:                corsAllowAll,
		CORSOrigins:                 corsOrigins,
		OpenAIAPIKey:                getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:               getEnv("OPENAI_BASE_URL", ""),
		ChatModel:                   getEnv("CHAT_MODEL", "gpt-4"),
		ManyChatAPIKey:              getEnv("MANYCHAT_API_KEY", ""),
		ManyChatBaseURL:             getEnv("MANYCHAT_BASE_URL", "https://api.manychat.com/fb"),
		ManyChatQualifiedTagID:      mustInt64(getEnv("MANYCHAT_QUALIFIED_TAG_ID", "0")),
		DataPrismAPIKey:             getEnv("DATAPRISM_API_KEY", ""),
		DataPrismURL:                getEnv("DATAPRISM_URL", "https://platform.dataprism.dev/api/v1/tools/instagram/scrape"),
		ScrapePostCount:             int(mustInt64(getEnv("SCRAPE_POST_COUNT", "3"))),
		MemoryBackend:               strings.ToLower(getEnv("MEMORY_BACKEND", MemoryBackendZep)),
		ZepAPIKey:                   getEnv("ZEP_API_KEY", ""),
		ZepBaseURL:                  getEnv("ZEP_BASE_URL", "https://api.getzep.com/api/v2"),
		RedisURL:                    getEnv("REDIS_URL", ""),
		OutboundHTTPTimeout:         mustDuration(getEnv("OUTBOUND_HTTP_TIMEOUT", "60s")),
		WebhookMode:                 strings.ToLower(getEnv("WEBHOOK_MODE", WebhookModeAsync)),
		WebhookRateLimitPerMinute:   int(mustInt64(getEnv("WEBHOOK_RATE_LIMIT_PER_MINUTE", "0"))),
		MinIOEndpoint:               getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:              getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:              getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                 strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketProfileSnapshots: getEnv("MINIO_BUCKET_PROFILE_SNAPSHOTS", "profile-snapshots"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WebhookMode != WebhookModeAsync && cfg.WebhookMode != WebhookModeSync {
		return nil, fmt.Errorf("WEBHOOK_MODE must be %q or %q, got %q", WebhookModeAsync, WebhookModeSync, cfg.WebhookMode)
	}
	switch cfg.MemoryBackend {
	case MemoryBackendZep:
	case MemoryBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when MEMORY_BACKEND is redis")
		}
	default:
		return nil, fmt.Errorf("MEMORY_BACKEND must be %q or %q, got %q", MemoryBackendZep, MemoryBackendRedis, cfg.MemoryBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
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
