package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// RateLimitPerMinute caps generation submissions per client IP.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" validate:"required,gt=0"`
	RateLimitBurst     int `mapstructure:"rate_limit_burst" validate:"required,gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	// TokenLifetimeMinutes is the lifetime of access tokens minted by tokengen.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// TokenLifetime is the lifetime of issued access tokens.
func (c AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(c.TokenLifetimeMinutes) * time.Minute
}

// LLMConfig contains the settings of the model backends.
type LLMConfig struct {
	OpenRouterBaseURL string `mapstructure:"openrouter_base_url" validate:"required,url"`
	SiteURL           string `mapstructure:"site_url" validate:"required,url"`
	SiteTitle         string `mapstructure:"site_title" validate:"required"`
	// GeminiAPIKey enables the google-ai/ model family when set.
	GeminiAPIKey        string `mapstructure:"gemini_api_key"`
	MaxRetries          int    `mapstructure:"max_retries" validate:"gte=0,lte=5"`
	RetryDelaySeconds   int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
	ModelTimeoutSeconds int    `mapstructure:"model_timeout_seconds" validate:"required,gt=0"`
	CatalogTTLMinutes   int    `mapstructure:"catalog_ttl_minutes" validate:"required,gt=0"`
}

// ModelTimeout is the per-model call timeout.
func (c LLMConfig) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSeconds) * time.Second
}

// RetryDelay is the base delay between backend retries.
func (c LLMConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// CatalogTTL is how long the model catalog is cached.
func (c LLMConfig) CatalogTTL() time.Duration {
	return time.Duration(c.CatalogTTLMinutes) * time.Minute
}

// TaskConfig contains the settings of the background run queue.
type TaskConfig struct {
	// MaxConcurrent is the number of models of one generation called at once.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"required,gt=0"`
	QueueSize     int `mapstructure:"queue_size" validate:"required,gt=0"`
	RunnerCount   int `mapstructure:"runner_count" validate:"required,gt=0"`
}
