package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "UIBATTLES"

// keys lists every configuration key so that viper binds it to the environment
// even when no default or config file value exists.
var keys = []string{
	"server.port",
	"server.log_level",
	"server.rate_limit_per_minute",
	"server.rate_limit_burst",
	"database.url",
	"auth.jwt_secret",
	"auth.token_lifetime_minutes",
	"llm.openrouter_base_url",
	"llm.site_url",
	"llm.site_title",
	"llm.gemini_api_key",
	"llm.max_retries",
	"llm.retry_delay_seconds",
	"llm.model_timeout_seconds",
	"llm.catalog_ttl_minutes",
	"task.max_concurrent",
	"task.queue_size",
	"task.runner_count",
}

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is loaded first; variables already set
// in the process environment win over it. Environment variables take
// precedence over values from config.yaml.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.rate_limit_per_minute", 3)
	v.SetDefault("server.rate_limit_burst", 3)

	v.SetDefault("auth.token_lifetime_minutes", 1440)

	v.SetDefault("llm.openrouter_base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.site_url", "http://localhost:5173")
	v.SetDefault("llm.site_title", "UI Battles")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay_seconds", 1)
	v.SetDefault("llm.model_timeout_seconds", 120)
	v.SetDefault("llm.catalog_ttl_minutes", 60)

	v.SetDefault("task.max_concurrent", 3)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.runner_count", 4)
}
