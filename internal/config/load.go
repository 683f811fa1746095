package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "STORIES"

// defaults holds the value used for every key that has one. Keys without a
// default are bound to the environment explicitly in Load so that viper can
// unmarshal them from env vars alone.
var defaults = map[string]any{
	"server.port":            8080,
	"server.log_level":       "info",
	"server.public_base_url": "",

	"database.auto_migrate":   false,
	"database.max_open_conns": 10,

	"auth.token_lifetime_minutes":         60,
	"auth.refresh_token_lifetime_minutes": 10080,
	"auth.bcrypt_cost":                    10,

	"ai.provider":                "gemini",
	"ai.fallback_provider":       "",
	"ai.gemini_model":            "gemini-2.0-flash",
	"ai.openai_model":            "gpt-4o-mini",
	"ai.tts_model":               "tts-1",
	"ai.max_retries":             2,
	"ai.retry_delay_seconds":     1,
	"ai.request_timeout_seconds": 30,
	"ai.max_concurrent":          4,

	"redis.addr":     "localhost:6379",
	"redis.password": "",
	"redis.db":       0,

	"mail.host":      "",
	"mail.port":      587,
	"mail.username":  "",
	"mail.password":  "",
	"mail.from":      "noreply@1001stories.org",
	"mail.from_name": "1001 Stories",

	"cron.hard_delete_limit":          10,
	"cron.hard_delete_window_minutes": 60,

	"digest.trigger_hour":      8,
	"digest.weekly_day":        "monday",
	"digest.max_notifications": 20,

	"export.dir":                     "./exports",
	"export.expiry_days":             7,
	"export.rate_limit":              3,
	"export.process_timeout_minutes": 10,

	"retention.recovery_days":          30,
	"retention.read_notification_days": 180,
	"retention.stale_export_minutes":   30,

	"task.ai_review_workers":            2,
	"task.email_workers":                1,
	"task.poll_interval_seconds":        5,
	"task.stale_job_minutes":            30,
	"task.stale_check_interval_minutes": 5,
	"task.job_timeout_minutes":          5,
}

// requiredKeys have no default and must come from the environment or a file.
var requiredKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"ai.gemini_api_key",
	"ai.openai_api_key",
	"cron.secret",
}

// Load reads configuration from an optional config.yaml (working directory or
// ./config) and from STORIES_-prefixed environment variables, which take
// precedence. The result is validated before it is returned.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range requiredKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
