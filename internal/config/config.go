package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	AI        AIConfig        `mapstructure:"ai" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis" validate:"required"`
	Mail      MailConfig      `mapstructure:"mail"`
	Cron      CronConfig      `mapstructure:"cron" validate:"required"`
	Digest    DigestConfig    `mapstructure:"digest"`
	Export    ExportConfig    `mapstructure:"export"`
	Retention RetentionConfig `mapstructure:"retention"`
	Task      TaskConfig      `mapstructure:"task"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port          int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel      string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"omitempty,url"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"gt=0"`
	BCryptCost                  int    `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// AIConfig configures the text and speech providers behind the AI adapter.
type AIConfig struct {
	Provider              string `mapstructure:"provider" validate:"required,oneof=gemini openai"`
	FallbackProvider      string `mapstructure:"fallback_provider" validate:"omitempty,oneof=gemini openai,nefield=Provider"`
	GeminiAPIKey          string `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	GeminiModel           string `mapstructure:"gemini_model" validate:"required"`
	OpenAIAPIKey          string `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	OpenAIModel           string `mapstructure:"openai_model" validate:"required"`
	TTSModel              string `mapstructure:"tts_model" validate:"required"`
	MaxRetries            int    `mapstructure:"max_retries" validate:"gte=0,lte=5"`
	RetryDelaySeconds     int    `mapstructure:"retry_delay_seconds" validate:"gte=1"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"gt=0"`
	MaxConcurrent         int    `mapstructure:"max_concurrent" validate:"gte=0"`
}

// RedisConfig points at the Redis instance used for locks and rate limits.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// MailConfig configures outbound SMTP. An empty host disables email delivery.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gt=0,lt=65536"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"required,email"`
	FromName string `mapstructure:"from_name"`
}

// CronConfig secures and throttles the externally triggered batch endpoints.
type CronConfig struct {
	Secret                  string `mapstructure:"secret" validate:"required,min=16"`
	HardDeleteLimit         int    `mapstructure:"hard_delete_limit" validate:"gt=0"`
	HardDeleteWindowMinutes int    `mapstructure:"hard_delete_window_minutes" validate:"gt=0"`
}

// DigestConfig sets when digests are considered due.
type DigestConfig struct {
	TriggerHour      int    `mapstructure:"trigger_hour" validate:"gte=0,lte=23"`
	WeeklyDay        string `mapstructure:"weekly_day" validate:"oneof=sunday monday tuesday wednesday thursday friday saturday"`
	MaxNotifications int    `mapstructure:"max_notifications" validate:"gt=0"`
}

// ExportConfig configures personal data export archives.
type ExportConfig struct {
	Dir                   string `mapstructure:"dir" validate:"required"`
	ExpiryDays            int    `mapstructure:"expiry_days" validate:"gt=0"`
	RateLimit             int    `mapstructure:"rate_limit" validate:"gt=0"`
	ProcessTimeoutMinutes int    `mapstructure:"process_timeout_minutes" validate:"gt=0"`
}

// RetentionConfig sets grace periods for data retention.
type RetentionConfig struct {
	RecoveryDays         int `mapstructure:"recovery_days" validate:"gt=0"`
	ReadNotificationDays int `mapstructure:"read_notification_days" validate:"gt=0"`

	// StaleExportMinutes is how long an export may stay PENDING or
	// PROCESSING before retention marks it FAILED.
	StaleExportMinutes int `mapstructure:"stale_export_minutes" validate:"gte=0"`
}

// TaskConfig sizes the background job workers.
type TaskConfig struct {
	AIReviewWorkers           int `mapstructure:"ai_review_workers" validate:"gt=0"`
	EmailWorkers              int `mapstructure:"email_workers" validate:"gt=0"`
	PollIntervalSeconds       int `mapstructure:"poll_interval_seconds" validate:"gt=0"`
	StaleJobMinutes           int `mapstructure:"stale_job_minutes" validate:"gt=0"`
	StaleCheckIntervalMinutes int `mapstructure:"stale_check_interval_minutes" validate:"gt=0"`
	JobTimeoutMinutes         int `mapstructure:"job_timeout_minutes" validate:"gt=0"`
}
