package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Mail providers understood by the worker transport factory.
const (
	ProviderLog      = "log"
	ProviderSES      = "ses"
	ProviderPostmark = "postmark"
	ProviderResend   = "resend"
)

type Config struct {
	Port     int    `envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Env      string `envconfig:"ENV" default:"development"`

	// Database
	DBHost     string `envconfig:"DB_HOST" default:"localhost" validate:"required"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postbox" validate:"required"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"postbox" validate:"required"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	// Redis config. When disabled the claim lease falls back to postgres
	// and the API runs without idempotency or rate limiting.
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Mail delivery
	MailProvider         string `envconfig:"MAIL_PROVIDER" default:"log" validate:"oneof=log ses postmark resend"`
	MailFrom             string `envconfig:"MAIL_FROM" default:"noreply@postbox.local" validate:"required,email"`
	AWSRegion            string `envconfig:"AWS_REGION" default:"us-east-1"`
	PostmarkServerToken  string `envconfig:"POSTMARK_SERVER_TOKEN" validate:"required_if=MailProvider postmark"`
	PostmarkAccountToken string `envconfig:"POSTMARK_ACCOUNT_TOKEN"`
	ResendAPIKey         string `envconfig:"RESEND_API_KEY" validate:"required_if=MailProvider resend"`

	// Fixed addresses
	TestRecipientEmail string `envconfig:"TEST_RECIPIENT_EMAIL" validate:"required,email"`
	OperatorInboxEmail string `envconfig:"OPERATOR_INBOX_EMAIL" validate:"required,email"`
	PublicURL          string `envconfig:"PUBLIC_URL" validate:"required,url"`

	// Account emails
	AppName          string `envconfig:"APP_NAME" default:"Postbox"`
	VerifyEmailURL   string `envconfig:"VERIFY_EMAIL_URL" validate:"omitempty,url"`
	ResetPasswordURL string `envconfig:"RESET_PASSWORD_URL" validate:"omitempty,url"`

	// Scheduling
	SweepInterval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"10s" validate:"gt=0"`
	SweepBatchSize   int           `envconfig:"SWEEP_BATCH_SIZE" default:"100" validate:"min=1"`
	ScheduleDelay    time.Duration `envconfig:"SCHEDULE_DELAY" default:"5m"`
	ClaimTTL         time.Duration `envconfig:"CLAIM_TTL" default:"2m" validate:"gt=0"`
	SuppressionMatch string        `envconfig:"SUPPRESSION_MATCH" default:"exact" validate:"oneof=exact substring"`

	// Transport circuit breaker
	BreakerMaxFailures int           `envconfig:"BREAKER_MAX_FAILURES" default:"5" validate:"min=1"`
	BreakerRecovery    time.Duration `envconfig:"BREAKER_RECOVERY" default:"30s"`

	// SQS delivery events, disabled when empty
	EventsQueueURL string `envconfig:"EVENTS_QUEUE_URL" validate:"omitempty,url"`

	// API rate limit per caller
	RateLimit       int           `envconfig:"RATE_LIMIT" default:"100" validate:"min=1"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// Load reads an optional .env file, then the process environment, and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// IsProduction reports whether the service runs with production logging.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
