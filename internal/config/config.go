package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort     string
	AppEnv      string
	AppName     string // display name used in sign-in emails
	ServiceName string // identity reported on GET /
	LogJSON     bool

	OpenAIAPIKey           string
	OpenAIURL              string
	DefaultModel           string
	UpstreamConnectTimeout time.Duration
	UpstreamTimeout        time.Duration

	SMTPHost     string // empty means codes are logged instead of mailed
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	MailFailOpen bool

	CodeTTL  time.Duration
	TokenTTL time.Duration

	StoreBackend   string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	PendingCodes string
	Sessions     string
}

// MailConfigured reports whether outbound SMTP delivery is available.
func (c *Config) MailConfigured() bool {
	return c.SMTPHost != ""
}

// Load reads all configuration from environment variables.
func Load() *Config {
	appEnv := getEnv("APP_ENV", "development")
	return &Config{
		AppPort:     getEnv("APP_PORT", "3000"),
		AppEnv:      appEnv,
		AppName:     getEnv("APP_NAME", "MacTrac"),
		ServiceName: getEnv("SERVICE_NAME", "mactrac"),
		LogJSON:     getEnvBool("LOG_JSON", appEnv != "development"),

		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		OpenAIURL:              getEnv("OPENAI_URL", "https://api.openai.com/v1/chat/completions"),
		DefaultModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		UpstreamConnectTimeout: getEnvDuration("UPSTREAM_CONNECT_TIMEOUT", 15*time.Second),
		UpstreamTimeout:        getEnvDuration("UPSTREAM_TIMEOUT", 60*time.Second),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPFrom:     getEnv("SMTP_FROM", getEnv("SENDER_EMAIL", "no-reply@mactrac.app")),
		SMTPUsername: getEnv("SMTP_USERNAME", getEnv("SMTP_USER", "")),
		SMTPPassword: getEnv("SMTP_PASSWORD", getEnv("SMTP_PASS", "")),
		MailFailOpen: getEnvBool("MAIL_FAIL_OPEN", false),

		CodeTTL:  getEnvDuration("CODE_TTL", 10*time.Minute),
		TokenTTL: getEnvDuration("TOKEN_TTL", 30*24*time.Hour),

		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			PendingCodes: getEnv("DYNAMO_TABLE_PENDING_CODES", "pending_codes"),
			Sessions:     getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
		},

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "10m") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
