package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPublicKeyPath  string
	JWTPrivateKeyPath string
	JWTExpiryDays     int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string

	// Issuance caps for the engine's fixed-window limiter.
	OTPIssuesPerHour     int
	ResetRequestsPerHour int

	JanitorInterval time.Duration
	NotifyQueueSize int

	ResetLinkBase  string // base URL embedded in reset emails
	AllowedOrigins []string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users          string
	Sessions       string
	Verifications  string
	PasswordResets string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:          getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:       getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Verifications:  getEnv("DYNAMO_TABLE_VERIFICATIONS", "verification_credentials"),
			PasswordResets: getEnv("DYNAMO_TABLE_PASSWORD_RESETS", "password_resets"),
		},

		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTExpiryDays:     getEnvInt("JWT_EXPIRY_DAYS", 7),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SNSRegion:    getEnv("SNS_REGION", "us-east-1"),

		OTPIssuesPerHour:     getEnvInt("OTP_ISSUES_PER_HOUR", 3),
		ResetRequestsPerHour: getEnvInt("RESET_REQUESTS_PER_HOUR", 3),

		JanitorInterval: time.Duration(getEnvInt("JANITOR_INTERVAL_MINUTES", 60)) * time.Minute,
		NotifyQueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 256),

		ResetLinkBase:  getEnv("RESET_LINK_BASE", "https://localhost/reset-password"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
