package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application. It is built once at
// startup and passed into constructors; nothing mutates it afterwards.
type Config struct {
	Port        string
	DatabaseURL string
	Version     string
	LogLevel    string

	// AI generation
	AIWebhookURL string // external generation service; takes precedence over OpenAI
	AIAPIKey     string // bearer token for the webhook
	OpenAIKey    string // direct OpenAI provider when no webhook is configured
	AITimeout    time.Duration
	FallbackReply string // canned reply when generation fails

	// Browser automation
	SessionDir     string // persisted browser profile (login session)
	Headless       bool
	BrowserTimeout time.Duration

	// Workers
	ScrapeInterval time.Duration
	SendInterval   time.Duration
	MaxRetrySend   int
	RetryDelay     time.Duration
	RetentionDays  int // 0 disables the retention sweep

	// Notifications
	SlackWebhookURL string
	AdminWebhookURL string
	SendGridAPIKey  string
	AlertEmail      string

	// Backfill job launcher
	K8sNamespace  string
	BackfillImage string
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Version:     getEnv("VERSION", "1.0.0"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		AIWebhookURL: os.Getenv("AI_WEBHOOK_URL"),
		AIAPIKey:     os.Getenv("AI_API_KEY"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		AITimeout:    getEnvDuration("AI_TIMEOUT_SEC", 60),
		FallbackReply: getEnv("FALLBACK_REPLY",
			"Thank you for your message! I'll get back to you with a full answer shortly."),

		SessionDir:     getEnv("BROWSER_SESSION_DIR", "./session"),
		Headless:       getEnvBool("BROWSER_HEADLESS", true),
		BrowserTimeout: getEnvDuration("BROWSER_TIMEOUT_SEC", 60),

		ScrapeInterval: getEnvDuration("SCRAPE_INTERVAL_SEC", 45),
		SendInterval:   getEnvDuration("SEND_WORKER_INTERVAL_SEC", 15),
		MaxRetrySend:   getEnvInt("MAX_RETRY_SEND", 5),
		RetryDelay:     getEnvDuration("RETRY_DELAY_SEC", 60),
		RetentionDays:  getEnvInt("RETENTION_DAYS", 0),

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		AdminWebhookURL: os.Getenv("ADMIN_WEBHOOK_URL"),
		SendGridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
		AlertEmail:      os.Getenv("ALERT_EMAIL"),

		K8sNamespace:  getEnv("K8S_NAMESPACE", "cohost"),
		BackfillImage: os.Getenv("BACKFILL_IMAGE"),
	}
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as boolean with a default fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration reads a value in seconds and returns it as a duration
func getEnvDuration(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "cohost").
		Str("version", c.Version).
		Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	return logger
}
