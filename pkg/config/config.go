package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Throttle are the per-sender pacing limits of the outbound scheduler.
type Throttle struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	MaxPerHour  int
	MaxPerDay   int
}

type Config struct {
	Port string

	NotionAPIKey  string
	NotionBaseURL string

	GmailClientID     string
	GmailClientSecret string

	Throttle Throttle

	// RecipientProperty is the queue column holding the recipient address;
	// databases with several address columns override the default "Email".
	RecipientProperty string

	// NaiveDateOffset interprets store datetimes written without a zone
	// suffix (the store may hold GMT+8 wall-clock times).
	NaiveDateOffset string

	OutreachConfigPath string

	// SMTP alert settings; alerting is disabled unless host and recipient
	// are both set.
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	AlertTo  string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "8080"),
		NotionAPIKey:      getEnv("NOTION_API_KEY", ""),
		NotionBaseURL:     getEnv("NOTION_BASE_URL", ""),
		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		Throttle:          loadThrottle(),
		RecipientProperty: getEnv("NOTION_QUEUE_RECIPIENT_PROPERTY", "Email"),
		NaiveDateOffset:   getEnv("PLANNED_SEND_AT_TZ", "+08:00"),

		OutreachConfigPath: getEnv("OUTREACH_CONFIG", "outreach.json"),

		SMTPHost: getEnv("ALERT_SMTP_HOST", ""),
		SMTPPort: getEnvInt("ALERT_SMTP_PORT", 465),
		SMTPUser: getEnv("ALERT_SMTP_USER", ""),
		SMTPPass: getEnv("ALERT_SMTP_PASS", ""),
		AlertTo:  getEnv("ALERT_TO", ""),
	}
}

// Validate reports missing credentials; these are fatal at process start.
func (c *Config) Validate() error {
	if c.NotionAPIKey == "" {
		return fmt.Errorf("NOTION_API_KEY is not set")
	}
	if c.GmailClientID == "" || c.GmailClientSecret == "" {
		return fmt.Errorf("GMAIL_CLIENT_ID or GMAIL_CLIENT_SECRET is not set")
	}
	return nil
}

func loadThrottle() Throttle {
	minInterval := time.Duration(getEnvInt("QUEUE_THROTTLE_MIN_INTERVAL_MS", 180000)) * time.Millisecond
	maxInterval := time.Duration(getEnvInt("QUEUE_THROTTLE_MAX_INTERVAL_MS", 300000)) * time.Millisecond
	if minInterval < 0 {
		minInterval = 0
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	maxPerHour := getEnvInt("QUEUE_THROTTLE_MAX_PER_HOUR", 10)
	if maxPerHour < 1 {
		maxPerHour = 1
	}
	maxPerDay := getEnvInt("QUEUE_THROTTLE_MAX_PER_DAY", 50)
	if maxPerDay < 1 {
		maxPerDay = 1
	}
	return Throttle{
		MinInterval: minInterval,
		MaxInterval: maxInterval,
		MaxPerHour:  maxPerHour,
		MaxPerDay:   maxPerDay,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
