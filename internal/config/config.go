package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	LogLevel string

	JWTSecret string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	QuickBooksClientID     string
	QuickBooksClientSecret string
	QuickBooksTokenURL     string
	QuickBooksAPIBaseURL   string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenURL     string
	GoogleAPIBaseURL   string

	ECBRatesURL string

	// Detection and notification policy. These are handed to the analysis
	// and reconciliation code as explicit parameters; nothing below the
	// handler layer reads the environment.
	MinConfidence    float64
	NotifyBeforeDays int
	SyncLookbackDays int
	BaseCurrency     string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	minConfidence, err := getEnvFloat("MIN_CONFIDENCE", 0.5)
	if err != nil {
		return nil, err
	}
	notifyBefore, err := getEnvInt("NOTIFY_BEFORE_DAYS", 14)
	if err != nil {
		return nil, err
	}
	lookback, err := getEnvInt("SYNC_LOOKBACK_DAYS", 30)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		DBConn:   getEnv("DB_CONN", "host=localhost port=5432 user=sprawl password=sprawl dbname=sprawl sslmode=disable"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "notifications@saas-sprawl.dev"),

		QuickBooksClientID:     getEnv("QUICKBOOKS_CLIENT_ID", ""),
		QuickBooksClientSecret: getEnv("QUICKBOOKS_CLIENT_SECRET", ""),
		QuickBooksTokenURL:     getEnv("QUICKBOOKS_TOKEN_URL", "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"),
		QuickBooksAPIBaseURL:   getEnv("QUICKBOOKS_API_BASE_URL", "https://quickbooks.api.intuit.com"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleTokenURL:     getEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		GoogleAPIBaseURL:   getEnv("GOOGLE_API_BASE_URL", "https://admin.googleapis.com"),

		ECBRatesURL: getEnv("ECB_RATES_URL", "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"),

		MinConfidence:    minConfidence,
		NotifyBeforeDays: notifyBefore,
		SyncLookbackDays: lookback,
		BaseCurrency:     getEnv("BASE_CURRENCY", "USD"),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvInt(key string, defaultVal int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
