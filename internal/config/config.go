package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port                string
	DBConn              string
	LogLevel            string
	RatesURL            string
	SMTPHost            string
	SMTPPort            string
	SMTPUsername        string
	SMTPPassword        string
	SenderEmail         string
	NotifyEmail         string
	ReminderCron        string
	RepairCron          string
	ReminderHorizonDays int
}

// NewConfig loads configuration from a .env file (if present) and
// environment variables
func NewConfig() (*Config, error) {
	// A missing .env is fine, plain environment variables still apply
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DBConn:       getEnv("DB_CONN", "host=localhost port=5432 user=finance password=finance dbname=finance sslmode=disable"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		RatesURL:     getEnv("RATES_URL", "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "finance-service@localhost"),
		NotifyEmail:  getEnv("NOTIFY_EMAIL", ""),
		ReminderCron: getEnv("REMINDER_CRON", "0 8 * * *"),
		RepairCron:   getEnv("REPAIR_CRON", "@hourly"),
	}

	horizon := getEnv("REMINDER_HORIZON_DAYS", "3")
	days, err := strconv.Atoi(horizon)
	if err != nil || days < 0 {
		return nil, fmt.Errorf("invalid REMINDER_HORIZON_DAYS: %q", horizon)
	}
	cfg.ReminderHorizonDays = days

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.RatesURL == "" {
		return nil, fmt.Errorf("RATES_URL is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
