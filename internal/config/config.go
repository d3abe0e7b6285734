package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default values for optional settings
const (
	DefaultDeliveryBatchLimit      = 20
	DefaultDeliveryIntervalMinutes = 5
	DefaultSweepIntervalMinutes    = 60
	DefaultTimeoutMinutes          = 1440
	DefaultNotificationStartHour   = 8
	DefaultNotificationEndHour     = 22
)

// Config collects every environment setting the application reads
type Config struct {
	// DBType is "sqlite" (default) or "postgres"
	DBType string
	// DatabaseURL is the postgres DSN or the sqlite file path
	DatabaseURL string

	TelegramToken string
	AdminUserIDs  []int64
	OpenAIKey     string

	// DeliveryBatchLimit caps how many reviews one tick claims
	DeliveryBatchLimit int
	// DeliveryIntervalMinutes is the delivery tick period
	DeliveryIntervalMinutes int
	// SweepIntervalMinutes is the timeout-sweep period
	SweepIntervalMinutes int
	// TimeoutMinutes is how long a sent reminder may go unanswered
	// before the sweep requeues it
	TimeoutMinutes int

	// Reminders are only delivered between these local hours
	NotificationStartHour int
	NotificationEndHour   int
}

// Load builds the configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DBType:                  getEnv("DB_TYPE", "sqlite"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		TelegramToken:           os.Getenv("TELEGRAM_BOT_TOKEN"),
		OpenAIKey:               os.Getenv("OPENAI_API_KEY"),
		DeliveryBatchLimit:      getEnvInt("DELIVERY_BATCH_LIMIT", DefaultDeliveryBatchLimit),
		DeliveryIntervalMinutes: getEnvInt("DELIVERY_INTERVAL_MINUTES", DefaultDeliveryIntervalMinutes),
		SweepIntervalMinutes:    getEnvInt("SWEEP_INTERVAL_MINUTES", DefaultSweepIntervalMinutes),
		TimeoutMinutes:          getEnvInt("TIMEOUT_MINUTES", DefaultTimeoutMinutes),
		NotificationStartHour:   getEnvInt("NOTIFICATION_START_HOUR", DefaultNotificationStartHour),
		NotificationEndHour:     getEnvInt("NOTIFICATION_END_HOUR", DefaultNotificationEndHour),
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	if cfg.DBType != "sqlite" && cfg.DBType != "postgres" {
		return nil, fmt.Errorf("unsupported DB_TYPE %q (expected sqlite or postgres)", cfg.DBType)
	}
	if cfg.DBType == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set when DB_TYPE=postgres")
	}

	for _, idStr := range strings.Split(os.Getenv("ADMIN_USER_IDS"), ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin user ID %q", idStr)
		}
		cfg.AdminUserIDs = append(cfg.AdminUserIDs, id)
	}

	return cfg, nil
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
