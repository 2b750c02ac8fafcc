package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Database configuration
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string

	APIPort     int
	LogLevel    string
	LogFile     string
	TenantsFile string

	Provider ProviderConfig
	Report   ReportConfig
	Schedule ScheduleConfig
	Sink     SinkConfig
	Webhook  WebhookConfig
}

// ProviderConfig holds marketplace API endpoints and request pacing
type ProviderConfig struct {
	FunnelURL        string
	FunnelLegacyURL  string
	RegionSaleURL    string
	FinanceReportURL string

	RequestAttempts int
	RequestTimeout  time.Duration
	RequestWait     time.Duration
	RequestsPerMin  int // 0 disables the client-side limiter

	PageLimit int
	MaxPages  int
	PageDelay time.Duration

	FinanceAttempts int
	FinanceWait     time.Duration
}

// ReportConfig holds sales-stats report parameters
type ReportConfig struct {
	LookbackDays  int
	RetentionDays int // snapshot retention, independent of LookbackDays
}

// ScheduleConfig holds the daily trigger time
type ScheduleConfig struct {
	Enabled  bool
	Hour     int
	Minute   int
	Timezone string
}

// SinkConfig holds output settings
type SinkConfig struct {
	OutputDir string
	Attempts  int
	Wait      time.Duration
}

// WebhookConfig holds outbound run notifications. Empty URLs disables them.
type WebhookConfig struct {
	URLs       string // comma-separated
	Events     string // comma-separated filter, empty means all
	AuthHeader string
	AuthValue  string
	Retries    int
	RetryDelay time.Duration
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		DatabaseDriver: getEnvOrDefault("DB_DRIVER", "sqlite"),
		DatabaseDSN:    getEnvOrDefault("DATABASE_DSN", "data/stocks.db"),

		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		APIPort:     getEnvInt("API_PORT", 8080),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:     getEnvOrDefault("LOG_FILE", "logger.log"),
		TenantsFile: getEnvOrDefault("TENANTS_FILE", "tenants.yaml"),

		Provider: ProviderConfig{
			FunnelURL:        getEnvOrDefault("WB_FUNNEL_URL", "https://seller-analytics-api.wildberries.ru/api/analytics/v3/sales-funnel/products"),
			FunnelLegacyURL:  getEnvOrDefault("WB_FUNNEL_LEGACY_URL", "https://seller-analytics-api.wildberries.ru/api/v2/nm-report/detail"),
			RegionSaleURL:    getEnvOrDefault("WB_REGION_SALE_URL", "https://seller-analytics-api.wildberries.ru/api/v1/analytics/region-sale"),
			FinanceReportURL: getEnvOrDefault("WB_FINANCE_REPORT_URL", "https://statistics-api.wildberries.ru/api/v5/supplier/reportDetailByPeriod"),

			RequestAttempts: getEnvInt("REQUEST_ATTEMPTS", 3),
			RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 5*time.Second),
			RequestWait:     getEnvDuration("REQUEST_WAIT", 5*time.Second),
			RequestsPerMin:  getEnvInt("REQUEST_RPM", 0),

			PageLimit: getEnvInt("PAGE_LIMIT", 1000),
			MaxPages:  getEnvInt("MAX_PAGES", 30),
			PageDelay: getEnvDuration("PAGE_DELAY", 20*time.Second),

			FinanceAttempts: getEnvInt("FIN_REPORT_ATTEMPTS", 2),
			FinanceWait:     getEnvDuration("FIN_REPORT_WAIT", 30*time.Second),
		},

		Report: ReportConfig{
			LookbackDays:  getEnvInt("LOOKBACK_DAYS", 10),
			RetentionDays: getEnvInt("SNAPSHOT_RETENTION_DAYS", 20),
		},

		Schedule: ScheduleConfig{
			Enabled:  getEnvOrDefault("SCHEDULE_ENABLED", "true") == "true",
			Hour:     getEnvInt("SCHEDULE_HOUR", 6),
			Minute:   getEnvInt("SCHEDULE_MINUTE", 0),
			Timezone: getEnvOrDefault("SCHEDULE_TZ", "Europe/Moscow"),
		},

		Sink: SinkConfig{
			OutputDir: getEnvOrDefault("OUTPUT_DIR", "reports"),
			Attempts:  getEnvInt("SINK_ATTEMPTS", 3),
			Wait:      getEnvDuration("SINK_WAIT", 5*time.Second),
		},

		Webhook: WebhookConfig{
			URLs:       getEnvOrDefault("WEBHOOK_URLS", ""),
			Events:     getEnvOrDefault("WEBHOOK_EVENTS", "run.finished,run.failed"),
			AuthHeader: getEnvOrDefault("WEBHOOK_AUTH_HEADER", "Authorization"),
			AuthValue:  getEnvOrDefault("WEBHOOK_AUTH_VALUE", ""),
			Retries:    getEnvInt("WEBHOOK_RETRIES", 3),
			RetryDelay: getEnvDuration("WEBHOOK_RETRY_DELAY", 5*time.Second),
		},
	}
}

// Validate checks values that would make a run meaningless
func (c *Config) Validate() error {
	if c.Report.LookbackDays <= 0 {
		return fmt.Errorf("LOOKBACK_DAYS must be positive, got %d", c.Report.LookbackDays)
	}
	if c.Report.RetentionDays < c.Report.LookbackDays {
		return fmt.Errorf("SNAPSHOT_RETENTION_DAYS (%d) must cover LOOKBACK_DAYS (%d)", c.Report.RetentionDays, c.Report.LookbackDays)
	}
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 || c.Schedule.Minute < 0 || c.Schedule.Minute > 59 {
		return fmt.Errorf("invalid schedule time %02d:%02d", c.Schedule.Hour, c.Schedule.Minute)
	}
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DatabaseDriver)
	}
	return nil
}

// RedisAddr returns host:port of the Redis server
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvDuration parses values like "20s" or "1m30s"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
