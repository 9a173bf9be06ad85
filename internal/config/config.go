package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string
	Environment      string
	Database         DatabaseConfig
	Razorpay         RazorpayConfig
	OrderManager     OrderManagerConfig
	Reconcile        ReconcileConfig
	LogLevel         string
	InternalAPIToken string // INTERNAL_API_TOKEN: auth for POST /internal/* endpoints
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RazorpayConfig holds the webhook shared secret used to verify
// X-Razorpay-Signature on inbound events
type RazorpayConfig struct {
	WebhookSecret string
}

// OrderManagerConfig is used to call the external order-manager endpoint,
// the primary write path for captured payments
type OrderManagerConfig struct {
	URL     string // e.g. https://attral.in/api/order-manager; empty disables the primary path
	Timeout time.Duration
}

// ReconcileConfig controls the coupon usage reconciliation job
type ReconcileConfig struct {
	Interval time.Duration // how often the background loop runs
	PageSize int           // orders fetched per page during the scan
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "attral_orders"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Razorpay: RazorpayConfig{
			WebhookSecret: strings.TrimSpace(getEnvOrViper("RAZORPAY_WEBHOOK_SECRET", "")),
		},
		OrderManager: OrderManagerConfig{
			URL:     strings.TrimSpace(getEnvOrViper("ORDER_MANAGER_URL", "")),
			Timeout: getDuration("ORDER_MANAGER_TIMEOUT", 30*time.Second),
		},
		Reconcile: ReconcileConfig{
			Interval: getDuration("RECONCILE_INTERVAL", 24*time.Hour),
			PageSize: getInt("RECONCILE_PAGE_SIZE", 200),
		},
		LogLevel:         getEnvOrViper("LOG_LEVEL", "info"),
		InternalAPIToken: strings.TrimSpace(getEnvOrViper("INTERNAL_API_TOKEN", "")),
	}

	// Validate required fields
	if cfg.Razorpay.WebhookSecret == "" {
		return nil, fmt.Errorf("RAZORPAY_WEBHOOK_SECRET is required")
	}
	if cfg.Reconcile.PageSize <= 0 {
		return nil, fmt.Errorf("RECONCILE_PAGE_SIZE must be positive")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return defaultValue
	}
	return n
}
