package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	DBUrl   string
	AppEnv  string
	BaseURL string

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	RatesAPIURL string
	RatesAPIKey string

	// Lifecycle knobs. The duplicate window and the stale threshold are
	// deliberately independent settings.
	DuplicateWindow time.Duration
	StaleThreshold  time.Duration
	RateTTL         time.Duration
	RateCooldown    time.Duration
	ReaperInterval  time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	stripeKey, exists := os.LookupEnv("STRIPE_SECRET_KEY")
	if !exists || stripeKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	webhookSecret, exists := os.LookupEnv("STRIPE_WEBHOOK_SECRET")
	if !exists || webhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}

	baseURL := strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/")

	return &Config{
		Port:                getEnv("PORT", "8080"),
		DBUrl:               getEnv("DB_URL", ""),
		AppEnv:              normalizeEnv(getEnv("APP_ENV", "production")),
		BaseURL:             baseURL,
		StripeSecretKey:     stripeKey,
		StripeWebhookSecret: webhookSecret,
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", baseURL+"/payment/success"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", baseURL+"/payment/cancelled"),
		RatesAPIURL:         getEnv("RATES_API_URL", "https://open.er-api.com/v6"),
		RatesAPIKey:         getEnv("RATES_API_KEY", ""),
		DuplicateWindow:     getEnvMinutes("BOOKING_DUPLICATE_WINDOW_MIN", 30),
		StaleThreshold:      getEnvHours("BOOKING_STALE_HOURS", 12),
		RateTTL:             getEnvHours("RATE_CACHE_TTL_HOURS", 12),
		RateCooldown:        getEnvMinutes("RATE_API_COOLDOWN_MIN", 30),
		ReaperInterval:      getEnvMinutes("BOOKING_REAPER_INTERVAL_MIN", 15),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvMinutes(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Minute
}

func getEnvHours(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Hour
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
