package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	LogLevel       string
	Environment    string
	Port           string
	PrometheusPort string

	DatabaseURL    string
	MigrationsPath string

	TickInterval time.Duration
	SinkWorkers  int
	SinkQueue    int

	JWTSecret   string
	CORSOrigins []string

	TelegramToken string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	SendGridAPIKey string
	EmailFrom      string

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	RollbarToken string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		Environment:      getEnvOrDefault("ENVIRONMENT", "development"),
		Port:             getEnvOrDefault("PORT", "8080"),
		PrometheusPort:   getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		MigrationsPath:   getEnvOrDefault("MIGRATIONS_PATH", "migrations"),
		TelegramToken:    os.Getenv("TELEGRAM_TOKEN"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM"),
		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:        getEnvOrDefault("EMAIL_FROM", "alerts@carecircle.local"),
		MQTTBroker:       os.Getenv("MQTT_BROKER"),
		MQTTClientID:     getEnvOrDefault("MQTT_CLIENT_ID", "carecircle"),
		MQTTTopicPrefix:  getEnvOrDefault("MQTT_TOPIC_PREFIX", "carecircle"),
		RollbarToken:     os.Getenv("ROLLBAR_TOKEN"),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	var err error
	if cfg.TickInterval, err = time.ParseDuration(getEnvOrDefault("TICK_INTERVAL", "1m")); err != nil {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL must be positive")
	}
	if cfg.SinkWorkers, err = getIntOrDefault("SINK_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.SinkQueue, err = getIntOrDefault("SINK_QUEUE", 256); err != nil {
		return nil, err
	}

	// Required environment variables
	if cfg.JWTSecret = os.Getenv("JWT_SECRET"); cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

// SMSEnabled returns true if every Twilio credential is set
func (c *Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, value)
	}
	return n, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
