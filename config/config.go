package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// IsConfigured returns true if all required RabbitMQ configuration is present
func (c RabbitMQConfig) IsConfigured() bool {
	return c.URL != "" && c.Exchange != ""
}

type PresenceConfig struct {
	// HeartbeatInterval is the cadence supporter clients are expected to
	// heartbeat on.
	HeartbeatInterval time.Duration
	// StaleMultiplier: a presence row older than interval * multiplier is
	// read as offline.
	StaleMultiplier int
}

// StaleThreshold is the age past which a heartbeat no longer counts.
func (c PresenceConfig) StaleThreshold() time.Duration {
	return c.HeartbeatInterval * time.Duration(c.StaleMultiplier)
}

type AppConfig struct {
	// Core configuration (always required)
	DatabaseURL        string
	DatabaseSchema     string
	Port               string // Optional with default "8080"
	CORSAllowedOrigins string // Optional with default "*"
	Environment        string
	ServerLogsURL      string
	AlertWebhookURL    string
	UseStrictConfig    bool // If true, error when any integration is not fully configured

	PresenceConfig PresenceConfig
	RabbitMQConfig RabbitMQConfig
}

func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ Could not load .env file, continuing with system env vars")
	}

	// Core required configuration
	databaseURL, err := getEnvRequired("DB_URL")
	if err != nil {
		return nil, err
	}

	databaseSchema, err := getEnvRequired("DB_SCHEMA")
	if err != nil {
		return nil, err
	}

	heartbeatSeconds, err := getEnvIntWithDefault("PRESENCE_HEARTBEAT_INTERVAL_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	staleMultiplier, err := getEnvIntWithDefault("PRESENCE_STALE_MULTIPLIER", 4)
	if err != nil {
		return nil, err
	}

	config := &AppConfig{
		// Core configuration
		DatabaseURL:        databaseURL,
		DatabaseSchema:     databaseSchema,
		Port:               getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins: getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		Environment:        getEnvWithDefault("ENVIRONMENT", "dev"),
		ServerLogsURL:      getEnvWithDefault("SERVER_LOGS_URL", ""),
		AlertWebhookURL:    os.Getenv("ALERT_WEBHOOK_URL"),
		UseStrictConfig:    getEnvWithDefault("USE_STRICT_CONFIG", "true") == "true",

		PresenceConfig: PresenceConfig{
			HeartbeatInterval: time.Duration(heartbeatSeconds) * time.Second,
			StaleMultiplier:   staleMultiplier,
		},

		// RabbitMQ configuration (optional)
		RabbitMQConfig: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: getEnvWithDefault("RABBITMQ_EXCHANGE", "deskbackend.events"),
		},
	}

	if config.RabbitMQConfig.IsConfigured() {
		log.Printf("✅ RabbitMQ notifications configured")
	} else {
		log.Printf("⚠️ RabbitMQ not configured - assignment notifications will be logged only")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("RabbitMQ is not fully configured (USE_STRICT_CONFIG=true)")
		}
	}

	return config, nil
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if parsed < 1 {
		return 0, fmt.Errorf("%s must be >= 1, got %d", key, parsed)
	}
	return parsed, nil
}
