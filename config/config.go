package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration (scan feed)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration (realtime operator pushes)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Validation configuration
	ValidationTimeout time.Duration

	// Status synonym sets consumed by the state classifier
	UsedStatuses      []string
	CancelledStatuses []string
	ConfirmedStatuses []string

	// Scan feed configuration
	FeedSize int
	FeedTTL  time.Duration

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Validation
		ValidationTimeout: getEnvAsDuration("VALIDATION_TIMEOUT", "10s"),

		// Status synonyms
		UsedStatuses:      getEnvAsSlice("USED_STATUSES", "utilizado,used,usado,check-in,checkin"),
		CancelledStatuses: getEnvAsSlice("CANCELLED_STATUSES", "cancelado,cancelled,cancel"),
		ConfirmedStatuses: getEnvAsSlice("CONFIRMED_STATUSES", "confirmado,pago,paid,ativo,active,valid,válido,aprovado,approved"),

		// Scan feed
		FeedSize: getEnvAsInt("FEED_SIZE", 100),
		FeedTTL:  getEnvAsDuration("FEED_TTL", "24h"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsSlice(key string, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
