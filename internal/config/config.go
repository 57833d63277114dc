// Package config centralises environment configuration for the tracker daemon and the operator CLI.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration values.
type Config struct {
	// Model Health service access, shared by cmd/tracker and cmd/mhctl.
	APIKey              string
	BaseURL             string
	DownloadConcurrency int
	RequestTimeout      time.Duration

	// Tracker daemon.
	HTTPAddress     string
	PostgresURL     string // empty selects the in-memory ledger
	KafkaBrokers    []string
	Topic           string
	PollInterval    time.Duration
	BatchSize       int
	ShutdownTimeout time.Duration
	JWTSecret       string
	JWTIssuer       string
}

// Load reads environment variables into Config, applying defaults for local use.
func Load() Config {
	return Config{
		APIKey:              getEnv("MODELHEALTH_API_KEY", ""),
		BaseURL:             getEnv("MODELHEALTH_BASE_URL", "https://api.modelhealth.io"),
		DownloadConcurrency: getIntEnv("MODELHEALTH_DOWNLOAD_CONCURRENCY", 4),
		RequestTimeout:      getDurationEnv("MODELHEALTH_REQUEST_TIMEOUT", 60*time.Second),

		HTTPAddress:     getEnv("TRACKER_HTTP_ADDRESS", ":8080"),
		PostgresURL:     getEnv("TRACKER_POSTGRES_URL", ""),
		KafkaBrokers:    splitAndTrim(getEnv("TRACKER_KAFKA_BROKERS", "")),
		Topic:           getEnv("TRACKER_TOPIC", "modelhealth_job_events"),
		PollInterval:    getDurationEnv("TRACKER_POLL_INTERVAL", 5*time.Second),
		BatchSize:       getIntEnv("TRACKER_BATCH_SIZE", 25),
		ShutdownTimeout: getDurationEnv("TRACKER_SHUTDOWN_TIMEOUT", 15*time.Second),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:       getEnv("JWT_ISSUER", "modelhealth.tracker"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Unparseable values fall back to the default rather than failing startup.
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
