package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"MODELHEALTH_API_KEY", "MODELHEALTH_BASE_URL", "MODELHEALTH_DOWNLOAD_CONCURRENCY",
		"TRACKER_POSTGRES_URL", "TRACKER_KAFKA_BROKERS", "TRACKER_POLL_INTERVAL", "TRACKER_BATCH_SIZE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Empty(t, cfg.APIKey)
	require.Equal(t, "https://api.modelhealth.io", cfg.BaseURL)
	require.Equal(t, 4, cfg.DownloadConcurrency)
	require.Empty(t, cfg.PostgresURL)
	require.Empty(t, cfg.KafkaBrokers)
	require.Equal(t, "modelhealth_job_events", cfg.Topic)
	require.Equal(t, 5*time.Second, cfg.PollInterval)
	require.Equal(t, 25, cfg.BatchSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MODELHEALTH_API_KEY", "key-123")
	t.Setenv("MODELHEALTH_DOWNLOAD_CONCURRENCY", "8")
	t.Setenv("TRACKER_KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("TRACKER_POLL_INTERVAL", "750ms")
	t.Setenv("TRACKER_BATCH_SIZE", "100")

	cfg := Load()
	require.Equal(t, "key-123", cfg.APIKey)
	require.Equal(t, 8, cfg.DownloadConcurrency)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 750*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 100, cfg.BatchSize)
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("MODELHEALTH_DOWNLOAD_CONCURRENCY", "0")
	t.Setenv("TRACKER_POLL_INTERVAL", "soon")
	t.Setenv("TRACKER_BATCH_SIZE", "-3")

	cfg := Load()
	require.Equal(t, 4, cfg.DownloadConcurrency)
	require.Equal(t, 5*time.Second, cfg.PollInterval)
	require.Equal(t, 25, cfg.BatchSize)
}
