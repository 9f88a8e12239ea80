package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, StorageMemory, cfg.StorageMode)
	require.Equal(t, 168*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_MongoModeRequiresURI(t *testing.T) {
	t.Setenv("STORAGE_MODE", "mongo")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StorageMongo, cfg.StorageMode)
	require.Equal(t, "adboard", cfg.MongoDB)
}

func TestLoad_RejectsUnknownStorageMode(t *testing.T) {
	t.Setenv("STORAGE_MODE", "postgres")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_ParsesKafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "adboard-chat-notify", cfg.KafkaGroupID)
}

func TestLoad_ParsesRetryBackoff(t *testing.T) {
	t.Setenv("RETRY_BACKOFF", "250ms, 2s")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []time.Duration{250 * time.Millisecond, 2 * time.Second}, cfg.RetryBackoff)

	t.Setenv("RETRY_BACKOFF", "soon")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_RejectsMalformedDurations(t *testing.T) {
	t.Setenv("OUTBOX_POLL_INTERVAL", "fast")
	_, err := Load()
	require.Error(t, err)
}
