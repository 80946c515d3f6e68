package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-ingest/internal/apperrors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DATABASE_URL", "RABBITMQ_URL", "RABBITMQ_QUEUE", "LISTENER_WORKERS",
		"JWT_SECRET", "LOG_LEVEL", "METRICS_PORT", "DB_MAX_OPEN_CONNS",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "ingestion-topic-sub", cfg.RabbitMQ.Queue)
	assert.Equal(t, 10, cfg.RabbitMQ.Prefetch)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.FormatJSON)
	assert.Empty(t, cfg.RabbitMQ.URL)
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://app:pw@db:5432/challenge_db")
	t.Setenv("RABBITMQ_URL", "amqp://guest:guest@mq:5672/")
	t.Setenv("LISTENER_WORKERS", "8")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "postgres://app:pw@db:5432/challenge_db", cfg.Database.URL)
	assert.Equal(t, "amqp://guest:guest@mq:5672/", cfg.RabbitMQ.URL)
	assert.Equal(t, 8, cfg.Workers)
	require.NoError(t, cfg.ValidateAPI())
	require.NoError(t, cfg.ValidateListener())
}

func TestLoadConfigFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 7000
database:
  url: postgres://file/db
rabbitmq:
  url: amqp://file/
  queue: from-file
workers: 2
`), 0o600))
	t.Setenv("RABBITMQ_QUEUE", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.HTTP.Port)
	assert.Equal(t, "postgres://file/db", cfg.Database.URL)
	assert.Equal(t, "from-env", cfg.RabbitMQ.Queue)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 10, cfg.RabbitMQ.Prefetch)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestValidateListenerRequiresBrokerURL(t *testing.T) {
	cfg := &Config{Workers: 1}
	cfg.Database.URL = "postgres://db"
	cfg.RabbitMQ.Queue = "q"

	err := cfg.ValidateListener()
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
	require.Contains(t, err.Error(), "RABBITMQ_URL")

	cfg.RabbitMQ.URL = "amqp://mq/"
	require.NoError(t, cfg.ValidateListener())

	cfg.Workers = 0
	require.ErrorIs(t, cfg.ValidateListener(), apperrors.ErrConfiguration)
}

func TestValidateAPI(t *testing.T) {
	cfg := &Config{}
	cfg.HTTP.Port = 8080
	require.ErrorIs(t, cfg.ValidateAPI(), apperrors.ErrConfiguration)

	cfg.Database.URL = "postgres://db"
	require.NoError(t, cfg.ValidateAPI())

	cfg.HTTP.Port = 70000
	require.ErrorIs(t, cfg.ValidateAPI(), apperrors.ErrConfiguration)
}

func TestDumpRedactsSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Database.URL = "postgres://admin:password123@db/challenge_db"
	cfg.RabbitMQ.URL = "amqp://user:hunter2@mq/"
	cfg.Auth.JWTSecret = "topsecret"

	out, err := cfg.Dump()
	require.NoError(t, err)

	assert.NotContains(t, out, "password123")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "topsecret")
	assert.Contains(t, out, redacted)
	// the original is untouched
	assert.Equal(t, "amqp://user:hunter2@mq/", cfg.RabbitMQ.URL)
}
