package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"user-ingest/internal/apperrors"
	"user-ingest/internal/config"
)

func TestNewListenerFailsFastWithoutBrokerURL(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.URL = "postgres://nobody@127.0.0.1:1/none?sslmode=disable"
	cfg.RabbitMQ.Queue = "ingestion-topic-sub"
	cfg.Workers = 1

	l, err := NewListener(cfg, zaptest.NewLogger(t))
	require.Nil(t, l)
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
	require.Contains(t, err.Error(), "RABBITMQ_URL")
}

func TestNewAPIServerRequiresDatabaseURL(t *testing.T) {
	cfg := &config.Config{}
	cfg.HTTP.Port = 8080

	s, err := NewAPIServer(cfg, zaptest.NewLogger(t))
	require.Nil(t, s)
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestNewAPIServerStartsWithUnreachableStore(t *testing.T) {
	cfg := &config.Config{}
	cfg.HTTP.Port = 18080
	cfg.Database.URL = "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"
	cfg.Database.MaxOpenConns = 2

	s, err := NewAPIServer(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, ":18080", s.HTTPServer.Addr)
	require.Equal(t, 5*time.Second, s.HTTPServer.ReadHeaderTimeout)
	require.NoError(t, s.Storage.Close())
}
