package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, TransportNATS, cfg.Transport)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "ORDERS", cfg.NATS.Stream)
	assert.Equal(t, "orders.events.lifecycle", cfg.NATS.Subject)

	assert.Equal(t, 10, cfg.Consumers.BatchSize)
	assert.Equal(t, 20*time.Second, cfg.Consumers.WaitTime)
	assert.Equal(t, 100*time.Millisecond, cfg.Consumers.PollDelay)
	assert.Equal(t, 30*time.Second, cfg.Consumers.VisibilityWindow)
	assert.Equal(t, 5, cfg.Consumers.MaxDeliver)

	assert.Equal(t, "memory", cfg.OrderStore.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Notify.DedupeTTL)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9190, cfg.Metrics.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordermesh.yaml")
	content := `
transport: memory
nats:
  url: nats://broker:4222
consumers:
  batch_size: 5
  visibility_window: 45s
order_store:
  backend: postgres
  database_url: postgres://localhost/orders
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, TransportMemory, cfg.Transport)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, 5, cfg.Consumers.BatchSize)
	assert.Equal(t, 45*time.Second, cfg.Consumers.VisibilityWindow)
	assert.Equal(t, "postgres", cfg.OrderStore.Backend)
	assert.Equal(t, "postgres://localhost/orders", cfg.OrderStore.DatabaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, "ORDERS", cfg.NATS.Stream)
	assert.Equal(t, 20*time.Second, cfg.Consumers.WaitTime)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ORDERMESH_NATS_URL", "nats://env-host:4222")
	t.Setenv("ORDERMESH_TRANSPORT", "memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "nats://env-host:4222", cfg.NATS.URL)
	assert.Equal(t, TransportMemory, cfg.Transport)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordermesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordermesh.yaml")

	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	assert.Error(t, WriteDefault(path), "must not overwrite an existing file")
}
