package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
postgres:
  url: postgres://localhost/signaldesk
analyzer:
  url: http://localhost:8000
`)
	c, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "BTC/USDT", c.Automation.Pair)
	require.Equal(t, 1, c.Automation.Timeframe)
	require.Equal(t, 5*time.Second, c.Automation.TickInterval)
	require.Equal(t, 90*time.Second, c.Windows.AdmitBefore)
	require.Equal(t, 60*time.Second, c.Windows.AdmitAfter)
	require.Equal(t, 180*time.Second, c.Windows.LookaheadAfter)
	require.Equal(t, 5, c.Price.MaxAttempts)
	require.InDelta(t, 1.5, c.Price.Factor, 1e-9)
	require.Equal(t, 24, c.Automation.MaxAttempts)
	require.Equal(t, 10, c.Redis.PoolSize)
	require.Equal(t, 10000, c.Redis.MemoryMaxSize)
	require.Equal(t, time.Minute, c.Redis.MemoryCleanup)
	require.False(t, c.Kafka.Producer.AutoCreate)
}

func TestLoadRejectsMissingDatabase(t *testing.T) {
	path := writeConfig(t, `
analyzer:
  url: http://localhost:8000
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "postgres.url")
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
postgres:
  url: postgres://localhost/signaldesk
analyzer:
  url: http://localhost:8000
`)
	t.Setenv("BROKER_API_KEY", "secret")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	require.Equal(t, "secret", c.Broker.APIKey)
	require.True(t, c.Redis.Enabled)
	require.Equal(t, "cache", c.Redis.Host)
	require.Equal(t, 6380, c.Redis.Port)
	require.True(t, c.Kafka.Enabled)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
}

func TestJournalBackendNeedsKafka(t *testing.T) {
	path := writeConfig(t, `
postgres:
  url: postgres://localhost/signaldesk
analyzer:
  url: http://localhost:8000
journal:
  enabled: true
  backend: both
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "requires kafka")

	path = writeConfig(t, `
postgres:
  url: postgres://localhost/signaldesk
analyzer:
  url: http://localhost:8000
journal:
  enabled: true
  backend: clickhouse
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "clickhouse", c.Journal.Backend)
}
