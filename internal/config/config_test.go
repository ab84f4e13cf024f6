package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecraft/wal"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.WAL.Enabled)
	assert.Equal(t, "data/wal.log", cfg.WAL.Path)
	assert.False(t, cfg.Metrics.Enabled)

	d, err := cfg.WALDurability()
	require.NoError(t, err)
	assert.Equal(t, wal.DurabilitySync, d)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vecraft.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: 0.0.0.0:6000
log:
  level: debug
  format: json
wal:
  path: /var/lib/vecraft/wal.log
  durability: async
metrics:
  enabled: true
query:
  timeout: 250ms
  max_concurrent: 8
  queries_per_second: 100
  burst: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:6000", cfg.ListenAddr)
	assert.Equal(t, "/var/lib/vecraft/wal.log", cfg.WAL.Path)
	assert.True(t, cfg.WAL.Enabled, "unset fields keep defaults")
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Query.Timeout)
	assert.Equal(t, int64(8), cfg.Query.MaxConcurrent)
	assert.Equal(t, 100.0, cfg.Query.QueriesPerSecond)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	d, err := cfg.WALDurability()
	require.NoError(t, err)
	assert.Equal(t, wal.DurabilityAsync, d)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for name, body := range map[string]string{
		"durability": "wal:\n  durability: sometimes\n",
		"log format": "log:\n  format: xml\n",
		"log level":  "log:\n  level: loud\n",
		"empty path": "wal:\n  path: \"\"\n",
		"negative":   "query:\n  timeout: -1s\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "vecraft.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		EnvListenAddr:     ":7000",
		EnvEnableWAL:      "off",
		EnvWALPath:        "/tmp/x.log",
		EnvMetricsEnabled: "YES",
		EnvMetricsAddr:    ":9100",
		EnvLogLevel:       "warn",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.False(t, cfg.WAL.Enabled)
	assert.Equal(t, "/tmp/x.log", cfg.WAL.Path)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)

	err = Default().ApplyEnv(env(map[string]string{EnvEnableWAL: "maybe"}))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// Empty values leave the field alone.
	cfg = Default()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{EnvWALPath: ""})))
	assert.Equal(t, "data/wal.log", cfg.WAL.Path)
}

func TestLoadAppliesEnv(t *testing.T) {
	t.Setenv(EnvEnableWAL, "0")
	t.Setenv(EnvListenAddr, "127.0.0.1:7001")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.WAL.Enabled)
	assert.Equal(t, "127.0.0.1:7001", cfg.ListenAddr)
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "TRUE", " yes ", "on", "On"} {
		b, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.True(t, b, s)
	}
	for _, s := range []string{"0", "false", "No", "off"} {
		b, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.False(t, b, s)
	}
	_, err := ParseBool("enabled")
	assert.Error(t, err)
}
