package common

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flashbots/ppcalc/generator"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ValidateServer())
	require.NoError(t, cfg.Generator.Validate())
	require.False(t, cfg.HasPostgres())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ppcalc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
server:
  http_addr: ":7000"
  cors_origins: ["https://example.org"]
  drain_duration: 1s
analysis:
  workers: 4
  max_window_ms: 250
postgres:
  dsn: "postgres://localhost/ppcalc"
generator:
  sources: 7
  destination_selection: roundrobin
  network_delay: "normal:100:5"
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, ":7000", cfg.Server.HTTPAddr)
	require.Equal(t, []string{"https://example.org"}, cfg.Server.CORSOrigins)
	require.Equal(t, time.Second, cfg.Server.DrainDuration)
	require.Equal(t, 4, cfg.Analysis.Workers)
	require.True(t, cfg.HasPostgres())

	w, err := cfg.AnalysisWindow()
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, w.Max)

	// untouched values keep their defaults
	require.Equal(t, ":9090", cfg.Server.MetricsAddr)
	require.Equal(t, uint64(10), cfg.Generator.Destinations)

	require.Equal(t, uint64(7), cfg.Generator.Sources)
	require.Equal(t, generator.SelectRoundRobin, cfg.Generator.Selection)
	require.Equal(t, generator.Distribution{Kind: generator.Normal, A: 100, B: 5}, cfg.Generator.NetworkDelay)

	require.NoError(t, cfg.ValidateServer())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generator:\n  source_imd: \"poisson:1\"\n"), 0o600))
	_, err = LoadConfig(path)
	require.ErrorIs(t, err, generator.ErrInvalidDistribution)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"window", func(c *Config) { c.Analysis.MinWindowMs = 2000 }},
		{"workers", func(c *Config) { c.Analysis.Workers = -1 }},
		{"body limit", func(c *Config) { c.Analysis.MaxBodyBytes = 0 }},
		{"no addr", func(c *Config) { c.Server.HTTPAddr = "" }},
		{"same addr", func(c *Config) { c.Server.MetricsAddr = c.Server.HTTPAddr }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			require.Error(t, cfg.ValidateServer())
		})
	}
}

func TestPostgresPasswordFromEnv(t *testing.T) {
	t.Setenv("PPCALC_POSTGRES_PASSWORD", "hunter2")

	cfg := DefaultConfig()
	cfg.Postgres.Host = "db"
	require.Equal(t, "hunter2", cfg.PostgresStoreConfig().Password)
	require.Empty(t, cfg.Postgres.Password)

	cfg.Postgres.Password = "explicit"
	require.Equal(t, "explicit", cfg.PostgresStoreConfig().Password)
}

func TestSetupLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	log, err := SetupLogger(&buf, "warn", true)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", "k", 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "shown", line["msg"])
	require.Equal(t, "ppcalc", line["service"])

	_, err = SetupLogger(&buf, "verbose", false)
	require.Error(t, err)
}
