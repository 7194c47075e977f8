package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("txreplay", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogEncoding)
	assert.Equal(t, 1, cfg.Replay.Workers)
	assert.Equal(t, 1024, cfg.Replay.QueueSize)
	assert.False(t, cfg.Replay.FreezeLocked)
	assert.False(t, cfg.Ingest.SkipMalformed)
	assert.Equal(t, "csv", cfg.Report.Format)
	assert.Empty(t, cfg.Metrics.Textfile)
}

func TestLoadFlags(t *testing.T) {
	fs := newFlags(t, "--workers=8", "--freeze-locked", "--format", "json", "--log-level=debug")
	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Replay.Workers)
	assert.True(t, cfg.Replay.FreezeLocked)
	assert.Equal(t, "json", cfg.Report.Format)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("TXREPLAY_REPLAY_WORKERS", "4")
	t.Setenv("TXREPLAY_INGEST_SKIP_MALFORMED", "true")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Replay.Workers)
	assert.True(t, cfg.Ingest.SkipMalformed)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadFlagBeatsEnvironment(t *testing.T) {
	t.Setenv("TXREPLAY_REPLAY_WORKERS", "4")

	cfg, err := Load(newFlags(t, "--workers=2"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Replay.Workers)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.yaml")
	content := `
log_encoding: console
replay:
  workers: 3
  queue_size: 16
report:
  format: json
metrics:
  textfile: /tmp/txreplay.prom
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(newFlags(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, "console", cfg.LogEncoding)
	assert.Equal(t, 3, cfg.Replay.Workers)
	assert.Equal(t, 16, cfg.Replay.QueueSize)
	assert.Equal(t, "json", cfg.Report.Format)
	assert.Equal(t, "/tmp/txreplay.prom", cfg.Metrics.Textfile)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "zero workers", args: []string{"--workers=0"}},
		{name: "too many workers", args: []string{"--workers=1000"}},
		{name: "zero queue", args: []string{"--queue-size=0"}},
		{name: "bad format", args: []string{"--format=xml"}},
		{name: "bad log level", args: []string{"--log-level=trace"}},
		{name: "bad encoding", args: []string{"--log-encoding=logfmt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newFlags(t, tt.args...))
			assert.ErrorContains(t, err, "configuration validation failed")
		})
	}
}
