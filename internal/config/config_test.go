package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
	assert.Equal(t, "metadata", cfg.Storage.MetadataDir)
	assert.Equal(t, "mp3", cfg.Storage.AudioDir)
	assert.Equal(t, "chrome", cfg.Downloader.BrowserProfile)
	assert.Equal(t, "base", cfg.Transcription.Model)
	assert.False(t, cfg.Transcription.FP16)
	assert.Equal(t, 5*time.Minute, cfg.Stages.DownloadTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Stages.ExtractTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Stages.TranscribeTimeout)
	assert.Equal(t, 2, cfg.Pipeline.MaxConcurrentRuns)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipscribe.yaml")
	yaml := `
server:
  port: 8080
transcription:
  model: small
  language: en
stages:
  extract_timeout: 45s
log:
  level: DEBUG
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("CLIPSCRIBE_SERVER_PORT", "9090")
	t.Setenv("CLIPSCRIBE_STAGES_DOWNLOAD_TIMEOUT", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "small", cfg.Transcription.Model)
	assert.Equal(t, "en", cfg.Transcription.Language)
	assert.Equal(t, 45*time.Second, cfg.Stages.ExtractTimeout)
	assert.Equal(t, 90*time.Second, cfg.Stages.DownloadTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "Port"},
		{"unknown backend", func(c *Config) { c.Transcription.Backend = "grpc" }, "Backend"},
		{"http backend needs url", func(c *Config) { c.Transcription.Backend = "http" }, "transcription.url"},
		{"zero stage timeout", func(c *Config) { c.Stages.ExtractTimeout = 0 }, "ExtractTimeout"},
		{"tracing needs endpoint", func(c *Config) { c.Tracing.Enabled = true }, "Endpoint"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "Level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	ok := *base
	ok.Transcription.Backend = "http"
	ok.Transcription.URL = "http://localhost:8387"
	assert.NoError(t, ok.Validate())
}
