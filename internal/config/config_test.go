package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Queue.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Render.Timeout)
	assert.Equal(t, []string{"title", "description", "rating", "measures"}, cfg.Completeness.RequiredFields)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9000
  allowed_origins: ["app.example.com"]
queue:
  driver: memory
  publish_timeout: 2s
render:
  timeout: 10m
  embedded: true
completeness:
  required_fields: [title]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, []string{"app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Queue.Driver)
	assert.Equal(t, 2*time.Second, cfg.Queue.PublishTimeout)
	assert.Equal(t, "report", cfg.Queue.ReportChannel)
	assert.Equal(t, 10*time.Minute, cfg.Render.Timeout)
	assert.True(t, cfg.Render.Embedded)
	assert.Equal(t, []string{"title"}, cfg.Completeness.RequiredFields)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue:\n  driver: kafka\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_Tracing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracing:\n  enabled: true\n  insecure: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Tracing.Endpoint)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)

	require.NoError(t, os.WriteFile(path, []byte("tracing:\n  sample_ratio: 2\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
