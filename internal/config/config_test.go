package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spherical/ocr-pipeline/internal/backend"
	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.InputDir = "batch"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "vision", cfg.Backend.Kind)
	assert.Equal(t, "large", cfg.Backend.Mode)
	assert.Equal(t, 2048, cfg.Backend.MaxNewTokens)
	assert.Equal(t, 120*time.Second, cfg.Backend.PageTimeout)
	assert.Equal(t, 2.0, cfg.Rasterize.Scale)
	assert.Equal(t, 1, cfg.Rasterize.Workers)
	assert.Equal(t, "none", cfg.Cache.Driver)
	assert.True(t, cfg.Render.Enabled)

	// Only the input directory is missing
	assert.Error(t, cfg.Validate())
	assert.NoError(t, validConfig().Validate())
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ocr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input_dir: /data/in
backend:
  kind: tesseract
  mode: small
  page_timeout: 30s
  tesseract:
    languages: [eng, deu]
rasterize:
  scale: 3
  workers: 4
cache:
  driver: memory
log:
  level: debug
  format: json
`), 0o644))

	t.Chdir(dir)
	t.Setenv("OCR_MODE", "gundam")
	t.Setenv("OCR_OUTPUT_DIR", "/data/out")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/data/in", cfg.InputDir)
	assert.Equal(t, "/data/out", cfg.OutputDir)
	assert.Equal(t, "tesseract", cfg.Backend.Kind)
	assert.Equal(t, "gundam", cfg.Backend.Mode)
	assert.Equal(t, 30*time.Second, cfg.Backend.PageTimeout)
	assert.Equal(t, []string{"eng", "deu"}, cfg.Backend.Tesseract.Languages)
	assert.Equal(t, 3.0, cfg.Rasterize.Scale)
	assert.Equal(t, 4, cfg.Rasterize.Workers)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "redis://cache:6379", cfg.Cache.Redis.URL)
	assert.Equal(t, "json", cfg.Log.Format)
	// Untouched keys keep their defaults
	assert.Equal(t, "wkhtmltopdf", cfg.Render.HTMLToPDF)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VISION_MODEL=local/ocr\n"), 0o644))

	t.Chdir(dir)
	// Registers cleanup of the variable godotenv sets
	t.Setenv("VISION_MODEL", "")
	require.NoError(t, os.Unsetenv("VISION_MODEL"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "local/ocr", cfg.Backend.Vision.Model)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfiguration))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("backend: [unclosed"), 0o644))
	_, err = Load(bad)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfiguration))

	t.Setenv("OCR_PAGE_TIMEOUT", "soon")
	_, err = Load("")
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfiguration))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no output", func(c *Config) { c.OutputDir = "" }},
		{"unknown backend", func(c *Config) { c.Backend.Kind = "abacus" }},
		{"unknown mode", func(c *Config) { c.Backend.Mode = "colossal" }},
		{"zero tokens", func(c *Config) { c.Backend.MaxNewTokens = 0 }},
		{"zero timeout", func(c *Config) { c.Backend.PageTimeout = 0 }},
		{"zero scale", func(c *Config) { c.Rasterize.Scale = 0 }},
		{"no workers", func(c *Config) { c.Rasterize.Workers = 0 }},
		{"bad cache driver", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeConfiguration))
		})
	}
}

func TestBackendOptions(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.Vision.RequestsPerSecond = 2
	cfg.Backend.Layout.RequestsPerSecond = 5

	opts := cfg.BackendOptions(nil)
	assert.Equal(t, 2.0, opts.RequestsPerSecond)
	assert.Equal(t, backend.DefaultVisionModel, opts.VisionModel)

	cfg.Backend.Kind = "Layout"
	assert.Equal(t, 5.0, cfg.BackendOptions(nil).RequestsPerSecond)
}
