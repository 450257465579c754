// Package config provides configuration loading for the OCR pipeline.
// Values come from defaults, an optional YAML file, a .env file and the
// environment, in that order; command line flags are applied by the caller
// before Validate.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spherical/ocr-pipeline/internal/backend"
	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/observability"
	"github.com/spherical/ocr-pipeline/internal/pdf"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a pipeline run.
type Config struct {
	InputDir  string          `yaml:"input_dir"`
	OutputDir string          `yaml:"output_dir"`
	Backend   BackendConfig   `yaml:"backend"`
	Rasterize RasterizeConfig `yaml:"rasterize"`
	Render    RenderConfig    `yaml:"render"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
}

// BackendConfig selects and configures the OCR engine.
type BackendConfig struct {
	Kind         string          `yaml:"kind"` // tesseract, layout or vision
	Mode         string          `yaml:"mode"`
	MaxNewTokens int             `yaml:"max_new_tokens"`
	PageTimeout  time.Duration   `yaml:"page_timeout"`
	Tesseract    TesseractConfig `yaml:"tesseract"`
	Layout       LayoutConfig    `yaml:"layout"`
	Vision       VisionConfig    `yaml:"vision"`
}

// TesseractConfig holds tesseract settings.
type TesseractConfig struct {
	Languages []string `yaml:"languages"`
}

// LayoutConfig holds layout parser settings.
type LayoutConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// VisionConfig holds vision-language server settings.
type VisionConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	Prompt            string  `yaml:"prompt"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// RasterizeConfig holds page rendering settings.
type RasterizeConfig struct {
	Scale     float64 `yaml:"scale"`
	Workers   int     `yaml:"workers"`
	KeepPages bool    `yaml:"keep_pages"`
}

// RenderConfig holds artifact rendering settings.
type RenderConfig struct {
	Enabled   bool          `yaml:"enabled"`
	HTMLToPDF string        `yaml:"html_to_pdf"`
	Merge     string        `yaml:"merge"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CacheConfig holds extraction cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// DefaultConfig returns a configuration with defaults for local runs.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "output",
		Backend: BackendConfig{
			Kind:         string(backend.KindVision),
			Mode:         backend.DefaultMode,
			MaxNewTokens: backend.DefaultMaxNewTokens,
			PageTimeout:  120 * time.Second,
			Tesseract: TesseractConfig{
				Languages: []string{"eng"},
			},
			Layout: LayoutConfig{
				Endpoint: "http://localhost:8080/layout-parsing",
			},
			Vision: VisionConfig{
				Endpoint: "http://localhost:8000/v1",
				Model:    backend.DefaultVisionModel,
				Prompt:   backend.DefaultVisionPrompt,
			},
		},
		Rasterize: RasterizeConfig{
			Scale:   2.0,
			Workers: 1,
		},
		Render: RenderConfig{
			Enabled:   true,
			HTMLToPDF: "wkhtmltopdf",
			Merge:     "pdfunite",
			Timeout:   60 * time.Second,
		},
		Cache: CacheConfig{
			Driver:     "none",
			TTL:        7 * 24 * time.Hour,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "ocrp:",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from an optional YAML file and the environment.
// A .env file in the working directory is loaded first when present.
// The result is not validated; call Validate after applying flags.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ConfigurationError("failed to load .env", err)
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigurationError("read config file", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigurationError("parse config file", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("OCR_INPUT_DIR"); v != "" {
		cfg.InputDir = v
	}

	if v := os.Getenv("OCR_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}

	if v := os.Getenv("OCR_BACKEND"); v != "" {
		cfg.Backend.Kind = v
	}

	if v := os.Getenv("OCR_MODE"); v != "" {
		cfg.Backend.Mode = v
	}

	if v := os.Getenv("OCR_PAGE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return domain.ConfigurationError(fmt.Sprintf("invalid OCR_PAGE_TIMEOUT %q", v), err)
		}
		cfg.Backend.PageTimeout = d
	}

	if v := os.Getenv("OCR_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.ConfigurationError(fmt.Sprintf("invalid OCR_WORKERS %q", v), err)
		}
		cfg.Rasterize.Workers = n
	}

	if v := os.Getenv("LAYOUT_ENDPOINT"); v != "" {
		cfg.Backend.Layout.Endpoint = v
	}

	if v := os.Getenv("VISION_ENDPOINT"); v != "" {
		cfg.Backend.Vision.Endpoint = v
	}

	if v := os.Getenv("VISION_MODEL"); v != "" {
		cfg.Backend.Vision.Model = v
	}

	if v := os.Getenv("VISION_API_KEY"); v != "" {
		cfg.Backend.Vision.APIKey = v
	}

	if v := os.Getenv("TESSERACT_LANGUAGES"); v != "" {
		cfg.Backend.Tesseract.Languages = strings.Split(v, "+")
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.URL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	return nil
}

// Validate checks the configuration for errors. Every failure is a
// configuration error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InputDir) == "" {
		return domain.ConfigurationError("input directory is required", nil)
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return domain.ConfigurationError("output directory is required", nil)
	}

	if _, err := backend.ParseKind(c.Backend.Kind); err != nil {
		return err
	}

	if _, err := backend.LookupMode(c.Backend.Mode); err != nil {
		return err
	}

	if c.Backend.MaxNewTokens < 1 {
		return domain.ConfigurationError(fmt.Sprintf("max_new_tokens must be positive, got %d", c.Backend.MaxNewTokens), nil)
	}

	if c.Backend.PageTimeout <= 0 {
		return domain.ConfigurationError(fmt.Sprintf("page_timeout must be positive, got %v", c.Backend.PageTimeout), nil)
	}

	if c.Rasterize.Scale <= 0 || c.Rasterize.Scale > pdf.MaxScale {
		return domain.ConfigurationError(fmt.Sprintf("rasterize scale must be in (0, %g], got %g", pdf.MaxScale, c.Rasterize.Scale), nil)
	}

	if c.Rasterize.Workers < 1 {
		return domain.ConfigurationError(fmt.Sprintf("rasterize workers must be at least 1, got %d", c.Rasterize.Workers), nil)
	}

	switch c.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return domain.ConfigurationError(fmt.Sprintf("invalid cache driver: %s", c.Cache.Driver), nil)
	}

	if !observability.ValidLevel(c.Log.Level) {
		return domain.ConfigurationError(fmt.Sprintf("invalid log level: %s", c.Log.Level), nil)
	}

	if c.Log.Format != "console" && c.Log.Format != "json" {
		return domain.ConfigurationError(fmt.Sprintf("invalid log format: %s", c.Log.Format), nil)
	}

	return nil
}

// BackendOptions translates the engine settings for backend.New.
func (c *Config) BackendOptions(logger *observability.Logger) backend.Options {
	opts := backend.Options{
		MaxNewTokens:   c.Backend.MaxNewTokens,
		Languages:      c.Backend.Tesseract.Languages,
		LayoutEndpoint: c.Backend.Layout.Endpoint,
		VisionEndpoint: c.Backend.Vision.Endpoint,
		VisionModel:    c.Backend.Vision.Model,
		VisionAPIKey:   c.Backend.Vision.APIKey,
		Prompt:         c.Backend.Vision.Prompt,
		Logger:         logger,
	}
	switch backend.Kind(strings.ToLower(c.Backend.Kind)) {
	case backend.KindLayout:
		opts.RequestsPerSecond = c.Backend.Layout.RequestsPerSecond
	case backend.KindVision:
		opts.RequestsPerSecond = c.Backend.Vision.RequestsPerSecond
	}
	return opts
}
