// Package extractor is the entry point for running the OCR pipeline as a
// library. It builds every component from a config.Config and hands back a
// client that runs one batch directory at a time.
package extractor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spherical/ocr-pipeline/internal/backend"
	"github.com/spherical/ocr-pipeline/internal/cache"
	"github.com/spherical/ocr-pipeline/internal/config"
	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/observability"
	"github.com/spherical/ocr-pipeline/internal/pdf"
	"github.com/spherical/ocr-pipeline/internal/pipeline"
	"github.com/spherical/ocr-pipeline/internal/render"
)

// Re-export types for the public API
type (
	Config      = config.Config
	StreamEvent = domain.StreamEvent
	EventType   = domain.EventType
	Summary     = pipeline.Summary
)

// Event type constants
const (
	EventStart           = domain.EventStart
	EventDocumentStart   = domain.EventDocumentStart
	EventRasterized      = domain.EventRasterized
	EventPageProcessing  = domain.EventPageProcessing
	EventPageComplete    = domain.EventPageComplete
	EventDocumentDone    = domain.EventDocumentDone
	EventDocumentSkipped = domain.EventDocumentSkipped
	EventError           = domain.EventError
	EventComplete        = domain.EventComplete
)

// Client runs the pipeline with the components selected by its config.
type Client struct {
	orchestrator *pipeline.Orchestrator
	cache        cache.Client
	backendName  string
	logger       *observability.Logger
}

type clientOptions struct {
	logger     *observability.Logger
	httpClient *http.Client
	runner     render.Runner
}

// Option customizes NewClient.
type Option func(*clientOptions)

// WithLogger sets the logger shared by all components.
func WithLogger(logger *observability.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithHTTPClient sets the HTTP client used by remote engines.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithRunner replaces the process runner of the PDF converters. The
// converter binaries are not looked up when a runner is given.
func WithRunner(r render.Runner) Option {
	return func(o *clientOptions) { o.runner = r }
}

// NewClient validates cfg and builds the pipeline. Configuration problems
// and an unreachable engine are returned before any document is read.
func NewClient(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = observability.DefaultLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	convOpts := pdf.Options{Scale: cfg.Rasterize.Scale}
	if cfg.Rasterize.KeepPages {
		convOpts.KeepDir = cfg.OutputDir
	}
	converter, err := pdf.NewConverter(convOpts, o.logger)
	if err != nil {
		return nil, err
	}

	var renderer domain.Renderer
	var assembler domain.Assembler
	if cfg.Render.Enabled {
		renderer, assembler, err = newRenderStage(cfg, o.runner)
		if err != nil {
			return nil, err
		}
	}

	kind, err := backend.ParseKind(cfg.Backend.Kind)
	if err != nil {
		return nil, err
	}
	bopts := cfg.BackendOptions(o.logger)
	bopts.HTTPClient = o.httpClient

	engine, err := backend.New(ctx, kind, cfg.Backend.Mode, bopts)
	if err != nil {
		return nil, err
	}

	cacheClient, err := OpenCache(ctx, cfg)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	if cacheClient != nil {
		engine = backend.NewCached(engine, cacheClient, cfg.Cache.TTL, o.logger)
	}

	orchestrator, err := pipeline.New(pipeline.Config{
		InputDir:    cfg.InputDir,
		OutputDir:   cfg.OutputDir,
		PageTimeout: cfg.Backend.PageTimeout,
		Workers:     cfg.Rasterize.Workers,
	}, converter, engine, renderer, assembler, o.logger)
	if err != nil {
		_ = engine.Close()
		if cacheClient != nil {
			_ = cacheClient.Close()
		}
		return nil, err
	}

	o.logger.Info().
		Str("backend", engine.Name()).
		Str("cache", cfg.Cache.Driver).
		Bool("render", cfg.Render.Enabled).
		Msg("pipeline ready")

	return &Client{
		orchestrator: orchestrator,
		cache:        cacheClient,
		backendName:  engine.Name(),
		logger:       o.logger,
	}, nil
}

func newRenderStage(cfg *Config, runner render.Runner) (*render.Renderer, *render.Assembler, error) {
	if runner == nil {
		for _, bin := range []string{cfg.Render.HTMLToPDF, cfg.Render.Merge} {
			if err := render.CheckBinary(bin); err != nil {
				return nil, nil, err
			}
		}
	}
	renderer := render.NewRenderer(render.RendererOptions{
		Binary:  cfg.Render.HTMLToPDF,
		Timeout: cfg.Render.Timeout,
		Runner:  runner,
	})
	assembler := render.NewAssembler(render.AssemblerOptions{
		OutputDir: cfg.OutputDir,
		Binary:    cfg.Render.Merge,
		Timeout:   cfg.Render.Timeout,
		Runner:    runner,
	})
	return renderer, assembler, nil
}

// OpenCache opens the cache named by cfg.Cache.Driver. It returns nil for
// the "none" driver.
func OpenCache(ctx context.Context, cfg *Config) (cache.Client, error) {
	switch cfg.Cache.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryClient(cfg.Cache.MaxEntries), nil
	case "redis":
		c, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			URL:      cfg.Cache.Redis.URL,
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, domain.ConfigurationError("failed to connect to redis cache", err)
		}
		return c, nil
	default:
		return nil, domain.ConfigurationError(fmt.Sprintf("invalid cache driver: %s", cfg.Cache.Driver), nil)
	}
}

// ClearCache removes cached pages of one engine, or of every engine when
// engine is empty.
func ClearCache(ctx context.Context, c cache.Client, engine string) error {
	prefix := cache.Key("ocr") + ":"
	if engine != "" {
		prefix = cache.Key("ocr", engine) + ":"
	}
	if err := c.DeleteByPrefix(ctx, prefix); err != nil {
		return domain.IOError("failed to clear cache", err)
	}
	return nil
}

// Backend names the engine and mode in use.
func (c *Client) Backend() string {
	return c.backendName
}

// Run processes the configured batch directory. events may be nil; see
// pipeline.Orchestrator.Execute.
func (c *Client) Run(ctx context.Context, events chan<- StreamEvent) (*Summary, error) {
	return c.orchestrator.Execute(ctx, events)
}

// Close releases the engine and the cache.
func (c *Client) Close() error {
	err := c.orchestrator.Close()
	if c.cache != nil {
		if cerr := c.cache.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
