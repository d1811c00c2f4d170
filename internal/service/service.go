// Package service wires the transformation pipeline, source acquisition,
// and response cache together for the HTTP layer.
package service

import (
	"log/slog"

	"github.com/oszuidwest/zwfm-imageproxy/internal/async"
	"github.com/oszuidwest/zwfm-imageproxy/internal/cache"
	"github.com/oszuidwest/zwfm-imageproxy/internal/codec"
	"github.com/oszuidwest/zwfm-imageproxy/internal/config"
	"github.com/oszuidwest/zwfm-imageproxy/internal/source"
	"github.com/oszuidwest/zwfm-imageproxy/internal/transform"
)

// ImageService owns the per-process collaborators of the transformation
// pipeline. Everything here is safe for concurrent request handling; the
// only shared mutable state is the codec readiness registry.
type ImageService struct {
	pipeline *transform.Pipeline
	fetcher  *source.Fetcher
	store    cache.Store
	s3cache  *cache.S3Store
	registry *codec.Registry
	runner   *async.Runner
	config   *config.Config
}

// Option customizes service construction. Tests substitute the codec
// engine and the outbound HTTP client.
type Option func(*options)

type options struct {
	engine codec.Engine
	setup  codec.SetupFunc
	getter source.Getter
}

// WithEngine replaces the libvips codec engine.
func WithEngine(e codec.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithSetup replaces the capability setup function.
func WithSetup(f codec.SetupFunc) Option {
	return func(o *options) { o.setup = f }
}

// WithFetchClient replaces the SSRF-protected fetch client.
func WithFetchClient(g source.Getter) Option {
	return func(o *options) { o.getter = g }
}

// New creates an ImageService from the given configuration.
func New(cfg *config.Config, opts ...Option) *ImageService {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.engine == nil {
		o.engine = codec.NewVipsEngine()
	}
	if o.setup == nil {
		o.setup = codec.VipsSetup
	}

	registry := codec.NewRegistry(o.setup)

	var fetcher *source.Fetcher
	if o.getter != nil {
		fetcher = source.NewFetcherWithClient(o.getter, cfg.Image.GetMaxSourceBytes())
	} else {
		fetcher = source.NewFetcher(cfg.Image.GetMaxSourceBytes(), cfg.Image.GetFetchTimeout())
	}

	svc := &ImageService{
		pipeline: transform.New(o.engine, registry),
		fetcher:  fetcher,
		registry: registry,
		runner:   async.New(),
		config:   cfg,
	}

	if cfg.Cache.GetEnabled() {
		switch cfg.Cache.GetBackend() {
		case "s3":
			svc.s3cache = cache.NewS3Store(&cfg.Cache.S3, cfg.Cache.GetTTL())
			svc.store = svc.s3cache
		default:
			svc.store = cache.NewMemoryStore(cfg.Cache.GetMaxEntries(), cfg.Cache.GetTTL())
			slog.Info("Memory cache backend enabled",
				"max_entries", cfg.Cache.GetMaxEntries(),
				"ttl", cfg.Cache.GetTTL())
		}
	} else {
		slog.Info("Response cache disabled")
	}

	return svc
}

// Config returns the service configuration.
func (s *ImageService) Config() *config.Config {
	return s.config
}

// Pipeline returns the conversion orchestrator.
func (s *ImageService) Pipeline() *transform.Pipeline {
	return s.pipeline
}

// Fetcher returns the source image downloader.
func (s *ImageService) Fetcher() *source.Fetcher {
	return s.fetcher
}

// CacheStore returns the response cache backend, or nil when disabled.
func (s *ImageService) CacheStore() cache.Store {
	return s.store
}

// Registry returns the codec capability registry.
func (s *ImageService) Registry() *codec.Registry {
	return s.registry
}

// Runner returns the background work tracker used for cache population.
func (s *ImageService) Runner() *async.Runner {
	return s.runner
}

// Close drains pending background work.
func (s *ImageService) Close() {
	s.runner.Close()
}
