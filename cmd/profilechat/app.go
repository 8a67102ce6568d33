package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"profilechat/internal/cache"
	"profilechat/internal/cache/sqlite"
	"profilechat/internal/chat"
	"profilechat/internal/chunker"
	"profilechat/internal/config"
	"profilechat/internal/domain"
	"profilechat/internal/embedding/tfidf"
	"profilechat/internal/engine"
	"profilechat/internal/engine/openai"
	"profilechat/internal/engine/remote"
	"profilechat/internal/logging"
	"profilechat/internal/metrics"
	"profilechat/internal/router"
	"profilechat/internal/sanitize"
	"profilechat/internal/sections"
	"profilechat/internal/service"
	"profilechat/internal/source"
	"profilechat/internal/vectorstore/memory"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.AppConfig
	logger   *zap.Logger
	cache    cache.Store
	service  *service.ProfileService
	resolver *engine.Resolver
	session  *chat.Session
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// newApp wires the components. logToFile keeps zap off the terminal.
func newApp(ctx context.Context, cfg *config.AppConfig, logToFile bool) (*app, error) {
	logCfg := logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development, File: cfg.Log.File}
	if logToFile && logCfg.File == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, err
		}
		logCfg.File = filepath.Join(dir, "profilechat.log")
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	store := memory.NewStorage()
	indexer := tfidf.NewIndexer(chunker.NewParagraphChunker(cfg.Index.MinParagraphChars), sections.Parse)
	fetcher := source.NewFetcher(source.Config{
		Location: cfg.Source.Location,
		Timeout:  time.Duration(cfg.Source.TimeoutSecs) * time.Second,
	})
	kv := openCache(ctx, cfg.Cache, logger)
	svc := service.NewProfileService(fetcher, indexer, store, kv, router.New(nil), logger.Named("profile"))
	svc.SetMetrics(m)

	resolver := newResolver(cfg, logger.Named("engine"))

	var rules []sanitize.Rule
	if len(cfg.Sanitizer.Rules) > 0 {
		rules, err = sanitize.Compile(cfg.Sanitizer.Rules)
		if err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("sanitizer rules: %w", err)
		}
	}
	opts := []chat.Option{
		chat.WithLogger(logger.Named("chat")),
		chat.WithMetrics(m),
		chat.WithSanitizer(sanitize.New(rules, cfg.Sanitizer.MinChars, cfg.Persona.Prompt)),
		chat.WithSampling(domain.SamplingParams{
			Temperature: cfg.Engine.Temperature,
			TopP:        cfg.Engine.TopP,
			MaxTokens:   cfg.Engine.MaxTokens,
		}),
	}
	if cfg.Remote.Endpoint != "" {
		opts = append(opts, chat.WithRemote(remote.NewClient(remote.Config{
			Endpoint:         cfg.Remote.Endpoint,
			ConnectTimeout:   time.Duration(cfg.Remote.TimeoutSecs) * time.Second,
			FailureThreshold: cfg.Remote.FailureThreshold,
			OpenTimeout:      time.Duration(cfg.Remote.OpenTimeoutSecs) * time.Second,
		})))
	}
	session := chat.NewSession(cfg.Persona.Prompt, svc, resolver, opts...)

	return &app{
		cfg:      cfg,
		logger:   logger,
		cache:    kv,
		service:  svc,
		resolver: resolver,
		session:  session,
		registry: reg,
		metrics:  m,
	}, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("cache close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// openCache returns the configured cache, falling back to memory when sqlite cannot open.
func openCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) cache.Store {
	switch cfg.Type {
	case "memory":
		return cache.NewMemory()
	case "sqlite", "":
		st := sqlite.NewStore(cfg.Path)
		if err := st.Init(ctx); err != nil {
			logger.Warn("sqlite cache unavailable; using memory cache", zap.String("path", cfg.Path), zap.Error(err))
			return cache.NewMemory()
		}
		return st
	default:
		logger.Warn("unknown cache type; using memory cache", zap.String("type", cfg.Type))
		return cache.NewMemory()
	}
}

func newResolver(cfg *config.AppConfig, logger *zap.Logger) *engine.Resolver {
	ec := cfg.Engine
	prober := engine.NewProber(nil, engine.DefaultProbeTimeout)
	factory := func(_ context.Context, location string, sel engine.ModelSelection) (domain.Engine, error) {
		eng, err := openai.NewEngine(openai.Config{
			BaseURL:        location,
			APIKeyEnv:      ec.APIKeyEnv,
			Model:          sel.ID,
			ConnectTimeout: time.Duration(ec.TimeoutSecs) * time.Second,
			MaxRetries:     ec.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return eng, nil
	}
	sources := make([]engine.LibrarySource, 0, len(ec.Libraries))
	for _, lib := range ec.Libraries {
		sources = append(sources, engine.NewProbedSource(engine.SourceConfig{
			Name:      lib.Name,
			Location:  lib.Location,
			ProbePath: lib.ProbePath,
			Remote:    lib.Remote,
		}, prober, factory))
	}
	var rm *engine.RemoteModel
	if ec.RemoteModel != nil {
		rm = &engine.RemoteModel{ID: ec.RemoteModel.ID, Location: ec.RemoteModel.Location, KernelURL: ec.RemoteModel.KernelURL}
	}
	return engine.NewResolver(engine.Config{
		ModelRoot:        ec.ModelRoot,
		KernelRoot:       ec.KernelRoot,
		Models:           ec.Models,
		RemoteModel:      rm,
		FallbackModel:    ec.FallbackModel,
		PlaceholderBytes: ec.PlaceholderBytes,
	},
		sources,
		engine.StaticCapability{Available: !ec.NoAccelerator, Reason: "no accelerator on this host"},
		engine.NewGate(ec.Origin, ec.AllowRemote),
		prober,
		logger,
	)
}
