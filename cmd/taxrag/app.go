package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"taxrag/internal/config"
	"taxrag/internal/domain"
	"taxrag/internal/embedding/cache"
	"taxrag/internal/embedding/openai"
	"taxrag/internal/embedding/tfidf"
	"taxrag/internal/generation"
	chat "taxrag/internal/generation/openai"
	"taxrag/internal/metrics"
	"taxrag/internal/retrieval"
	"taxrag/internal/rulestore"
	"taxrag/internal/service"
	"taxrag/internal/slots"
)

// app holds what every command needs: configuration, logging and metrics.
type app struct {
	cfg     *config.AppConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func newApp(ctx context.Context, g *globalFlags) (*app, error) {
	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Log.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger := newLogger(os.Stderr, level, cfg.Log.Format)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	if cfg.Metrics.Addr != "" {
		a.metrics = metrics.New()
		go func() {
			if err := a.metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("Metrics server stopped", "error", err)
			}
		}()
	}
	return a, nil
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// directVectorizer embeds without caching. TF-IDF vectors depend on the
// prepared corpus, so they are never written to the persistent cache.
type directVectorizer struct {
	domain.Embedder
}

func (d directVectorizer) Get(ctx context.Context, text string) (domain.Vector, error) {
	return d.Embed(ctx, text)
}

// vectorizer builds the configured embedder. corpus is only consulted by
// embedders that must be prepared before use.
func (a *app) vectorizer(corpus []string) (domain.Vectorizer, error) {
	switch a.cfg.Embedder.Type {
	case "tfidf":
		var emb domain.Embedder = tfidf.NewEmbedder()
		if p, ok := emb.(domain.Preparer); ok {
			if err := p.Prepare(corpus); err != nil {
				return nil, fmt.Errorf("prepare %s: %w", emb.Name(), err)
			}
		}
		return directVectorizer{emb}, nil
	case "openai", "":
		oc := a.cfg.Embedder.OpenAI
		if oc == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      oc.Model,
			Timeout:    oc.Timeout(),
			MaxRetries: oc.MaxRetries,
			Logger:     a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return cache.New(a.cfg.Cache.Path, client, cache.WithLogger(a.logger), cache.WithMetrics(a.metrics))
	default:
		return nil, fmt.Errorf("unknown embedder: %s", a.cfg.Embedder.Type)
	}
}

func (a *app) generator() (generation.Generator, error) {
	switch a.cfg.Generator.Type {
	case "openai", "":
		gc := a.cfg.Generator.OpenAI
		if gc == nil {
			return nil, fmt.Errorf("openai generator config missing")
		}
		return chat.NewClient(chat.Config{
			BaseURL:     gc.BaseURL,
			APIKeyEnv:   gc.APIKeyEnv,
			Model:       gc.Model,
			Timeout:     gc.Timeout(),
			MaxRetries:  gc.MaxRetries,
			MaxTokens:   gc.MaxTokens,
			Temperature: gc.Temperature,
			Logger:      a.logger,
		})
	default:
		return nil, fmt.Errorf("unknown generator: %s", a.cfg.Generator.Type)
	}
}

// pipeline loads the rule store and assembles the query pipeline. It also
// returns the number of searchable rules.
func (a *app) pipeline(_ context.Context) (*service.Pipeline, int, error) {
	store, err := rulestore.Load(a.cfg.Store.VectorsPath, a.cfg.Store.MetadataPath, rulestore.WithLogger(a.logger))
	if err != nil {
		return nil, 0, fmt.Errorf("load rule store: %w", err)
	}
	corpus, err := service.CanonicalTexts(store.Rules())
	if err != nil {
		return nil, 0, err
	}
	vec, err := a.vectorizer(corpus)
	if err != nil {
		return nil, 0, err
	}
	gen, err := a.generator()
	if err != nil {
		return nil, 0, err
	}
	retriever := retrieval.New(store, retrieval.WithLogger(a.logger), retrieval.WithMetrics(a.metrics))
	p := service.NewPipeline(slots.NewExtractor(), vec, retriever, gen,
		service.WithTopK(a.cfg.Retrieval.TopK),
		service.WithLogger(a.logger),
		service.WithMetrics(a.metrics),
	)
	return p, retriever.Len(), nil
}

func (a *app) build(ctx context.Context, kbPath string) (int, error) {
	rules, err := service.LoadKnowledgeBase(kbPath)
	if err != nil {
		return 0, fmt.Errorf("load knowledge base: %w", err)
	}
	corpus, err := service.CanonicalTexts(rules)
	if err != nil {
		return 0, err
	}
	vec, err := a.vectorizer(corpus)
	if err != nil {
		return 0, err
	}
	return service.NewIndexer(vec, a.logger).Build(ctx, kbPath, a.cfg.Store.VectorsPath, a.cfg.Store.MetadataPath)
}
