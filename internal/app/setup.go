package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/vhoang/troly/db"
	"github.com/vhoang/troly/internal/api"
	"github.com/vhoang/troly/internal/config"
	"github.com/vhoang/troly/internal/dateparse"
	"github.com/vhoang/troly/internal/llm"
	"github.com/vhoang/troly/internal/log"
	"github.com/vhoang/troly/internal/observability"
	"github.com/vhoang/troly/internal/querycache"
	"github.com/vhoang/troly/internal/rag"
	"github.com/vhoang/troly/internal/schedule"
	"github.com/vhoang/troly/internal/vectorstore"
)

const shutdownTimeout = 5 * time.Second

// Setup validates the configuration and builds the full application. On
// error, everything already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: provideLogger(cfg),
	}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				a.Logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first so Genkit's TracerProvider exports from its first span.
	otelShutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
		ServiceName: "troly",
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.otelShutdown = otelShutdown

	if err := db.Migrate(cfg.PostgresURL(), a.Logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := vectorstore.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.Pool = pool

	g, embedder, err := provideGenkit(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	var health api.HealthChecker
	if cfg.Provider == "ollama" {
		oh := llm.NewOllamaHealth(ollamaAddress(cfg.OllamaHost), cfg.ModelName)
		checkOllama(ctx, oh, cfg, a.Logger)
		health = oh
	}

	a.Store = vectorstore.New(
		vectorstore.NewPostgresQuerier(pool),
		llm.NewEmbedder(embedder, cfg.EmbedTimeout, a.Logger.With("component", "embedder")),
		a.Logger.With("component", "vectorstore"),
		cfg.EmbedDimension,
	)
	a.Schedules = schedule.NewRepository(pool)
	a.Cache = querycache.New(cfg.CacheTTL, cfg.CacheMaxSize)

	parser := dateparse.NewParser(dateparse.WithWeekdayMode(weekdayMode(cfg)))
	generator := llm.NewGenerator(g, cfg.FullModelName(), cfg.LLMTimeout,
		a.Logger.With("component", "generator"))

	a.Orchestrator = rag.New(a.Store, generator, a.Schedules, a.Cache, parser,
		a.Logger.With("component", "rag"),
		rag.WithTopK(cfg.TopK),
		rag.WithThreshold(cfg.SimilarityThreshold),
	)
	a.Indexer = rag.NewIndexer(a.Store, a.Schedules, a.Cache,
		a.Logger.With("component", "indexer"),
		rag.WithChunking(cfg.ChunkSize, cfg.ChunkOverlap),
	)

	server, err := api.NewServer(api.ServerConfig{
		Logger:      a.Logger.With("component", "api"),
		Pipeline:    a.Orchestrator,
		Indexer:     a.Indexer,
		Store:       a.Store,
		Pool:        pool,
		Health:      health,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  true,
		RateLimit:   cfg.RateLimitPerSec,
		RateBurst:   cfg.RateLimitBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("building API server: %w", err)
	}
	a.Server = server

	return a, nil
}

// provideLogger builds the process logger from config.
func provideLogger(cfg *config.Config) log.Logger {
	return log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
}

// parseLogLevel maps a level name to slog, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// weekdayMode maps the config flag to the parser mode.
func weekdayMode(cfg *config.Config) dateparse.WeekdayMode {
	if cfg.WeekdayNextWeek {
		return dateparse.WeekdayNextWeek
	}
	return dateparse.WeekdayToday
}

// provideGenkit initializes Genkit with the configured provider and returns
// the matching embedder. Ollama requires explicit model registration, Gemini
// auto-discovers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, ai.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		plugin := &ollama.Ollama{ServerAddress: ollamaAddress(cfg.OllamaHost)}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with ollama provider")
		}
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		plugin.DefineEmbedder(g, ollamaAddress(cfg.OllamaHost), cfg.EmbedModel, nil)
		logger.Info("initialized genkit",
			"provider", "ollama", "model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, ollama.Embedder(g, ollamaAddress(cfg.OllamaHost)), nil

	case "gemini":
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit", "provider", "gemini", "model", cfg.ModelName)
		return g, googlegenai.GoogleAIEmbedder(g, cfg.EmbedModel), nil

	default:
		return nil, nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// ollamaAddress normalizes the configured host to a URL.
func ollamaAddress(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}

// checkOllama verifies the Ollama server is reachable and the chat model is
// pulled. A failed check logs a warning instead of aborting: the server may
// still be starting, and the pipeline degrades to apology answers until it
// is up.
func checkOllama(ctx context.Context, health *llm.OllamaHealth, cfg *config.Config, logger log.Logger) {
	if err := health.Check(ctx); err != nil {
		logger.Warn("ollama health check failed", "error", err, "host", cfg.OllamaHost)
		return
	}
	logger.Info("ollama ready", "model", cfg.ModelName)
}
