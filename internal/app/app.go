// Package app initializes and wires the application components: logger,
// database pool, Genkit with the configured AI provider, vector store,
// pipeline and HTTP server.
package app

import (
	"context"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vhoang/troly/internal/api"
	"github.com/vhoang/troly/internal/config"
	"github.com/vhoang/troly/internal/log"
	"github.com/vhoang/troly/internal/querycache"
	"github.com/vhoang/troly/internal/rag"
	"github.com/vhoang/troly/internal/schedule"
	"github.com/vhoang/troly/internal/vectorstore"
)

// App is the application container. Build with Setup, release with Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit    *genkit.Genkit
	Pool      *pgxpool.Pool
	Store     *vectorstore.Store
	Schedules *schedule.Repository
	Cache     *querycache.Cache

	Orchestrator *rag.Orchestrator
	Indexer      *rag.Indexer
	Server       *api.Server

	otelShutdown func(context.Context) error
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down")
	}

	if a.Pool != nil {
		a.Pool.Close()
	}

	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil && a.Logger != nil {
			a.Logger.Warn("flushing traces", "error", err)
		}
	}

	return nil
}
