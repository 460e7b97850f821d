// Package api exposes the question answering pipeline over a JSON HTTP API.
//
// Routes:
//
//	POST   /api/v1/chat                    answer one question
//	POST   /api/v1/index/schedules         reindex schedule entries
//	POST   /api/v1/index/news              reindex news articles
//	POST   /api/v1/index/announcements     reindex announcements
//	POST   /api/v1/index/document          chunk and index a free-form document
//	POST   /api/v1/reindex                 rebuild everything
//	GET    /api/v1/stats                   vector and cache statistics
//	GET    /api/v1/cache/stats             query cache statistics
//	POST   /api/v1/cache/clear             clear cache entries, optional ?pattern=
//	DELETE /api/v1/vectors                 delete all embeddings
//	DELETE /api/v1/vectors/{source_type}   delete one type, optional ?source_id=
//	GET    /health                         liveness probe
//	GET    /ready                          readiness probe, checks collaborators
//
// Health probes bypass the middleware stack so orchestration traffic never
// competes with the rate limiter.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vhoang/troly/internal/log"
	"github.com/vhoang/troly/internal/querycache"
	"github.com/vhoang/troly/internal/rag"
	"github.com/vhoang/troly/internal/vectorstore"
)

// Pipeline is the query side of the orchestrator consumed by the handlers.
type Pipeline interface {
	Query(ctx context.Context, req rag.QueryRequest) rag.Response
	CacheStats() querycache.Stats
	ClearCache(pattern string) int
	StoreStats(ctx context.Context) (vectorstore.Stats, error)
}

// ContentIndexer is the indexing side consumed by the admin handlers.
type ContentIndexer interface {
	IndexSchedules(ctx context.Context) (int, error)
	IndexNews(ctx context.Context) (int, error)
	IndexAnnouncements(ctx context.Context) (int, error)
	IndexDocument(ctx context.Context, title, content string) (int, string, error)
	ReindexAll(ctx context.Context) (rag.Counts, error)
}

// HealthChecker reports whether the generation backend is reachable.
// Implemented by *llm.OllamaHealth.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// VectorAdmin covers the destructive vector store operations.
type VectorAdmin interface {
	DeleteBySource(ctx context.Context, sourceType, sourceID string) (int64, error)
	DeleteBySourceType(ctx context.Context, sourceType string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// ServerConfig contains everything needed to build the API server.
type ServerConfig struct {
	Logger      log.Logger
	Pipeline    Pipeline       // Required
	Indexer     ContentIndexer // Required
	Store       VectorAdmin    // Required
	Pool        *pgxpool.Pool  // Optional: nil skips the database check in /ready
	Health      HealthChecker  // Optional: nil skips the generator check in /ready
	CORSOrigins []string       // Allowed origins for CORS
	TrustProxy  bool           // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateLimit   float64        // Tokens refilled per second per IP (0 = default 10)
	RateBurst   int            // Rate limiter burst size per IP (0 = default 20)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if cfg.Indexer == nil {
		return nil, errors.New("indexer is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("vector store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{pipeline: cfg.Pipeline, logger: logger}
	ah := &adminHandler{
		pipeline: cfg.Pipeline,
		indexer:  cfg.Indexer,
		store:    cfg.Store,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", ch.chat)
	mux.HandleFunc("POST /api/v1/index/schedules", ah.indexSource)
	mux.HandleFunc("POST /api/v1/index/news", ah.indexSource)
	mux.HandleFunc("POST /api/v1/index/announcements", ah.indexSource)
	mux.HandleFunc("POST /api/v1/index/document", ah.indexDocument)
	mux.HandleFunc("POST /api/v1/reindex", ah.reindex)
	mux.HandleFunc("GET /api/v1/stats", ah.stats)
	mux.HandleFunc("GET /api/v1/cache/stats", ah.cacheStats)
	mux.HandleFunc("POST /api/v1/cache/clear", ah.clearCache)
	mux.HandleFunc("DELETE /api/v1/vectors", ah.deleteVectors)
	mux.HandleFunc("DELETE /api/v1/vectors/{source_type}", ah.deleteVectors)

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 10
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 20
	}
	rl := newRateLimiter(limit, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID wraps Logging so request_id is in the access log; CORS wraps
	// RateLimit so preflight OPTIONS always gets its headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool, cfg.Health))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// health reports liveness for container probes.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, log.NewNop())
}

// readiness reports readiness. An unreachable database is a hard failure.
// An unreachable generator only gets reported: the pipeline still serves
// cached and apology answers, so the instance should keep receiving traffic.
func readiness(pool *pgxpool.Pool, health HealthChecker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		body := map[string]string{"status": "ready"}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"reason": "database unreachable",
				}, log.NewNop())
				return
			}
		}

		if health != nil {
			if err := health.Check(ctx); err != nil {
				body["generator"] = "unreachable"
			} else {
				body["generator"] = "ok"
			}
		}

		writeJSON(w, http.StatusOK, body, log.NewNop())
	})
}
