// Package vectorstore manages indexed document chunks with embedding search.
//
// Similarity is computed in-process: search loads the candidate rows and
// scores every one with cosine similarity, so results are exact, not
// approximate. The corpus is a few thousand chunks at most and the linear
// scan is far below the latency of the model calls surrounding it.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/vhoang/troly/internal/log"
)

// Default search parameters, overridable per store and per call.
const (
	DefaultTopK      = 3
	DefaultThreshold = 0.4
)

// searchTimeout bounds one search round trip including query embedding.
const searchTimeout = 30 * time.Second

// ErrDimensionMismatch indicates an embedding of unexpected length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder generates embeddings for text. Consumer-defined; the production
// implementation lives in internal/llm.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Querier defines the database operations the store needs. Interfaces are
// defined by the consumer so tests can supply an in-memory implementation.
type Querier interface {
	// InsertEmbedding stores one chunk row.
	InsertEmbedding(ctx context.Context, row Row) error

	// ListEmbeddings returns all rows, or only those of sourceType when
	// it is non-empty.
	ListEmbeddings(ctx context.Context, sourceType string) ([]Row, error)

	// DeleteBySource removes all chunks of one origin record.
	DeleteBySource(ctx context.Context, sourceType, sourceID string) (int64, error)

	// DeleteBySourceType removes all chunks of one source type.
	DeleteBySourceType(ctx context.Context, sourceType string) (int64, error)

	// DeleteAll empties the store.
	DeleteAll(ctx context.Context) (int64, error)

	// CountBySourceType returns per-source-type row counts.
	CountBySourceType(ctx context.Context) (map[string]int64, error)
}

// Row is the storage representation of one chunk.
type Row struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  []byte
	CreatedAt time.Time
}

// Store performs embedding generation, storage and similarity search.
// Safe for concurrent use.
type Store struct {
	queries   Querier
	embedder  Embedder
	logger    log.Logger
	dimension int
	topK      int
	threshold float64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDefaultTopK sets the store-wide result limit.
func WithDefaultTopK(k int) StoreOption {
	return func(s *Store) {
		s.topK = k
	}
}

// WithDefaultThreshold sets the store-wide similarity cutoff.
func WithDefaultThreshold(t float64) StoreOption {
	return func(s *Store) {
		s.threshold = t
	}
}

// New creates a Store. dimension is the required embedding length; 0 disables
// the check.
func New(querier Querier, embedder Embedder, logger log.Logger, dimension int, opts ...StoreOption) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Store{
		queries:   querier,
		embedder:  embedder,
		logger:    logger,
		dimension: dimension,
		topK:      DefaultTopK,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add embeds and stores one document. A missing ID is assigned a UUID.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.Content == "" {
		return fmt.Errorf("document content is empty")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	vec, err := s.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}
	if err := s.checkDimension(vec); err != nil {
		return fmt.Errorf("document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if err := s.queries.InsertEmbedding(ctx, Row{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: vec,
		Metadata:  metadataJSON,
		CreatedAt: createdAt,
	}); err != nil {
		return fmt.Errorf("inserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("added document",
		"id", doc.ID,
		"source_type", doc.SourceType(),
		"content_length", len(doc.Content))
	return nil
}

// AddBatch embeds all documents in a single model request and stores them,
// stopping at the first insert failure. Returns how many rows were written.
func (s *Store) AddBatch(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		if doc.Content == "" {
			return 0, fmt.Errorf("document %d of %d has empty content", i+1, len(docs))
		}
		texts[i] = doc.Content
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d documents: %w", len(docs), err)
	}
	if len(vecs) != len(docs) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), len(docs))
	}

	written := 0
	for i, doc := range docs {
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		if err := s.checkDimension(vecs[i]); err != nil {
			return written, fmt.Errorf("document %q: %w", doc.ID, err)
		}

		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return written, fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
		}

		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		if err := s.queries.InsertEmbedding(ctx, Row{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: vecs[i],
			Metadata:  metadataJSON,
			CreatedAt: createdAt,
		}); err != nil {
			return written, fmt.Errorf("inserting document %q: %w", doc.ID, err)
		}
		written++
	}

	s.logger.Debug("added document batch", "count", written)
	return written, nil
}

// Search embeds the query and returns the most similar documents, ordered by
// descending score. Results below the threshold are dropped.
//
// Example:
//
//	results, err := store.Search(ctx, "tin tức tuyển sinh",
//	    vectorstore.WithTopK(5),
//	    vectorstore.WithSourceType(vectorstore.SourceTypeNews))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := s.buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	queryVec, err := s.embedder.Embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if err := s.checkDimension(queryVec); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	rows, err := s.queries.ListEmbeddings(queryCtx, cfg.sourceType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("loading embeddings timeout: %w", err)
		}
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		score := roundScore(CosineSimilarity(queryVec, row.Embedding))
		if score < cfg.threshold {
			continue
		}

		var metadata map[string]string
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			// A malformed row must not fail the whole search.
			s.logger.Warn("skipping document with unreadable metadata",
				"id", row.ID, "error", err)
			continue
		}

		results = append(results, Result{
			Document: Document{
				ID:        row.ID,
				Content:   row.Content,
				Metadata:  metadata,
				CreatedAt: row.CreatedAt,
			},
			Score: score,
		})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(results) > cfg.topK {
		results = results[:cfg.topK]
	}

	s.logger.Debug("search complete",
		"candidates", len(rows),
		"results", len(results),
		"threshold", cfg.threshold)
	return results, nil
}

// DeleteBySource removes all chunks belonging to one origin record.
func (s *Store) DeleteBySource(ctx context.Context, sourceType, sourceID string) (int64, error) {
	n, err := s.queries.DeleteBySource(ctx, sourceType, sourceID)
	if err != nil {
		return 0, fmt.Errorf("deleting %s/%s: %w", sourceType, sourceID, err)
	}
	s.logger.Debug("deleted source chunks", "source_type", sourceType, "source_id", sourceID, "count", n)
	return n, nil
}

// DeleteBySourceType removes all chunks of one source type.
func (s *Store) DeleteBySourceType(ctx context.Context, sourceType string) (int64, error) {
	n, err := s.queries.DeleteBySourceType(ctx, sourceType)
	if err != nil {
		return 0, fmt.Errorf("deleting source type %s: %w", sourceType, err)
	}
	s.logger.Info("deleted source type", "source_type", sourceType, "count", n)
	return n, nil
}

// DeleteAll empties the store.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.queries.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("deleting all documents: %w", err)
	}
	s.logger.Info("deleted all documents", "count", n)
	return n, nil
}

// Stats returns total and per-source document counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	bySource, err := s.queries.CountBySourceType(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting documents: %w", err)
	}
	var total int64
	for _, n := range bySource {
		total += n
	}
	return Stats{Total: total, BySource: bySource}, nil
}

// checkDimension validates an embedding length against the configured
// dimension.
func (s *Store) checkDimension(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}
	if s.dimension > 0 && len(vec) != s.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), s.dimension)
	}
	return nil
}

// CosineSimilarity computes dot(a,b) / (‖a‖·‖b‖) with float64 accumulation.
// Returns 0 when either vector has zero norm or lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// roundScore rounds to three decimals for stable presentation.
func roundScore(s float64) float64 {
	return math.Round(s*1000) / 1000
}
