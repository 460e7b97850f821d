package rag

import (
	"context"
	"time"

	"github.com/vhoang/troly/internal/llm"
	"github.com/vhoang/troly/internal/querycache"
	"github.com/vhoang/troly/internal/schedule"
	"github.com/vhoang/troly/internal/vectorstore"
)

// sourcePreviewLimit truncates source content in API responses.
const sourcePreviewLimit = 300

// VectorStore is the retrieval surface the pipeline needs. Implemented by
// *vectorstore.Store.
type VectorStore interface {
	Add(ctx context.Context, doc vectorstore.Document) error
	AddBatch(ctx context.Context, docs []vectorstore.Document) (int, error)
	Search(ctx context.Context, query string, opts ...vectorstore.SearchOption) ([]vectorstore.Result, error)
	DeleteBySource(ctx context.Context, sourceType, sourceID string) (int64, error)
	DeleteBySourceType(ctx context.Context, sourceType string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (vectorstore.Stats, error)
}

// Generator produces grounded answers. Implemented by *llm.Generator.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// ScheduleSource serves structured calendar lookups. Implemented by
// *schedule.Repository.
type ScheduleSource interface {
	SchedulesInRange(ctx context.Context, start, end time.Time) ([]schedule.Schedule, error)
}

// ContentSource lists the records the indexer feeds into the vector store
// and persists uploaded reference documents so a full reindex can rebuild
// them. Implemented by *schedule.Repository.
type ContentSource interface {
	ListSchedules(ctx context.Context) ([]schedule.Schedule, error)
	ListNews(ctx context.Context) ([]schedule.News, error)
	ListAnnouncements(ctx context.Context) ([]schedule.Announcement, error)
	ListDocuments(ctx context.Context) ([]schedule.Document, error)
	SaveDocument(ctx context.Context, title, content string) (int64, error)
}

// Cache holds answered queries. Implemented by *querycache.Cache.
type Cache interface {
	Get(query, sourceType string) (any, bool)
	Set(query, sourceType string, response any)
	Invalidate(pattern string) int
	InvalidateAll()
	Stats() querycache.Stats
}

// QueryRequest is one user question with its conversation context.
type QueryRequest struct {
	Question   string
	SourceType string // optional source-type filter for retrieval
	History    []llm.Message
	SessionID  string
}

// Source is one context document surfaced back to the caller, with content
// truncated for display.
type Source struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

// Response is the pipeline's answer. It always carries a user-presentable
// Answer, even when an internal step failed.
type Response struct {
	Answer       string   `json:"answer"`
	Sources      []Source `json:"sources"`
	Query        string   `json:"query"`
	NumRetrieved int      `json:"num_retrieved"`
	Intent       string   `json:"intent"`
	Cached       bool     `json:"cached"`
	SessionID    string   `json:"session_id,omitempty"`
}

// contextDoc is an internal retrieval result before display truncation.
type contextDoc struct {
	content  string
	metadata map[string]string
	score    float64
}
